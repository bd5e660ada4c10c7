package content

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour int) time.Time {
	return time.Date(2026, 8, 1, hour, 30, 0, 0, time.UTC)
}

func TestGreetingByTimeOfDay(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{3, "Boa noite"},
		{8, "Bom dia"},
		{11, "Bom dia"},
		{12, "Boa tarde"},
		{17, "Boa tarde"},
		{18, "Boa noite"},
		{23, "Boa noite"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, greeting(at(tt.hour)), "hour %d", tt.hour)
	}
}

func TestFallback_SubstitutesPlaceholders(t *testing.T) {
	msg := Fallback("satisfaction_check", "Maria", at(9))
	assert.True(t, strings.HasPrefix(msg.Text, "Bom dia, Maria!"), "got %q", msg.Text)
	assert.NotContains(t, msg.Text, "{nome}")
	assert.NotContains(t, msg.Text, "{saudacao}")
}

func TestFallback_UnknownArchetypeUsesGeneric(t *testing.T) {
	msg := Fallback("does_not_exist", "Ana", at(14))
	assert.NotEmpty(t, msg.Text)
	assert.Contains(t, msg.Text, "Ana")
}

func TestFallback_EmptyNameNeverEmptyMessage(t *testing.T) {
	msg := Fallback("vip_recovery", "   ", at(20))
	assert.NotEmpty(t, msg.Text)
	assert.NotContains(t, msg.Text, "{nome}")
}

func TestFallback_CoversEveryArchetype(t *testing.T) {
	for archetype := range fallbackTemplates {
		msg := Fallback(archetype, "Carlos", at(10))
		assert.NotEmpty(t, msg.Text, "archetype %s", archetype)
	}
}
