package content

import (
	"strings"
	"time"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
)

// Static pt-BR templates keyed by archetype. Placeholders: {saudacao} and
// {nome}. An unknown archetype falls through to the generic template, so
// Fallback can never come back empty.
var fallbackTemplates = map[string]string{
	"satisfaction_check": "{saudacao}, {nome}! Seu pedido chegou direitinho? Queremos saber se está tudo certo com a sua compra. 😊",
	"review_request":     "{saudacao}, {nome}! Que bom ter você como cliente. Se puder, conta pra gente como foi sua experiência?",
	"cross_sell":         "{saudacao}, {nome}! Separamos algumas novidades que combinam com a sua última compra. Quer dar uma olhada?",
	"nurturing_touch":    "{saudacao}, {nome}! Passando pra dizer que estamos por aqui se precisar de qualquer coisa. 🙌",
	"nurturing_offer":    "{saudacao}, {nome}! Temos uma condição especial pensada pra você. Posso te contar mais?",
	"vip_recovery":       "{saudacao}, {nome}! Sentimos sua falta por aqui. Preparamos algo especial pra sua próxima compra. 💙",
	"stalled_deal":       "{saudacao}, {nome}! Ficou alguma dúvida sobre a proposta? Estou à disposição pra ajudar a fechar do jeito que for melhor pra você.",
	"cold_lead":          "{saudacao}, {nome}! Vi que você se interessou pelos nossos produtos. Posso te ajudar a escolher?",
	"vip_attention":      "{saudacao}, {nome}! Você é um cliente especial pra gente. Tem algo que possamos fazer por você hoje?",
	"generic":            "{saudacao}, {nome}! Tudo bem? Estamos à disposição pra te atender. 😊",
}

// greeting returns the pt-BR salutation for the hour of t.
func greeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 5:
		return "Boa noite"
	case h < 12:
		return "Bom dia"
	case h < 18:
		return "Boa tarde"
	default:
		return "Boa noite"
	}
}

// Fallback builds a deterministic message for the archetype. It never fails:
// unknown archetypes use the generic template and an empty first name is
// replaced by a neutral form of address.
func Fallback(archetype, firstName string, at time.Time) domain.Message {
	tpl, ok := fallbackTemplates[archetype]
	if !ok {
		tpl = fallbackTemplates["generic"]
	}
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "tudo bem"
	}
	text := strings.NewReplacer(
		"{saudacao}", greeting(at),
		"{nome}", name,
	).Replace(tpl)
	return domain.Message{Text: text}
}
