// Package migrations embeds the SQL schema files applied by "api migrate".
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Files lists migrations in application order.
var Files = []string{
	"001_create_followup_tasks.sql",
	"002_create_sequence_definitions.sql",
	"003_seed_default_sequences.sql",
}
