package migrations

import "embed"

// Files embeds the versioned SQL migrations.
//
//go:embed *.sql
var Files embed.FS
