package migrations

import "embed"

// Files exposes the embedded SQL migrations, applied in name order.
//
//go:embed *.sql
var Files embed.FS
