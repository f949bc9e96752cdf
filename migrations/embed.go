// Package migrations holds the event store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
