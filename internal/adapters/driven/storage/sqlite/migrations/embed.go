// Package migrations holds the schema of the collection and record tables.
package migrations

import "embed"

// FS holds the numbered up and down scripts applied by the store on open.
//
//go:embed *.sql
var FS embed.FS
