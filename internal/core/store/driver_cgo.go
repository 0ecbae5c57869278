//go:build cgo

package store

import (
	// Register the libsql database/sql driver. The driver requires cgo, so
	// the import lives behind the cgo build tag alongside the cgo-gated
	// store tests; without cgo, Open fails with an unknown-driver error.
	_ "github.com/tursodatabase/go-libsql"
)
