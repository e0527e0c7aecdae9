// Package migrations embebe los scripts SQL del subsistema.
package migrations

import "embed"

// FS contiene las migraciones *_up.sql en orden lexicográfico.
//
//go:embed *.sql
var FS embed.FS
