//go:build purego

package storage

// Built with CGO_ENABLED=0 go build -tags purego ./...

import (
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by this build.
const DriverName = "sqlite"
