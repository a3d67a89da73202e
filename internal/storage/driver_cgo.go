//go:build !purego

package storage

import (
	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver registered by this build.
const DriverName = "sqlite3"
