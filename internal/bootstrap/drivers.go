package bootstrap

import (
	// SQL drivers for the sqlite and postgres dataset sources.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)
