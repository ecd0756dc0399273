package database

import _ "embed"

// Schema is the full database schema produced by applying every migration.
// Tests apply it directly to in-memory databases.
//
// To regenerate after adding a migration:
//
//	go generate ./internal/database
//
//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
//go:embed schema.sql
var Schema string
