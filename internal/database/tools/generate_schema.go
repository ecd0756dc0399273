// Command generate_schema rebuilds internal/database/schema.sql by applying every
// migration to an in-memory database and dumping the result.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"stash-go/internal/database"
	"stash-go/internal/database/migrations"
)

const header = `-- This file is auto-generated from migration files.
-- DO NOT EDIT MANUALLY. Run 'go generate ./internal/database' to regenerate.
-- Source: internal/database/migrations/files/*.sql
-- Schema version: %d

`

func main() {
	log.SetFlags(0)

	db, err := database.OpenConnection(":memory:")
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		log.Fatalf("migrating: %v", err)
	}
	version, err := migrations.LatestVersion()
	if err != nil {
		log.Fatalf("reading latest version: %v", err)
	}
	schema, err := database.DumpSchema(db)
	if err != nil {
		log.Fatalf("dumping schema: %v", err)
	}

	out := filepath.Join("internal", "database", "schema.sql")
	if err := os.WriteFile(out, []byte(fmt.Sprintf(header, version)+schema), 0644); err != nil {
		log.Fatalf("writing %s: %v", out, err)
	}
	fmt.Printf("generated %s (schema version %d)\n", out, version)
}
