package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// dialect captures the SQL differences between SQLite and PostgreSQL.
type dialect struct {
	name     string
	autoID   string // surrogate key column definition
	blob     string // binary column type
	numbered bool   // $1-style placeholders
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		autoID: "INTEGER PRIMARY KEY AUTOINCREMENT",
		blob:   "BLOB",
	}
	postgresDialect = dialect{
		name:     "postgres",
		autoID:   "BIGSERIAL PRIMARY KEY",
		blob:     "BYTEA",
		numbered: true,
	}
)

// rebind rewrites ? placeholders for the dialect.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// insertIgnore builds an INSERT that silently skips rows violating a
// uniqueness constraint.
func (d dialect) insertIgnore(table, columns string) string {
	n := strings.Count(columns, ",") + 1
	values := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	if d.numbered {
		return d.rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING", table, columns, values))
	}
	return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", table, columns, values)
}

// CreateSchema creates the database schema if it doesn't exist.
func CreateSchema(db *sql.DB) error {
	return createSchema(db, sqliteDialect)
}

func createSchema(db *sql.DB, d dialect) error {
	// Create schema_version table
	if err := createSchemaVersionTable(db, d); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	// Create main tables
	if err := createImagesTable(db); err != nil {
		return fmt.Errorf("creating images table: %w", err)
	}

	if err := createSignaturesTable(db); err != nil {
		return fmt.Errorf("creating signatures table: %w", err)
	}

	if err := createHitsTable(db, d); err != nil {
		return fmt.Errorf("creating hits table: %w", err)
	}

	if err := createProvenanceTable(db, d); err != nil {
		return fmt.Errorf("creating provenance table: %w", err)
	}

	if err := createAnnotationsTable(db); err != nil {
		return fmt.Errorf("creating annotations table: %w", err)
	}

	return nil
}

func createSchemaVersionTable(db *sql.DB, d dialect) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Insert version if table is empty
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		_, err = db.Exec(d.rebind("INSERT INTO schema_version (version) VALUES (?)"), SchemaVersion)
		return err
	}

	return nil
}

func createImagesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS images (
			id TEXT PRIMARY KEY NOT NULL,
			size BIGINT NOT NULL,
			format TEXT NOT NULL
		)
	`)
	return err
}

func createSignaturesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signatures (
			id TEXT PRIMARY KEY NOT NULL,
			name TEXT NOT NULL,
			pattern TEXT NOT NULL,
			structural_id TEXT NOT NULL,
			description TEXT,
			module TEXT,
			arch TEXT
		)
	`)
	return err
}

// Addresses are stored as the two's-complement int64 of the uint64 value.
func createHitsTable(db *sql.DB, d dialect) error {
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS hits (
			id %s,
			image_id TEXT NOT NULL REFERENCES images(id),
			signature_id TEXT NOT NULL,
			signature_name TEXT,
			structural_id TEXT NOT NULL UNIQUE,
			finding_id TEXT NOT NULL,
			region TEXT,
			offset_start BIGINT NOT NULL,
			offset_end BIGINT NOT NULL,
			address_start BIGINT NOT NULL,
			address_end BIGINT NOT NULL,
			report_json TEXT NOT NULL,
			snippet_before %s,
			snippet_matching %s,
			snippet_after %s,
			disassembly_json TEXT
		)
	`, d.autoID, d.blob, d.blob, d.blob))
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_hits_image_id ON hits(image_id)
	`)
	return err
}

func createProvenanceTable(db *sql.DB, d dialect) error {
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS provenance (
			id %s,
			image_id TEXT NOT NULL REFERENCES images(id),
			type TEXT NOT NULL,
			path TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			UNIQUE(image_id, type, path)
		)
	`, d.autoID))
	if err != nil {
		return err
	}

	// Create index for efficient provenance lookup by image_id
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_provenance_image_id ON provenance(image_id)
	`)
	return err
}

func createAnnotationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS annotations (
			kind TEXT NOT NULL,
			target_id TEXT NOT NULL,
			status TEXT NOT NULL,
			comment TEXT NOT NULL,
			PRIMARY KEY (kind, target_id)
		)
	`)
	return err
}
