//go:build !wasm

package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	ImagesMerged     int
	SignaturesMerged int
	HitsMerged       int
	ProvenanceMerged int
	SourcesProcessed int
}

// mergeTables lists each table's natural-key columns in copy order.
// Surrogate ids are regenerated in the destination.
var mergeTables = []struct {
	name    string
	columns string
}{
	{"images", "id, size, format"},
	{"signatures", "id, name, pattern, structural_id, description, module, arch"},
	{"hits", hitColumns},
	{"provenance", "image_id, type, path, payload_json"},
}

// Merge combines multiple SQLite datastores into one.
// Deduplication is handled via INSERT OR IGNORE on unique keys.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	// Open/create destination database
	destDB, err := sql.Open("sqlite", cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer destDB.Close()
	destDB.SetMaxOpenConns(1)

	// Initialize schema on destination
	if err := CreateSchema(destDB); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	stats := &MergeStats{}

	// Process each source database
	for _, sourcePath := range cfg.SourcePaths {
		counts, err := mergeFrom(destDB, sourcePath)
		if err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.ImagesMerged += counts[0]
		stats.SignaturesMerged += counts[1]
		stats.HitsMerged += counts[2]
		stats.ProvenanceMerged += counts[3]
		stats.SourcesProcessed++
	}

	return stats, nil
}

// mergeFrom copies every table from a source database to the destination,
// returning the rows inserted per mergeTables entry.
func mergeFrom(destDB *sql.DB, sourcePath string) ([]int, error) {
	sourceDB, err := sql.Open("sqlite", sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source database: %w", err)
	}
	defer sourceDB.Close()

	// Start transaction for efficiency
	tx, err := destDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	counts := make([]int, len(mergeTables))
	for i, t := range mergeTables {
		n, err := copyTable(tx, sourceDB, t.name, t.columns)
		if err != nil {
			return nil, fmt.Errorf("merging %s: %w", t.name, err)
		}
		counts[i] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return counts, nil
}

func copyTable(tx *sql.Tx, sourceDB *sql.DB, table, columns string) (int, error) {
	order := ""
	if table == "hits" || table == "provenance" {
		order = " ORDER BY id"
	}
	rows, err := sourceDB.Query("SELECT " + columns + " FROM " + table + order)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	stmt, err := tx.Prepare(sqliteDialect.insertIgnore(table, strings.Join(strings.Fields(columns), " ")))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := len(strings.Split(columns, ","))
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		result, err := stmt.Exec(values...)
		if err != nil {
			return count, err
		}
		affected, _ := result.RowsAffected()
		if affected > 0 {
			count++
		}
	}
	return count, rows.Err()
}
