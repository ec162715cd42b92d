// Package reefstore persists previously built reefs to a local SQLite
// database (SPEC_FULL.md domain stack): each reef's exported symbol names,
// their TypeRef rendering, and the reef's content hash. core.Compile writes
// to it after a successful build; nothing in this module reads a stored
// reef back during analysis, so cross-reef resolution works only on the
// in-memory Engines handed to Compile.
//
// Stored reefs are never patched in place (spec §1 Non-goals: no
// incremental recompilation) — a stored reef is only ever superseded by
// saving it again under the same name.
//
// Grounded on the teacher's termfx-morfx-style database/sql usage
// (plain %w-wrapped errors, no ORM) but using modernc.org/sqlite's
// pure-Go driver rather than a cgo one.
package reefstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed reef cache.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and ensures
// its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("reefstore: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("reefstore: ping %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS reefs (
	name       TEXT PRIMARY KEY,
	content_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS exported_symbols (
	reef_name   TEXT NOT NULL REFERENCES reefs(name),
	name        TEXT NOT NULL,
	type_string TEXT NOT NULL,
	local       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS exported_symbols_reef_idx ON exported_symbols(reef_name);
`

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("reefstore: migrate: %w", err)
	}
	return nil
}

// ExportedSymbol is one of a reef's exported bindings, as persisted (spec
// §6 "Exported symbol table": name plus its offset/local within the
// producing chunk; here the type is rendered to text for storage since
// TypeIds are only meaningful within the reef's own in-memory Typing
// table).
type ExportedSymbol struct {
	Name       string
	TypeString string
	Local      int
}

// Reef is a previously built reef's cached shape: its content hash (so a
// caller can tell whether a recorded reef is still current for a given
// source) and its exported symbols.
type Reef struct {
	Name      string
	ContentID string
	Exports   []ExportedSymbol
}

// Save records reef's exported symbols under name, replacing anything
// already stored under that name (spec §1: still no incremental
// recompilation — Save always writes a complete replacement, never a
// partial patch).
func (s *Store) Save(name string, contentID string, exports []ExportedSymbol) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("reefstore: save %s: begin: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM exported_symbols WHERE reef_name = ?`, name); err != nil {
		return fmt.Errorf("reefstore: save %s: clear symbols: %w", name, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO reefs(name, content_id) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET content_id = excluded.content_id`,
		name, contentID,
	); err != nil {
		return fmt.Errorf("reefstore: save %s: upsert reef: %w", name, err)
	}
	for _, sym := range exports {
		if _, err := tx.Exec(
			`INSERT INTO exported_symbols(reef_name, name, type_string, local) VALUES (?, ?, ?, ?)`,
			name, sym.Name, sym.TypeString, sym.Local,
		); err != nil {
			return fmt.Errorf("reefstore: save %s: insert symbol %s: %w", name, sym.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reefstore: save %s: commit: %w", name, err)
	}
	return nil
}

// Load returns the reef recorded under name, if any. The caller is
// responsible for comparing ContentID against the source it is about to
// analyze to decide whether the cached entry is still usable — Load never
// makes that decision itself.
func (s *Store) Load(name string) (*Reef, bool, error) {
	var contentID string
	err := s.db.QueryRow(`SELECT content_id FROM reefs WHERE name = ?`, name).Scan(&contentID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reefstore: load %s: %w", name, err)
	}

	rows, err := s.db.Query(`SELECT name, type_string, local FROM exported_symbols WHERE reef_name = ? ORDER BY name`, name)
	if err != nil {
		return nil, false, fmt.Errorf("reefstore: load %s: query symbols: %w", name, err)
	}
	defer rows.Close()

	reef := &Reef{Name: name, ContentID: contentID}
	for rows.Next() {
		var sym ExportedSymbol
		if err := rows.Scan(&sym.Name, &sym.TypeString, &sym.Local); err != nil {
			return nil, false, fmt.Errorf("reefstore: load %s: scan symbol: %w", name, err)
		}
		reef.Exports = append(reef.Exports, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("reefstore: load %s: iterate symbols: %w", name, err)
	}
	return reef, true, nil
}

// Known reports whether any reef is recorded under name, without loading
// its exported symbols.
func (s *Store) Known(name string) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM reefs WHERE name = ?`, name).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reefstore: known %s: %w", name, err)
	}
	return true, nil
}
