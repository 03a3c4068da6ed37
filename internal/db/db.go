package db

import (
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New opens the preferences database inside dataDir and initializes the
// schema. An empty dataDir falls back to the XDG data directory.
func New(dataDir string) (*DB, error) {
	dbPath, err := getDBPath(dataDir)
	if err != nil {
		return nil, err
	}
	return Open(dbPath)
}

// Open opens the database file at path. ":memory:" works for tests.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// one connection so an in-memory database is shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// getDBPath returns the path to the database file
func getDBPath(dataDir string) (string, error) {
	if dataDir == "" {
		dataDir = os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
		dataDir = filepath.Join(dataDir, "todosky")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(dataDir, "todosky.db"), nil
}

// GetSetting retrieves a setting value by key. A missing key is "".
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting sets a setting value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
