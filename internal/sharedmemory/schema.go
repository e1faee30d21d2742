package sharedmemory

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// driverOnce guards sql.Register, which must run exactly once per
// process regardless of how many Stores are opened.
var driverOnce sync.Once

const driverName = "sqlite3_vec0"

// vecExtensionEnv names the environment variable pointing at the vec0
// shared library (e.g. vec0.so / vec0.dylib / vec0.dll). When unset, the
// store still opens but falls back to an in-process brute-force scan for
// search_similar (see operations.go) and logs that the extension is absent —
// a ConfigError in spec §7 terms: the subsystem degrades rather than
// aborting startup.
const vecExtensionEnv = "RESEARCH_VEC0_EXTENSION_PATH"

func registerDriver(logger *slog.Logger) {
	driverOnce.Do(func() {
		extPath := os.Getenv(vecExtensionEnv)
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if extPath == "" {
					return nil
				}
				if err := conn.LoadExtension(extPath, "sqlite3_vec_init"); err != nil {
					logger.Warn("failed to load vec0 extension, falling back to brute-force search",
						"path", extPath, "error", err)
				}
				return nil
			},
		})
	})
}

// vecAvailable reports whether the vec0 extension loaded successfully in
// this process, by probing for the vec0 module via pragma_module_list.
func vecAvailable(db *sql.DB) bool {
	row := db.QueryRow(`SELECT count(*) FROM pragma_module_list WHERE name = 'vec0'`)
	var count int
	if err := row.Scan(&count); err != nil {
		return false
	}
	return count > 0
}

const schemaMemories = `
CREATE TABLE IF NOT EXISTS memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_type TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_by TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(memory_type);
`

// schemaVecFallback backs search_similar with a brute-force scan when the
// vec0 extension could not be loaded in this process. Same logical key as
// the virtual table (memory_id), plain BLOB storage otherwise.
const schemaVecFallback = `
CREATE TABLE IF NOT EXISTS vec_memories_fallback (
	memory_id INTEGER PRIMARY KEY,
	embedding BLOB NOT NULL
);
`

const schemaToolCalls = `
CREATE TABLE IF NOT EXISTS tool_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query_id TEXT,
	agent_name TEXT NOT NULL,
	tool_type TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	parameters_json TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_query_id ON tool_calls(query_id);
`

func initSchema(db *sql.DB, dim int, logger *slog.Logger) (hasVec bool, err error) {
	if _, err := db.Exec(schemaMemories); err != nil {
		return false, fmt.Errorf("create memories table: %w", err)
	}
	if _, err := db.Exec(schemaToolCalls); err != nil {
		return false, fmt.Errorf("create tool_calls table: %w", err)
	}

	hasVec = vecAvailable(db)
	if !hasVec {
		logger.Warn("vec0 extension not available; search_similar will use an in-process brute-force scan")
		if _, err := db.Exec(schemaVecFallback); err != nil {
			return false, fmt.Errorf("create vec_memories_fallback table: %w", err)
		}
		return false, nil
	}

	if err := migrateLegacyVecTable(db, logger); err != nil {
		return hasVec, fmt.Errorf("migrate legacy vec_memories table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_memories USING vec0(memory_id INTEGER PRIMARY KEY, embedding FLOAT[%d])`,
		dim,
	)
	if _, err := db.Exec(createVec); err != nil {
		return hasVec, fmt.Errorf("create vec_memories virtual table: %w", err)
	}
	return hasVec, nil
}

// migrateLegacyVecTable detects a pre-existing vec_memories table keyed
// by a TEXT id (an older schema generation) and rebuilds it with the
// integer-keyed schema this store requires, per spec §4.1. Rebuilding
// drops the old vector index; row data in `memories` is untouched, but
// existing rows have no vector until UpdateOrStore rewrites them, so
// vec0 search does not return them until then. This mirrors shared_memory.rs's own migrate-by-rebuild
// behavior rather than attempting a row-by-row type coercion.
func migrateLegacyVecTable(db *sql.DB, logger *slog.Logger) error {
	row := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='vec_memories'`)
	var exists int
	if err := row.Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return nil
	}

	rows, err := db.Query(`PRAGMA table_info(vec_memories)`)
	if err != nil {
		return err
	}
	legacy := false
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		if name == "memory_id" && colType != "" && colType != "INTEGER" {
			legacy = true
		}
	}
	rows.Close()

	if !legacy {
		return nil
	}

	logger.Warn("detected legacy text-keyed vec_memories table, rebuilding with integer key")
	if _, err := db.Exec(`DROP TABLE vec_memories`); err != nil {
		return fmt.Errorf("drop legacy vec_memories: %w", err)
	}
	return nil
}
