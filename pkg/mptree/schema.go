package mptree

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidateTableName rejects anything that is not a plain SQL identifier.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return errors.Wrapf(ErrInvalidTableName, "%q must be alphanumeric", name)
	}
	if name[0] >= '0' && name[0] <= '9' {
		return errors.Wrapf(ErrInvalidTableName, "%q must not start with a number", name)
	}
	return nil
}

// schema creates the node table, its indexes and the top-level view.
// thread_id and segments are derived from path by SQLite on every write,
// which keeps them correct across moves.
const schema = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    data TEXT,
    thread_id INTEGER GENERATED ALWAYS AS (
        CAST(CASE WHEN INSTR(path, '.') = 0 THEN path
                  ELSE SUBSTR(path, 1, INSTR(path, '.') - 1) END AS INTEGER)
    ) STORED,
    segments INTEGER GENERATED ALWAYS AS (
        LENGTH(path) - LENGTH(REPLACE(path, '.', '')) + 1
    ) STORED
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_path ON %[1]s(path);
CREATE INDEX IF NOT EXISTS idx_%[1]s_thread ON %[1]s(thread_id, segments);

-- One row per top-level message ("8.1", "12.3"); depth is the second segment.
CREATE VIEW IF NOT EXISTS %[1]s_top_level AS
    SELECT
        id,
        path,
        data,
        thread_id,
        CAST(SUBSTR(path, INSTR(path, '.') + 1) AS INTEGER) AS depth
    FROM %[1]s
    WHERE segments = 2;
`

func schemaFor(table string) string {
	return fmt.Sprintf(schema, table)
}

// TopLevelView is the name of the derived (thread_id, depth) view for table.
func TopLevelView(table string) string {
	return table + "_top_level"
}
