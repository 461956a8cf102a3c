package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/kittclouds/mammal/pkg/mptree"
)

// DefaultSearchLimit caps Search when no limit is given.
const DefaultSearchLimit = 50

// minTrigramQuery is the shortest query the trigram tokenizer can match.
const minTrigramQuery = 3

// searchSchema indexes the message text of every row. The FTS table reads its
// content from the view, and the triggers keep it in sync with the node table,
// including the path rewrites done by moves.
const searchSchema = `
CREATE VIEW IF NOT EXISTS %[1]s_message_view AS
    SELECT id, path, thread_id, json_extract(data, '$.message') AS message
    FROM %[1]s;

CREATE VIRTUAL TABLE IF NOT EXISTS %[1]s_fts USING fts5(
    path UNINDEXED,
    message,
    tokenize = 'trigram',
    content = '%[1]s_message_view',
    content_rowid = 'id'
);

CREATE TRIGGER IF NOT EXISTS %[1]s_fts_insert AFTER INSERT ON %[1]s BEGIN
    INSERT INTO %[1]s_fts (rowid, path, message)
    VALUES (new.id, new.path, json_extract(new.data, '$.message'));
END;

CREATE TRIGGER IF NOT EXISTS %[1]s_fts_delete AFTER DELETE ON %[1]s BEGIN
    INSERT INTO %[1]s_fts (%[1]s_fts, rowid, path, message)
    VALUES ('delete', old.id, old.path, json_extract(old.data, '$.message'));
END;

CREATE TRIGGER IF NOT EXISTS %[1]s_fts_update AFTER UPDATE ON %[1]s BEGIN
    INSERT INTO %[1]s_fts (%[1]s_fts, rowid, path, message)
    VALUES ('delete', old.id, old.path, json_extract(old.data, '$.message'));
    INSERT INTO %[1]s_fts (rowid, path, message)
    VALUES (new.id, new.path, json_extract(new.data, '$.message'));
END;
`

// SearchResult is one message matching a search query.
type SearchResult struct {
	Path     string      `json:"path"`
	ThreadID int64       `json:"threadId"`
	Snippet  string      `json:"snippet"`
	Data     MessageData `json:"data"`
}

type searchIndex struct {
	db    mptree.Adapter
	table string
}

func (s searchIndex) ensure(ctx context.Context) error {
	return s.db.Execute(ctx, fmt.Sprintf(searchSchema, s.table))
}

func (s searchIndex) rebuild(ctx context.Context) error {
	return s.db.Execute(ctx, fmt.Sprintf(`INSERT INTO %[1]s_fts (%[1]s_fts) VALUES ('rebuild')`, s.table))
}

func (s searchIndex) search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if utf8.RuneCountInString(query) < minTrigramQuery {
		return s.searchLike(ctx, query, limit)
	}

	rows, err := s.db.Select(ctx, fmt.Sprintf(`
		SELECT
			m.path AS path,
			m.data AS data,
			m.thread_id AS thread_id,
			snippet(%[1]s_fts, 1, '<b>', '</b>', '...', 60) AS snippet
		FROM %[1]s_fts
		JOIN %[1]s m ON m.id = %[1]s_fts.rowid
		WHERE %[1]s_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, s.table), phrase(query), limit)
	if err != nil {
		return nil, err
	}
	return resultsFromRows(rows, nil)
}

// searchLike scans message text directly for queries too short for trigrams.
func (s searchIndex) searchLike(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := s.db.Select(ctx, fmt.Sprintf(`
		SELECT path, data, thread_id
		FROM %s
		WHERE json_extract(data, '$.message') LIKE ? ESCAPE '\'
		ORDER BY id DESC
		LIMIT ?`, s.table), "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, err
	}
	return resultsFromRows(rows, func(text string) string {
		return highlight(text, query)
	})
}

func resultsFromRows(rows []map[string]any, snippet func(string) string) ([]SearchResult, error) {
	results := make([]SearchResult, 0, len(rows))
	for _, r := range rows {
		res := SearchResult{
			Path:     mptree.RowString(r, "path"),
			ThreadID: mptree.RowInt(r, "thread_id"),
			Snippet:  mptree.RowString(r, "snippet"),
		}
		if err := json.Unmarshal([]byte(mptree.RowString(r, "data")), &res.Data); err != nil {
			return nil, errors.Wrapf(err, "decode search hit %s", res.Path)
		}
		if snippet != nil {
			res.Snippet = snippet(res.Data.Message)
		}
		results = append(results, res)
	}
	return results, nil
}

// phrase quotes query as a single FTS5 string so operators in it are literal.
func phrase(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippetRadius is the number of runes kept on each side of a LIKE match.
const snippetRadius = 30

// highlight marks the first case-insensitive occurrence of query in text the
// way snippet() does for FTS hits.
func highlight(text, query string) string {
	runes := []rune(text)
	lower := foldRunes(runes)
	q := foldRunes([]rune(query))

	at := -1
	for i := 0; i+len(q) <= len(lower); i++ {
		if string(lower[i:i+len(q)]) == string(q) {
			at = i
			break
		}
	}
	if at < 0 {
		return text
	}

	start := max(0, at-snippetRadius)
	end := min(len(runes), at+len(q)+snippetRadius)

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(string(runes[start:at]))
	b.WriteString("<b>")
	b.WriteString(string(runes[at : at+len(q)]))
	b.WriteString("</b>")
	b.WriteString(string(runes[at+len(q) : end]))
	if end < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

func foldRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}
