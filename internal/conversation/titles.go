package conversation

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/orsinium-labs/stopwords"
	"github.com/pkg/errors"

	"github.com/kittclouds/mammal/pkg/mptree"
)

// =============================================================================
// Title storage
// =============================================================================

const titlesSchema = `
CREATE TABLE IF NOT EXISTS thread_titles (
    thread_id INTEGER PRIMARY KEY,
    title TEXT NOT NULL
);
`

type titleStore struct {
	db mptree.Adapter
}

func (s titleStore) ensure(ctx context.Context) error {
	return s.db.Execute(ctx, titlesSchema)
}

func (s titleStore) get(ctx context.Context, ids []int64) (map[int64]string, error) {
	titles := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	rows, err := s.db.Select(ctx, fmt.Sprintf(
		`SELECT thread_id, title FROM thread_titles WHERE thread_id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		titles[mptree.RowInt(r, "thread_id")] = mptree.RowString(r, "title")
	}
	return titles, nil
}

func (s titleStore) set(ctx context.Context, threadID int64, title string) error {
	return s.db.Execute(ctx, `
		INSERT INTO thread_titles (thread_id, title) VALUES (?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET title = excluded.title`, threadID, title)
}

func (s titleStore) delete(ctx context.Context, threadID int64) error {
	return s.db.Execute(ctx, `DELETE FROM thread_titles WHERE thread_id = ?`, threadID)
}

// =============================================================================
// Title generation
// =============================================================================

// TitleGenerator names a thread from its messages, oldest first.
// An empty title means no title could be produced.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, messages []MessageData) (string, error)
}

// TitleFunc adapts a plain function to TitleGenerator.
type TitleFunc func(ctx context.Context, messages []MessageData) (string, error)

func (f TitleFunc) GenerateTitle(ctx context.Context, messages []MessageData) (string, error) {
	return f(ctx, messages)
}

// DefaultTitleWords is the word limit of KeywordTitler.
const DefaultTitleWords = 6

// KeywordTitler builds a title from the first user message, dropping English
// stop words. It never leaves the process.
type KeywordTitler struct {
	MaxWords int
	isStop   func(string) bool
}

// NewKeywordTitler creates a titler using the English stop word list.
func NewKeywordTitler() *KeywordTitler {
	en := stopwords.MustGet("en")
	return &KeywordTitler{MaxWords: DefaultTitleWords, isStop: en.Contains}
}

func (k *KeywordTitler) GenerateTitle(_ context.Context, messages []MessageData) (string, error) {
	text := firstUserText(messages)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
	if len(words) == 0 {
		return "", nil
	}

	limit := k.MaxWords
	if limit <= 0 {
		limit = DefaultTitleWords
	}

	var kept []string
	for _, w := range words {
		w = strings.Trim(w, "'-")
		if w == "" || (k.isStop != nil && k.isStop(strings.ToLower(w))) {
			continue
		}
		kept = append(kept, w)
		if len(kept) == limit {
			break
		}
	}
	// Only stop words: keep the opening words as typed.
	if len(kept) == 0 {
		kept = words[:min(limit, len(words))]
	}

	return capitalize(strings.Join(kept, " ")), nil
}

func firstUserText(messages []MessageData) string {
	for _, m := range messages {
		if m.Role == RoleUser && strings.TrimSpace(m.Message) != "" {
			return m.Message
		}
	}
	for _, m := range messages {
		if strings.TrimSpace(m.Message) != "" {
			return m.Message
		}
	}
	return ""
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Completer is the interface for LLM completion calls.
// systemPrompt is the system instruction, userPrompt is the user message.
type Completer interface {
	Complete(userPrompt, systemPrompt string) (string, error)
}

// DefaultTitlePromptTokens bounds the conversation excerpt sent for titling.
const DefaultTitlePromptTokens = 1000

// CompletionTitler asks a language model for a subject line.
type CompletionTitler struct {
	llm       Completer
	maxTokens int
}

// NewCompletionTitler creates a titler that sends at most maxTokens of
// conversation (estimated) to llm. maxTokens <= 0 uses DefaultTitlePromptTokens.
func NewCompletionTitler(llm Completer, maxTokens int) *CompletionTitler {
	if maxTokens <= 0 {
		maxTokens = DefaultTitlePromptTokens
	}
	return &CompletionTitler{llm: llm, maxTokens: maxTokens}
}

func (c *CompletionTitler) GenerateTitle(_ context.Context, messages []MessageData) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}

	response, err := c.llm.Complete(buildTitlePrompt(messages, c.maxTokens), titleSystemPrompt)
	if err != nil {
		return "", errors.Wrap(err, "title: LLM call failed")
	}
	return cleanTitle(response), nil
}

// titleSystemPrompt instructs the LLM to answer with a bare subject line.
const titleSystemPrompt = `Given the following message(s), respond by giving a terse subject line ` +
	`encapsulating the topic. Do not explain. Do not be creative. Do not use nouns like ` +
	`'request' or 'question' and avoid verbal phrases.`

// buildTitlePrompt lists messages until the token budget is spent.
// The first message is always included.
func buildTitlePrompt(messages []MessageData, maxTokens int) string {
	var b strings.Builder
	used := 0
	for i, msg := range messages {
		line := fmt.Sprintf("[%s]: %s\n", msg.Role, msg.Message)
		cost := EstimateTokens(line)
		if i > 0 && used+cost > maxTokens {
			break
		}
		b.WriteString(line)
		used += cost
	}
	return b.String()
}

// cleanTitle keeps the first non-empty line without surrounding quotes.
func cleanTitle(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "\"'`*#")
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

// runesPerToken approximates how much text one prompt token carries.
const runesPerToken = 4

// EstimateTokens is the cost buildTitlePrompt charges a line against the
// title budget. It counts runes, so accented or CJK text is not overcharged
// for its UTF-8 width.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + runesPerToken - 1) / runesPerToken
}
