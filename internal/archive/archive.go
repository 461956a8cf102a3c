// Package archive exports single threads to JSON files on a hackpadfs
// filesystem and imports them back as new threads.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/hack-pad/hackpadfs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kittclouds/mammal/internal/conversation"
	"github.com/kittclouds/mammal/pkg/mptree"
)

// FormatVersion is written to every archive file.
const FormatVersion = 1

var (
	// ErrEmptyThread is returned when exporting a thread with no messages.
	ErrEmptyThread = errors.New("thread has no messages")

	// ErrBadArchive is returned for files that are not valid thread archives.
	ErrBadArchive = errors.New("invalid thread archive")
)

// Thread is the on-disk form of one conversation.
type Thread struct {
	Version  int     `json:"version"`
	ThreadID int64   `json:"threadId"`
	Title    string  `json:"title,omitempty"`
	Messages []Entry `json:"messages"`
}

// Entry is one message. Path is relative to the thread: "1.2" was stored at
// "<thread>.1.2".
type Entry struct {
	Path string                   `json:"path"`
	Data conversation.MessageData `json:"data"`
}

// Store reads and writes archives below Dir on FS.
type Store struct {
	FS  hackpadfs.FS
	Dir string

	manager *conversation.Manager
	mu      sync.Mutex
}

// NewStore creates an archive store for the threads of m.
// dir "" or "." is the root of fs.
func NewStore(fs hackpadfs.FS, dir string, m *conversation.Manager) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{FS: fs, Dir: dir, manager: m}
}

// FileName is the archive name of a thread.
func FileName(threadID int64) string {
	return fmt.Sprintf("thread-%d.json", threadID)
}

// Export writes one thread with all branches and its title, and returns the
// file path inside FS.
func (s *Store) Export(ctx context.Context, threadID int64) (string, error) {
	view, err := s.manager.Tree().GetTree(ctx, mptree.JoinPath(threadID))
	if err != nil {
		return "", err
	}
	if view == nil {
		return "", errors.Wrapf(ErrEmptyThread, "thread %d", threadID)
	}

	title, err := s.manager.Title(ctx, threadID)
	if err != nil {
		return "", err
	}

	out := Thread{Version: FormatVersion, ThreadID: threadID, Title: title}
	prefix := mptree.JoinPath(threadID) + mptree.Separator
	for _, b := range view.Branches() {
		b.Walk(func(b *mptree.Branch[conversation.MessageData], _ int) bool {
			out.Messages = append(out.Messages, Entry{
				Path: strings.TrimPrefix(b.Node.Path, prefix),
				Data: b.Node.Data,
			})
			return true
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode thread: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Dir != "." {
		if err := hackpadfs.MkdirAll(s.FS, s.Dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create archive dir: %w", err)
		}
	}
	name := path.Join(s.Dir, FileName(threadID))
	if err := hackpadfs.WriteFullFile(s.FS, name, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write archive file: %w", err)
	}

	log.Info().Int64("thread", threadID).Str("file", name).Int("messages", len(out.Messages)).Msg("thread exported")
	return name, nil
}

// Load reads an archive file without importing it.
func (s *Store) Load(name string) (*Thread, error) {
	s.mu.Lock()
	content, err := hackpadfs.ReadFile(s.FS, s.resolve(name))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var t Thread
	if err := json.Unmarshal(content, &t); err != nil {
		return nil, errors.Wrapf(ErrBadArchive, "decode %s: %v", name, err)
	}
	if err := t.validate(); err != nil {
		return nil, errors.Wrap(err, name)
	}
	return &t, nil
}

// Import restores an archive as a new thread and returns its id. Relative
// paths are kept, so the branch structure survives; only the thread id changes.
func (s *Store) Import(ctx context.Context, name string) (int64, error) {
	t, err := s.Load(name)
	if err != nil {
		return 0, err
	}

	tree := s.manager.Tree()
	first, err := tree.NextChildPath(ctx, "")
	if err != nil {
		return 0, err
	}
	threadID := mptree.ThreadID(first)
	base := mptree.JoinPath(threadID)

	entries := slices.Clone(t.Messages)
	slices.SortFunc(entries, func(a, b Entry) int {
		return mptree.ComparePaths(a.Path, b.Path)
	})
	for _, e := range entries {
		if _, err := tree.Restore(ctx, base+mptree.Separator+e.Path, e.Data); err != nil {
			return 0, errors.Wrapf(err, "restore %s", e.Path)
		}
	}

	if t.Title != "" {
		err = s.manager.UpdateThreadTitle(ctx, threadID, t.Title)
	} else {
		_, err = s.manager.RefreshRoots(ctx)
	}
	if err != nil {
		return 0, err
	}

	log.Info().Str("file", name).Int64("from", t.ThreadID).Int64("thread", threadID).Msg("thread imported")
	return threadID, nil
}

// List returns the archive files in Dir, sorted by name.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := hackpadfs.ReadDir(s.FS, s.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "thread-") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// resolve accepts bare file names as well as paths returned by Export.
func (s *Store) resolve(name string) string {
	if s.Dir == "." || strings.Contains(name, "/") {
		return name
	}
	return path.Join(s.Dir, name)
}

// validate checks that the entries form a tree: canonical paths, each
// spelled once, and every entry below the top level has its parent present.
func (t *Thread) validate() error {
	if t.Version != FormatVersion {
		return errors.Wrapf(ErrBadArchive, "unsupported version %d", t.Version)
	}
	if len(t.Messages) == 0 {
		return errors.Wrap(ErrBadArchive, "no messages")
	}
	seen := make(map[string]bool, len(t.Messages))
	for _, e := range t.Messages {
		segs, ok := mptree.Segments(e.Path)
		if !ok {
			return errors.Wrapf(ErrBadArchive, "bad path %q", e.Path)
		}
		key := mptree.JoinPath(segs...)
		if seen[key] {
			return errors.Wrapf(ErrBadArchive, "duplicate path %q", e.Path)
		}
		seen[key] = true
	}
	for key := range seen {
		if parent := mptree.ParentPath(key); parent != "" && !seen[parent] {
			return errors.Wrapf(ErrBadArchive, "path %q has no parent %q", key, parent)
		}
	}
	return nil
}
