package conversation

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kittclouds/mammal/pkg/mptree"
)

// Manager drives one message tree: it adds and removes messages, resolves
// threads and keeps a Session up to date.
type Manager struct {
	tree    *mptree.Tree[MessageData]
	session *Session
	titles  titleStore
	index   searchIndex
	titler  TitleGenerator
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithSession shares an existing session instead of creating one.
func WithSession(s *Session) Option {
	return func(m *Manager) { m.session = s }
}

// WithTitleGenerator replaces the default KeywordTitler. nil disables
// title generation.
func WithTitleGenerator(g TitleGenerator) Option {
	return func(m *Manager) { m.titler = g }
}

// WithClock sets the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager opens the message tree stored in table and makes sure the title
// and search tables exist.
func NewManager(ctx context.Context, db mptree.Adapter, table string, opts ...Option) (*Manager, error) {
	tree, err := mptree.New[MessageData](ctx, db, table)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		tree:    tree,
		session: NewSession(),
		titles:  titleStore{db: db},
		index:   searchIndex{db: db, table: table},
		titler:  NewKeywordTitler(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.titles.ensure(ctx); err != nil {
		return nil, errors.Wrap(err, "create thread titles")
	}
	if err := m.index.ensure(ctx); err != nil {
		return nil, errors.Wrap(err, "create search index")
	}
	return m, nil
}

// Tree exposes the underlying message tree.
func (m *Manager) Tree() *mptree.Tree[MessageData] {
	return m.tree
}

// Session returns the session the manager updates.
func (m *Manager) Session() *Session {
	return m.session
}

// =============================================================================
// Thread resolution
// =============================================================================

// GetThreadEndingAt returns the messages from the thread's first message down
// to path. The bare thread id is never part of the result. A missing ancestor
// is logged and yields an empty thread.
func (m *Manager) GetThreadEndingAt(ctx context.Context, path string) ([]*Message, error) {
	var thread []*Message
	for id := path; strings.Contains(id, mptree.Separator); id = mptree.ParentPath(id) {
		node, err := m.tree.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		if node == nil {
			log.Warn().Str("path", path).Str("missing", id).Msg("thread has a missing message")
			return []*Message{}, nil
		}
		thread = append(thread, node)
	}
	slices.Reverse(thread)
	return thread, nil
}

// SetActiveThread opens the thread containing path on its freshest branch,
// starting from the thread's first message.
func (m *Manager) SetActiveThread(ctx context.Context, path string) (*Message, error) {
	thread, err := m.GetThreadEndingAt(ctx, path)
	if err != nil || len(thread) == 0 {
		if err == nil {
			log.Warn().Str("path", path).Msg("no messages in thread")
		}
		return nil, err
	}
	return m.activateLatest(ctx, thread[0].Path)
}

// SetThreadFor activates the freshest branch below path, path included.
func (m *Manager) SetThreadFor(ctx context.Context, path string) (*Message, error) {
	thread, err := m.GetThreadEndingAt(ctx, path)
	if err != nil || len(thread) == 0 {
		if err == nil {
			log.Warn().Str("path", path).Msg("no messages in thread")
		}
		return nil, err
	}
	return m.activateLatest(ctx, thread[len(thread)-1].Path)
}

// LatestLeaf descends from path, always taking the child with the newest
// CreatedAt, and returns the leaf it ends on. Ties go to the later path.
func (m *Manager) LatestLeaf(ctx context.Context, path string) (*Message, error) {
	view, err := m.tree.GetTree(ctx, path)
	if err != nil || view == nil {
		return nil, err
	}
	single, ok := view.(mptree.SingleTree[MessageData])
	if !ok {
		return nil, nil
	}

	branch := single.Root
	for len(branch.Children) > 0 {
		branch = latestChild(branch.Children)
	}
	return branch.Node, nil
}

// latestChild relies on children being in path order.
func latestChild(children []*mptree.Branch[MessageData]) *mptree.Branch[MessageData] {
	best := children[0]
	for _, c := range children[1:] {
		if c.Node.Data.CreatedAt >= best.Node.Data.CreatedAt {
			best = c
		}
	}
	return best
}

func (m *Manager) activateLatest(ctx context.Context, from string) (*Message, error) {
	leaf, err := m.LatestLeaf(ctx, from)
	if err != nil || leaf == nil {
		return nil, err
	}
	return leaf, m.activate(ctx, leaf)
}

// activate makes msg the active message. nil clears the selection.
func (m *Manager) activate(ctx context.Context, msg *Message) error {
	if msg == nil {
		m.session.setActive(nil, nil)
		return nil
	}
	thread, err := m.GetThreadEndingAt(ctx, msg.Path)
	if err != nil {
		return err
	}
	m.session.setActive(msg, thread)
	return nil
}

// ActiveThread returns the thread ending at the active message.
func (m *Manager) ActiveThread() []*Message {
	return m.session.Thread()
}

// IsAncestorOfActiveThread reports whether path is the active message or one
// of its ancestors.
func (m *Manager) IsAncestorOfActiveThread(path string) bool {
	active := m.session.Active()
	if active == nil {
		return false
	}
	return active.Path == path || mptree.IsDescendantPath(active.Path, path)
}

// =============================================================================
// Messages
// =============================================================================

// GetMessage looks up one message, nil when absent.
func (m *Manager) GetMessage(ctx context.Context, path string) (*Message, error) {
	return m.tree.GetNode(ctx, path)
}

// AddMessage stores data below parentPath ("" starts a new thread) and makes
// it the active message. CreatedAt defaults to now.
func (m *Manager) AddMessage(ctx context.Context, parentPath string, data MessageData) (*Message, error) {
	if data.CreatedAt == "" {
		data.CreatedAt = Timestamp(m.now())
	}
	msg, err := m.tree.AddNode(ctx, parentPath, data)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", msg.Path).Str("role", string(data.Role)).Msg("message added")

	if _, err := m.RefreshRoots(ctx); err != nil {
		return nil, err
	}
	return msg, m.activate(ctx, msg)
}

// EditMessage keeps the original and stores the edited text as a new sibling,
// which becomes the active message.
func (m *Manager) EditMessage(ctx context.Context, path, text string) (*Message, error) {
	orig, err := m.tree.GetNode(ctx, path)
	if err != nil {
		return nil, err
	}
	if orig == nil {
		return nil, errors.Wrapf(ErrMessageNotFound, "edit %s", path)
	}

	data := orig.Data
	data.Message = text
	data.CreatedAt = ""
	return m.AddMessage(ctx, orig.ParentPath(), data)
}

// SiblingPosition returns the zero-based index of path among its siblings
// and the sibling count, the message itself included.
func (m *Manager) SiblingPosition(ctx context.Context, path string) (index, count int, err error) {
	siblings, err := m.siblings(ctx, path)
	if err != nil || siblings == nil {
		return 0, 0, err
	}
	index = slices.IndexFunc(siblings, func(s *Message) bool { return s.Path == path })
	return max(index, 0), len(siblings), nil
}

// GoToSibling moves offset places along the siblings of path and activates
// the freshest branch below the sibling it lands on.
func (m *Manager) GoToSibling(ctx context.Context, path string, offset int) (*Message, error) {
	siblings, err := m.siblings(ctx, path)
	if err != nil {
		return nil, err
	}
	if siblings == nil {
		return nil, errors.Wrapf(ErrMessageNotFound, "siblings of %s", path)
	}

	index := slices.IndexFunc(siblings, func(s *Message) bool { return s.Path == path })
	target := index + offset
	if index < 0 || target < 0 || target >= len(siblings) {
		return nil, errors.Wrapf(ErrNoSibling, "%s offset %d", path, offset)
	}
	return m.SetThreadFor(ctx, siblings[target].Path)
}

func (m *Manager) siblings(ctx context.Context, path string) ([]*Message, error) {
	msg, err := m.tree.GetNode(ctx, path)
	if err != nil || msg == nil {
		return nil, err
	}
	return msg.Siblings(ctx, true)
}

// MoveMessage re-parents path and its replies below newParentPath and returns
// the message at its new path. An active message inside the moved subtree
// follows it.
func (m *Manager) MoveMessage(ctx context.Context, path, newParentPath string) (*Message, error) {
	msg, err := m.tree.GetNode(ctx, path)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.Wrapf(ErrMessageNotFound, "move %s", path)
	}

	oldThread := msg.ThreadID
	if err := msg.Move(ctx, newParentPath); err != nil {
		return nil, err
	}
	if err := m.dropEmptyThreadTitle(ctx, oldThread); err != nil {
		return nil, err
	}
	if _, err := m.RefreshRoots(ctx); err != nil {
		return nil, err
	}

	if active := m.session.Active(); active != nil &&
		(active.Path == path || mptree.IsDescendantPath(active.Path, path)) {
		moved, err := m.tree.GetNode(ctx, msg.Path+strings.TrimPrefix(active.Path, path))
		if err != nil {
			return nil, err
		}
		if err := m.activate(ctx, moved); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// CascadeDelete removes path and everything below it. The thread's title is
// dropped with its last message. If the active message was removed, the
// selection falls back to the deleted message's parent, or is cleared when
// the parent does not exist.
func (m *Manager) CascadeDelete(ctx context.Context, path string) error {
	threadID := mptree.ThreadID(path)
	if err := m.tree.DeleteNode(ctx, path); err != nil {
		return err
	}
	log.Debug().Str("path", path).Msg("subtree deleted")

	if err := m.dropEmptyThreadTitle(ctx, threadID); err != nil {
		return err
	}
	if _, err := m.RefreshRoots(ctx); err != nil {
		return err
	}

	active := m.session.Active()
	if active == nil || (active.Path != path && !mptree.IsDescendantPath(active.Path, path)) {
		return nil
	}

	parent, err := m.tree.GetNode(ctx, mptree.ParentPath(path))
	if err != nil {
		return err
	}
	if parent == nil {
		return m.activate(ctx, nil)
	}
	_, err = m.activateLatest(ctx, parent.Path)
	return err
}

func (m *Manager) dropEmptyThreadTitle(ctx context.Context, threadID int64) error {
	remaining, err := m.tree.CountThread(ctx, threadID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	return m.titles.delete(ctx, threadID)
}

// =============================================================================
// Conversation list
// =============================================================================

// RefreshRoots rebuilds the conversation list, generating titles for threads
// that have none. Generation failures are logged and leave UnknownTitle.
func (m *Manager) RefreshRoots(ctx context.Context) ([]RootSummary, error) {
	nodes, err := m.tree.GetRootNodes(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ThreadID
	}
	titles, err := m.titles.get(ctx, ids)
	if err != nil {
		return nil, err
	}

	roots := make([]RootSummary, len(nodes))
	for i, n := range nodes {
		title, ok := titles[n.ThreadID]
		if !ok {
			title = m.generateTitle(ctx, n.ThreadID)
		}
		if title == "" {
			title = UnknownTitle
		}
		roots[i] = RootSummary{ThreadID: n.ThreadID, Title: title, Path: n.Path, Latest: n.Data}
	}

	m.session.setRoots(roots)
	return roots, nil
}

func (m *Manager) generateTitle(ctx context.Context, threadID int64) string {
	if m.titler == nil {
		return ""
	}
	logger := log.With().Int64("thread", threadID).Logger()

	messages, err := m.ThreadMessages(ctx, threadID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load thread for title")
		return ""
	}
	title, err := m.titler.GenerateTitle(ctx, messages)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to generate title")
		return ""
	}
	if title == "" {
		return ""
	}
	if err := m.titles.set(ctx, threadID, title); err != nil {
		logger.Warn().Err(err).Msg("failed to store title")
	}
	return title
}

// ThreadMessages returns every message of a thread, all branches, in path order.
func (m *Manager) ThreadMessages(ctx context.Context, threadID int64) ([]MessageData, error) {
	view, err := m.tree.GetTree(ctx, mptree.JoinPath(threadID))
	if err != nil || view == nil {
		return nil, err
	}
	var out []MessageData
	for _, b := range view.Branches() {
		b.Walk(func(b *mptree.Branch[MessageData], _ int) bool {
			out = append(out, b.Node.Data)
			return true
		})
	}
	return out, nil
}

// Title returns the stored title of a thread, "" when none is stored.
func (m *Manager) Title(ctx context.Context, threadID int64) (string, error) {
	titles, err := m.titles.get(ctx, []int64{threadID})
	if err != nil {
		return "", err
	}
	return titles[threadID], nil
}

// UpdateThreadTitle stores a user-chosen title and refreshes the list.
func (m *Manager) UpdateThreadTitle(ctx context.Context, threadID int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title must not be empty")
	}
	if err := m.titles.set(ctx, threadID, title); err != nil {
		return err
	}
	_, err := m.RefreshRoots(ctx)
	return err
}

// =============================================================================
// Search
// =============================================================================

// Search finds messages containing query. limit <= 0 uses DefaultSearchLimit.
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return m.index.search(ctx, query, limit)
}

// OpenSearchResult makes the message at path active exactly, without
// descending to a newer branch.
func (m *Manager) OpenSearchResult(ctx context.Context, path string) (*Message, error) {
	msg, err := m.tree.GetNode(ctx, path)
	if err != nil || msg == nil {
		return nil, err
	}
	return msg, m.activate(ctx, msg)
}

// Reindex rebuilds the full-text index from the message table.
func (m *Manager) Reindex(ctx context.Context) error {
	return m.index.rebuild(ctx)
}
