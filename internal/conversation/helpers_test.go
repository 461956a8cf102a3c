package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/mammal/internal/store"
)

// clock advances one second per reading.
type clock struct {
	t time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	db, err := store.NewSQLiteStore()
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { db.Close() })

	opts = append([]Option{WithClock(newClock().now)}, opts...)
	m, err := NewManager(context.Background(), db, "messages", opts...)
	require.NoError(t, err)
	return m
}

// restore stores a message at an explicit path with an explicit timestamp.
func restore(t *testing.T, m *Manager, path, text, createdAt string) {
	t.Helper()
	data := NewMessage(RoleUser, text)
	data.CreatedAt = createdAt
	_, err := m.Tree().Restore(context.Background(), path, data)
	require.NoError(t, err, path)
}

func add(t *testing.T, m *Manager, parent string, role Role, text string) *Message {
	t.Helper()
	msg, err := m.AddMessage(context.Background(), parent, NewMessage(role, text))
	require.NoError(t, err)
	return msg
}

func pathsOf(msgs []*Message) []string {
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = msg.Path
	}
	return out
}
