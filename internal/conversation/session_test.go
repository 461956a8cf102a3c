package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionNotifiesObservers(t *testing.T) {
	m := newTestManager(t)
	var events []Event
	cancel := m.Session().Subscribe(func(ev Event) {
		events = append(events, ev)
	})

	q := add(t, m, "", RoleUser, "hello")

	require.Len(t, events, 2)
	assert.Equal(t, RootsChanged, events[0].Kind)
	assert.Len(t, events[0].Roots, 1)
	assert.Equal(t, ActiveChanged, events[1].Kind)
	assert.Equal(t, q.Path, events[1].Active.Path)
	assert.Equal(t, []string{q.Path}, pathsOf(events[1].Thread))

	cancel()
	cancel()
	add(t, m, q.Path, RoleAssistant, "hi")
	assert.Len(t, events, 2, "cancelled observers hear nothing")
}

func TestSessionObserversRunInOrder(t *testing.T) {
	s := NewSession()
	var order []string
	s.Subscribe(func(Event) { order = append(order, "first") })
	s.Subscribe(func(Event) { order = append(order, "second") })

	s.Clear()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSessionObserverMayReadSession(t *testing.T) {
	m := newTestManager(t)
	var seen string
	m.Session().Subscribe(func(ev Event) {
		if ev.Kind == ActiveChanged && m.Session().Active() != nil {
			seen = m.Session().Active().Path
		}
	})

	add(t, m, "", RoleUser, "hello")
	assert.Equal(t, "1.1", seen)
}

func TestSessionSnapshotsAreCopies(t *testing.T) {
	m := newTestManager(t)
	add(t, m, "", RoleUser, "hello")

	thread := m.Session().Thread()
	thread[0] = nil
	assert.NotNil(t, m.Session().Thread()[0])

	roots := m.Session().Roots()
	roots[0].Title = "changed"
	assert.NotEqual(t, "changed", m.Session().Roots()[0].Title)
}

func TestSharedSession(t *testing.T) {
	shared := NewSession()
	m := newTestManager(t, WithSession(shared))
	assert.Same(t, shared, m.Session())

	add(t, m, "", RoleUser, "hello")
	require.NotNil(t, shared.Active())

	shared.Clear()
	assert.Nil(t, m.Session().Active())
	assert.False(t, m.IsAncestorOfActiveThread("1.1"))

	_, err := m.SetActiveThread(context.Background(), "1.1")
	require.NoError(t, err)
	assert.Equal(t, "1.1", shared.Active().Path)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "active", ActiveChanged.String())
	assert.Equal(t, "roots", RootsChanged.String())
	assert.Equal(t, "unknown", EventKind(9).String())
}
