package conversation

import (
	"slices"
	"sync"
)

// EventKind tells observers which part of the session changed.
type EventKind int

const (
	// ActiveChanged fires when the active message (and its thread) changes.
	ActiveChanged EventKind = iota
	// RootsChanged fires when the conversation list is refreshed.
	RootsChanged
)

func (k EventKind) String() string {
	switch k {
	case ActiveChanged:
		return "active"
	case RootsChanged:
		return "roots"
	default:
		return "unknown"
	}
}

// Event is a snapshot of the session taken right after a change.
type Event struct {
	Kind   EventKind
	Active *Message
	Thread []*Message
	Roots  []RootSummary
}

// Session owns the selection state of one chat window: the active message,
// the thread ending at it and the conversation list.
type Session struct {
	mu     sync.Mutex
	active *Message
	thread []*Message
	roots  []RootSummary

	observers map[int]func(Event)
	nextID    int
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{observers: make(map[int]func(Event))}
}

// Subscribe registers fn for every future change. The returned func removes it.
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Active returns the active message, nil when none is selected.
func (s *Session) Active() *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Thread returns the messages from the thread start to the active message.
func (s *Session) Thread() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.thread...)
}

// Roots returns the last refreshed conversation list.
func (s *Session) Roots() []RootSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RootSummary(nil), s.roots...)
}

// Clear drops the active selection, as when starting a new chat.
func (s *Session) Clear() {
	s.setActive(nil, nil)
}

func (s *Session) setActive(active *Message, thread []*Message) {
	s.mu.Lock()
	s.active = active
	s.thread = thread
	ev := s.snapshot(ActiveChanged)
	s.mu.Unlock()
	s.notify(ev)
}

func (s *Session) setRoots(roots []RootSummary) {
	s.mu.Lock()
	s.roots = roots
	ev := s.snapshot(RootsChanged)
	s.mu.Unlock()
	s.notify(ev)
}

// snapshot must be called with mu held.
func (s *Session) snapshot(kind EventKind) Event {
	return Event{
		Kind:   kind,
		Active: s.active,
		Thread: append([]*Message(nil), s.thread...),
		Roots:  append([]RootSummary(nil), s.roots...),
	}
}

// notify runs observers outside the lock so they may call back into the session.
func (s *Session) notify(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.observers))
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.observers[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
