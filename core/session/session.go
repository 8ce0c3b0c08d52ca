// Package session is the portal's per-user state: who is signed in, the
// API token, open note editors, cached guard results and the notification poller.
// Handlers reach it through the request context (see FromContext).
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/note"
	"github.com/trezcool/masomo-portal/core/notification"
	"github.com/trezcool/masomo-portal/core/user"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrEditorNotFound = errors.New("editor not found")
)

type Session struct {
	ID        string
	Token     string
	Profile   user.Profile
	CreatedAt time.Time

	mu       sync.Mutex
	editMu   sync.Mutex // serializes editor operations
	lastSeen time.Time
	editors  map[string]*note.Editor
	guards   map[string]*guard.Pending
	poller   *notification.Poller
	closed   bool
}

func New(token string, profile user.Profile) *Session {
	now := core.NowFunc()
	return &Session{
		ID:        uuid.NewString(),
		Token:     token,
		Profile:   profile,
		CreatedAt: now,
		lastSeen:  now,
		editors:   make(map[string]*note.Editor),
		guards:    make(map[string]*guard.Pending),
	}
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = core.NowFunc()
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SetProfile replaces the profile, e.g. after the first-login password change.
func (s *Session) SetProfile(p user.Profile) {
	s.mu.Lock()
	s.Profile = p
	s.guards = make(map[string]*guard.Pending)
	s.mu.Unlock()
}

func (s *Session) User() user.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Profile
}

// OpenEditor keeps e in the session and returns its handle.
func (s *Session) OpenEditor(e *note.Editor) string {
	handle := uuid.NewString()
	s.mu.Lock()
	s.editors[handle] = e
	s.mu.Unlock()
	return handle
}

func (s *Session) CloseEditor(handle string) {
	s.mu.Lock()
	delete(s.editors, handle)
	s.mu.Unlock()
}

// EditorHandles lists the open editors' handles, sorted.
func (s *Session) EditorHandles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]string, 0, len(s.editors))
	for h := range s.editors {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

// WithEditor runs fn on the editor. Editor operations of one session never interleave.
func (s *Session) WithEditor(handle string, fn func(e *note.Editor) error) error {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	s.mu.Lock()
	e, ok := s.editors[handle]
	s.mu.Unlock()
	if !ok {
		return ErrEditorNotFound
	}
	return fn(e)
}

// Guard returns the cached run of the named guard, starting a new one with start when
// none is cached, or when the cached one resolved more than ttl ago.
func (s *Session) Guard(name string, ttl time.Duration, start func() *guard.Pending) *guard.Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.guards[name]; ok {
		if !p.Done() {
			return p
		}
		if v := p.View(); core.NowFunc().Sub(v.CheckedAt) < ttl {
			return p
		}
	}
	p := start()
	s.guards[name] = p
	return p
}

// ForgetGuards drops the cached guard results, e.g. after the subscription was renewed.
func (s *Session) ForgetGuards() {
	s.mu.Lock()
	s.guards = make(map[string]*guard.Pending)
	s.mu.Unlock()
}

// StartPoller attaches p and starts it unless the session is closed or already has one.
func (s *Session) StartPoller(ctx context.Context, p *notification.Poller) *notification.Poller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return p
	}
	if s.poller == nil {
		s.poller = p
		s.poller.Start(ctx)
	}
	return s.poller
}

func (s *Session) Poller() *notification.Poller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poller
}

// Close stops the poller and drops open editors. Unsaved changes are lost.
func (s *Session) Close() {
	s.mu.Lock()
	p := s.poller
	s.poller, s.closed = nil, true
	s.editors = make(map[string]*note.Editor)
	s.guards = make(map[string]*guard.Pending)
	s.mu.Unlock()

	if p != nil {
		p.Stop()
	}
}

type ctxKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request's session.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// Repository keeps the live sessions.
type Repository interface {
	Save(s *Session) error
	Get(id string) (*Session, error)
	Delete(id string) error
	// Sweep closes and removes sessions idle for longer than idle, returning how many.
	Sweep(idle time.Duration) int
	Count() int
}
