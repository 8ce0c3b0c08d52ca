// Package guard gates portal pages behind an external access check
// (authentication or subscription status).
//
// A guard is always in exactly one State: Loading until its check resolves,
// then Authorized or Blocked. How each check result maps to a state is decided
// by a Policy, a single table loaded from YAML and reloaded when the file changes.
package guard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
)

type State int

const (
	Loading State = iota
	Authorized
	Blocked
)

var stateNames = [...]string{"loading", "authorized", "blocked"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return errors.Errorf("unknown guard state %q", text)
}

// View is what a guarded page shows.
type View struct {
	State     State     `json:"state"`
	Condition Condition `json:"condition,omitempty"`
	Notice    string    `json:"notice,omitempty"`
	Redirect  string    `json:"redirect,omitempty"`
	Action    *Action   `json:"action,omitempty"`
	CheckedAt time.Time `json:"checkedAt,omitempty"`
}

func (v View) Authorized() bool { return v.State == Authorized }

// Result is the classified outcome of one check.
type Result struct {
	Condition Condition
	Detail    string
	Err       error
}

type (
	Checker interface {
		Check(ctx context.Context) Result
	}

	CheckerFunc func(ctx context.Context) Result

	PolicySource interface {
		Policy() Policy
	}

	// StaticPolicy is a PolicySource that never changes.
	StaticPolicy Policy
)

func (f CheckerFunc) Check(ctx context.Context) Result { return f(ctx) }

func (p StaticPolicy) Policy() Policy { return Policy(p) }

type Guard struct {
	name       string
	checker    Checker
	policies   PolicySource
	log        core.Logger
	retryDelay time.Duration
}

type Option func(g *Guard)

func WithLogger(log core.Logger) Option {
	return func(g *Guard) { g.log = log }
}

// WithRetryDelay sets the pause before the first retry; later retries wait proportionally longer.
func WithRetryDelay(d time.Duration) Option {
	return func(g *Guard) { g.retryDelay = d }
}

func New(name string, checker Checker, policies PolicySource, opts ...Option) *Guard {
	g := &Guard{
		name:       name,
		checker:    checker,
		policies:   policies,
		log:        core.NopLogger{},
		retryDelay: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) Name() string { return g.name }

// Run checks access and applies the policy, retrying as it allows. It never returns a Loading view.
func (g *Guard) Run(ctx context.Context) View {
	pol := g.policies.Policy()
	for attempt := 0; ; attempt++ {
		res := g.checker.Check(ctx)
		if res.Err != nil {
			g.log.Warn("guard check failed", res.Err, map[string]interface{}{
				"guard": g.name, "condition": string(res.Condition), "attempt": attempt,
			})
		}

		rule := pol.Decide(res.Condition)
		if rule.Outcome == Retry {
			if attempt < pol.MaxRetries && g.wait(ctx, attempt+1) {
				continue
			}
			rule = pol.RetryFallback
		}
		return g.view(res, rule)
	}
}

func (g *Guard) wait(ctx context.Context, n int) bool {
	t := time.NewTimer(g.retryDelay * time.Duration(n))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (g *Guard) view(res Result, rule Rule) View {
	v := View{Condition: res.Condition, CheckedAt: core.NowFunc()}
	switch rule.Outcome {
	case Allow:
		v.State = Authorized
	case Redirect:
		v.State, v.Redirect, v.Notice = Blocked, rule.URL, rule.Notice
	default:
		v.State, v.Notice, v.Action = Blocked, rule.Notice, rule.Action
	}
	return v
}

// Pending is a guard run in flight.
type Pending struct {
	done chan struct{}
	view View
}

// Start runs the guard in the background. ctx bounds the check itself.
func (g *Guard) Start(ctx context.Context) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.view = g.Run(ctx)
	}()
	return p
}

// Resolved returns a Pending that already holds v.
func Resolved(v View) *Pending {
	p := &Pending{done: make(chan struct{}), view: v}
	close(p.done)
	return p
}

func (p *Pending) Done() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// View is the current view: Loading until the run resolves.
func (p *Pending) View() View {
	if p.Done() {
		return p.view
	}
	return View{State: Loading}
}

// Wait blocks up to timeout for the run to resolve.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) View {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.done:
	case <-t.C:
	case <-ctx.Done():
	}
	return p.View()
}
