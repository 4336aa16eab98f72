package idgen

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Layout is the time layout of an experiment identifier (YYYYMMDDHHMMSS).
const Layout = "20060102150405"

// Policy selects how a colliding identifier is replaced.
type Policy string

const (
	// PolicySuffix appends -1, -2, ... to the colliding base identifier.
	PolicySuffix Policy = "suffix"
	// PolicyRetry waits for the next clock second and generates again.
	PolicyRetry Policy = "retry"
)

// ValidPolicies returns the accepted collision policies.
func ValidPolicies() []string {
	return []string{string(PolicySuffix), string(PolicyRetry)}
}

// Generator formats clock readings as experiment identifiers.
type Generator struct {
	clock Clock
	loc   *time.Location
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(g *Generator) { g.clock = c }
}

// WithLocation formats identifiers in loc instead of local time.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// New returns a Generator using local time and the system clock by default.
func New(opts ...Option) *Generator {
	g := &Generator{clock: SystemClock{}, loc: time.Local}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// New returns the identifier for the current second. A clock that cannot
// produce a time is a fatal configuration error.
func (g *Generator) New() string {
	now := g.clock.Now()
	if now.IsZero() {
		panic("idgen: clock returned the zero time")
	}
	return now.In(g.loc).Format(Layout)
}

// Suffixed returns base-n, the n-th alternative for a colliding base.
func (g *Generator) Suffixed(base string, n int) string {
	return fmt.Sprintf("%s-%d", base, n)
}

// NextSecond blocks until the clock has moved past the second of prev and
// returns the identifier for the new second.
func (g *Generator) NextSecond(ctx context.Context, prev string) (string, error) {
	for {
		now := g.clock.Now()
		next := now.Truncate(time.Second).Add(time.Second)
		if err := g.clock.Sleep(ctx, next.Sub(now)); err != nil {
			return "", err
		}
		id := g.New()
		if id != prev {
			return id, nil
		}
	}
}

// Candidates returns a function yielding successive identifiers under
// policy: the first call returns the clock identifier, each later call the
// replacement for a collision on the previous one.
func (g *Generator) Candidates(policy Policy) func(ctx context.Context) (string, error) {
	var base, last string
	attempt := 0
	return func(ctx context.Context) (string, error) {
		defer func() { attempt++ }()
		if attempt == 0 {
			base = g.New()
			last = base
			return last, nil
		}
		switch policy {
		case PolicyRetry:
			id, err := g.NextSecond(ctx, last)
			if err != nil {
				return "", err
			}
			last = id
		default:
			last = g.Suffixed(base, attempt)
		}
		return last, nil
	}
}

// Valid reports whether id can be used as a mailbox address component.
func Valid(id string) bool {
	return id != "" && !strings.ContainsAny(id, "_/\\") && id != "." && id != ".."
}
