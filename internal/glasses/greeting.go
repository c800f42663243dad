package glasses

import (
	"fmt"
	"sync"
	"time"
)

// DefaultGreetingCooldown is how long a user is not greeted again after a
// reconnect.
const DefaultGreetingCooldown = 5 * time.Minute

// GreetingGate remembers when each user was last greeted so that flaky
// connections do not repeat the greeting. Safe for concurrent use.
type GreetingGate struct {
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewGreetingGate returns a gate with the given cooldown. Zero or negative
// uses [DefaultGreetingCooldown].
func NewGreetingGate(cooldown time.Duration) *GreetingGate {
	if cooldown <= 0 {
		cooldown = DefaultGreetingCooldown
	}
	return &GreetingGate{
		cooldown: cooldown,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Allow reports whether userID should be greeted now and, if so, records the
// greeting.
func (g *GreetingGate) Allow(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if t, ok := g.last[userID]; ok && now.Sub(t) < g.cooldown {
		return false
	}
	g.last[userID] = now

	// Forget users whose cooldown has passed.
	for id, t := range g.last {
		if now.Sub(t) >= g.cooldown {
			delete(g.last, id)
		}
	}
	return true
}

// Greeting is the text spoken when a session becomes ready.
func Greeting(wakePhrase string) string {
	return fmt.Sprintf("Memento ready. Say '%s' to capture a conversation.", wakePhrase)
}
