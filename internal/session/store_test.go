package session

import (
	"testing"
	"time"
)

func TestTTLFor(t *testing.T) {
	pending := 10 * time.Minute
	auth := time.Hour

	if got := TTLFor(StateAuthenticated, pending, auth); got != auth {
		t.Fatalf("authenticated ttl = %v, want %v", got, auth)
	}
	for _, state := range []State{StateAuthPending, StateAwaitingPartner, StateAwaitingSponsor} {
		if got := TTLFor(state, pending, auth); got != pending {
			t.Fatalf("%s ttl = %v, want %v", state, got, pending)
		}
	}
}

func TestConstructorsPopulateExactlyOneVariant(t *testing.T) {
	now := time.Now()
	sessions := []*Session{
		NewAuthPending("573001112233", "menu", now),
		NewAwaitingPartner("573001112233", AwaitingPartner{DetectedAmount: 150000}, now),
		NewAwaitingSponsor("573001112233", AwaitingSponsor{DetectedAmount: 150000}, now),
		NewAuthenticated("573001112233", "u1", "partner", now),
	}

	for _, sess := range sessions {
		populated := 0
		if sess.Auth != nil {
			populated++
		}
		if sess.Partner != nil {
			populated++
		}
		if sess.Sponsor != nil {
			populated++
		}
		if sess.Menu != nil {
			populated++
		}
		if populated != 1 {
			t.Fatalf("state %s has %d payloads, want exactly 1", sess.State, populated)
		}
	}
}
