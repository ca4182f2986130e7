package session

import (
	"time"

	"natillera-bot/internal/receipt"
)

// State tags the active variant of a conversation session.
type State string

const (
	StateAuthPending     State = "auth_pending"
	StateAwaitingPartner State = "awaiting_partner"
	StateAwaitingSponsor State = "awaiting_sponsor"
	StateAuthenticated   State = "authenticated"
)

// AuthPending tracks an in-flight PIN challenge.
type AuthPending struct {
	AttemptsUsed   int    `json:"attempts_used"`
	PendingCommand string `json:"pending_command,omitempty"`
}

// AwaitingPartner holds a parsed receipt whose sender could not be matched
// to a partner yet.
type AwaitingPartner struct {
	Receipt        receipt.Parsed `json:"receipt"`
	ImageRef       string         `json:"image_ref,omitempty"`
	DetectedAmount int64          `json:"detected_amount"`
}

// SponsorCandidate is one sponsored partner whose fee matched the detected
// amount.
type SponsorCandidate struct {
	PartnerID    string `json:"partner_id"`
	Name         string `json:"name"`
	RaffleNumber int    `json:"raffle_number"`
	Fee          int64  `json:"fee"`
}

// AwaitingSponsor holds an ambiguous excess payment pending a choice.
type AwaitingSponsor struct {
	PartnerID      string             `json:"partner_id"`
	DetectedAmount int64              `json:"detected_amount"`
	Receipt        receipt.Parsed     `json:"receipt"`
	ImageRef       string             `json:"image_ref,omitempty"`
	Candidates     []SponsorCandidate `json:"candidates"`
}

// Authenticated marks a verified user with an optionally open menu.
type Authenticated struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	MenuActive bool   `json:"menu_active"`
}

// Session is the single per-phone conversation document. Exactly one
// payload matching State is populated; storing the variants under one key
// keeps the one-session-per-sender invariant structural.
type Session struct {
	Phone     string           `json:"phone"`
	State     State            `json:"state"`
	Auth      *AuthPending     `json:"auth,omitempty"`
	Partner   *AwaitingPartner `json:"partner,omitempty"`
	Sponsor   *AwaitingSponsor `json:"sponsor,omitempty"`
	Menu      *Authenticated   `json:"menu,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewAuthPending starts a PIN challenge session.
func NewAuthPending(phone, pendingCommand string, now time.Time) *Session {
	return &Session{
		Phone:     phone,
		State:     StateAuthPending,
		Auth:      &AuthPending{PendingCommand: pendingCommand},
		CreatedAt: now,
	}
}

// NewAwaitingPartner starts a partner-identification session.
func NewAwaitingPartner(phone string, payload AwaitingPartner, now time.Time) *Session {
	return &Session{
		Phone:     phone,
		State:     StateAwaitingPartner,
		Partner:   &payload,
		CreatedAt: now,
	}
}

// NewAwaitingSponsor starts a sponsor-disambiguation session.
func NewAwaitingSponsor(phone string, payload AwaitingSponsor, now time.Time) *Session {
	return &Session{
		Phone:     phone,
		State:     StateAwaitingSponsor,
		Sponsor:   &payload,
		CreatedAt: now,
	}
}

// NewAuthenticated starts an authenticated session with the menu open.
func NewAuthenticated(phone, userID, role string, now time.Time) *Session {
	return &Session{
		Phone:     phone,
		State:     StateAuthenticated,
		Menu:      &Authenticated{UserID: userID, Role: role, MenuActive: true},
		CreatedAt: now,
	}
}
