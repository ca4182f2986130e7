package repo

import (
	"context"
	"io/fs"
)

// Repository defines the persistence surface the conversation engine and
// HTTP layer consume. *Postgres is the production implementation.
type Repository interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Partner directory
	PartnerByPhone(ctx context.Context, phone string) (*Partner, error)
	PartnerByRaffle(ctx context.Context, number int) (*Partner, error)
	PartnerByID(ctx context.Context, id string) (*Partner, error)
	SponsoredBy(ctx context.Context, sponsorID string) ([]Partner, error)

	// Payment ledger
	ActivePeriod(ctx context.Context) (*Period, error)
	FindPayment(ctx context.Context, partnerID, periodID string, month, year int) (*Payment, error)
	CreatePayment(ctx context.Context, p Payment) (*Payment, error)
	AccumulatePayment(ctx context.Context, id string, addAmount int64, note string) (*Payment, error)
	PendingPayments(ctx context.Context, periodID string) ([]PendingPayment, error)

	// Credential store
	ValidateCredential(ctx context.Context, phone, pin string) (*User, error)
}

var _ Repository = (*Postgres)(nil)
