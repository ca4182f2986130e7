package convo

import (
	"context"
	"time"

	"natillera-bot/internal/ocr"
	"natillera-bot/internal/receipt"
	"natillera-bot/internal/repo"
	"natillera-bot/internal/session"

	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
)

// Directory is the partner lookup surface of the repository.
type Directory interface {
	PartnerByPhone(ctx context.Context, phone string) (*repo.Partner, error)
	PartnerByRaffle(ctx context.Context, number int) (*repo.Partner, error)
	PartnerByID(ctx context.Context, id string) (*repo.Partner, error)
	SponsoredBy(ctx context.Context, sponsorID string) ([]repo.Partner, error)
}

// Ledger is the payment surface of the repository.
type Ledger interface {
	ActivePeriod(ctx context.Context) (*repo.Period, error)
	FindPayment(ctx context.Context, partnerID, periodID string, month, year int) (*repo.Payment, error)
	CreatePayment(ctx context.Context, p repo.Payment) (*repo.Payment, error)
	AccumulatePayment(ctx context.Context, id string, addAmount int64, note string) (*repo.Payment, error)
	PendingPayments(ctx context.Context, periodID string) ([]repo.PendingPayment, error)
}

// Credentials validates phone+PIN pairs.
type Credentials interface {
	ValidateCredential(ctx context.Context, phone, pin string) (*repo.User, error)
}

// Sessions is the conversation state store.
type Sessions interface {
	Get(ctx context.Context, phone string) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session) error
	SaveKeepTTL(ctx context.Context, sess *session.Session) error
	Delete(ctx context.Context, phone string) error
	Lock(ctx context.Context, phone string) error
	IsLocked(ctx context.Context, phone string) (bool, error)
}

// Sender delivers outbound messages. Sends are fire-and-forget: the
// engine logs failures and never unwinds a completed transition.
type Sender interface {
	SendText(ctx context.Context, to types.JID, text string) error
}

// MediaDownloader fetches inbound media bytes.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, msg *waProto.Message) ([]byte, string, error)
}

// TextExtractor is the opaque OCR service.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte, mime string) (ocr.Result, error)
}

// Uploader archives receipt images. A nil Uploader disables archiving.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// EngineConfig carries the injected business configuration. Now is the
// engine clock; tests pin it.
type EngineConfig struct {
	Rules                receipt.Rules
	TypicalFee           receipt.Range
	DefaultMonthlyFee    int64
	MaxPINAttempts       int
	PartialSponsorStatus string
	Now                  func() time.Time
}
