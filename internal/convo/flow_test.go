package convo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"natillera-bot/internal/metrics"
	"natillera-bot/internal/receipt"
	"natillera-bot/internal/repo"
	"natillera-bot/internal/session"

	"go.mau.fi/whatsmeow/types"
)

type fakeDirectory struct {
	partners []*repo.Partner
}

func (d *fakeDirectory) PartnerByPhone(_ context.Context, phone string) (*repo.Partner, error) {
	for _, p := range d.partners {
		if p.Phone == phone {
			return p, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (d *fakeDirectory) PartnerByRaffle(_ context.Context, number int) (*repo.Partner, error) {
	for _, p := range d.partners {
		if p.RaffleNumber == number {
			return p, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (d *fakeDirectory) PartnerByID(_ context.Context, id string) (*repo.Partner, error) {
	for _, p := range d.partners {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (d *fakeDirectory) SponsoredBy(_ context.Context, sponsorID string) ([]repo.Partner, error) {
	var out []repo.Partner
	for _, p := range d.partners {
		if p.SponsorID != nil && *p.SponsorID == sponsorID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeLedger struct {
	period   repo.Period
	payments []*repo.Payment
	nextID   int
}

func (l *fakeLedger) ActivePeriod(_ context.Context) (*repo.Period, error) {
	return &l.period, nil
}

func (l *fakeLedger) FindPayment(_ context.Context, partnerID, periodID string, month, year int) (*repo.Payment, error) {
	for _, p := range l.payments {
		if p.PartnerID == partnerID && p.PeriodID == periodID && p.Month == month && p.Year == year {
			return p, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (l *fakeLedger) CreatePayment(_ context.Context, p repo.Payment) (*repo.Payment, error) {
	l.nextID++
	p.ID = fmt.Sprintf("pay-%d", l.nextID)
	p.Difference = p.Amount - p.ExpectedAmount
	stored := p
	l.payments = append(l.payments, &stored)
	return &stored, nil
}

func (l *fakeLedger) AccumulatePayment(_ context.Context, id string, addAmount int64, note string) (*repo.Payment, error) {
	for _, p := range l.payments {
		if p.ID == id {
			p.Amount += addAmount
			p.Difference = p.Amount - p.ExpectedAmount
			p.Status = repo.PaymentStatusPending
			if p.Notes == nil {
				p.Notes = &note
			} else {
				joined := *p.Notes + "\n" + note
				p.Notes = &joined
			}
			return p, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (l *fakeLedger) PendingPayments(_ context.Context, _ string) ([]repo.PendingPayment, error) {
	return nil, nil
}

type fakeCredentials struct {
	users []*repo.User
}

func (c *fakeCredentials) ValidateCredential(_ context.Context, phone, pin string) (*repo.User, error) {
	for _, u := range c.users {
		if u.Phone == phone && u.PIN == pin && u.Active {
			out := *u
			out.PIN = ""
			return &out, nil
		}
	}
	return nil, repo.ErrInvalidCredential
}

type fakeSessions struct {
	sessions map[string]*session.Session
	locked   map[string]bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: map[string]*session.Session{},
		locked:   map[string]bool{},
	}
}

func (s *fakeSessions) Get(_ context.Context, phone string) (*session.Session, error) {
	return s.sessions[phone], nil
}

func (s *fakeSessions) Save(_ context.Context, sess *session.Session) error {
	s.sessions[sess.Phone] = sess
	return nil
}

func (s *fakeSessions) SaveKeepTTL(_ context.Context, sess *session.Session) error {
	s.sessions[sess.Phone] = sess
	return nil
}

func (s *fakeSessions) Delete(_ context.Context, phone string) error {
	delete(s.sessions, phone)
	return nil
}

func (s *fakeSessions) Lock(_ context.Context, phone string) error {
	s.locked[phone] = true
	return nil
}

func (s *fakeSessions) IsLocked(_ context.Context, phone string) (bool, error) {
	return s.locked[phone], nil
}

func (s *fakeSessions) Unlock(_ context.Context, phone string) error {
	delete(s.locked, phone)
	return nil
}

type fakeSender struct {
	sent []string
}

func (s *fakeSender) SendText(_ context.Context, _ types.JID, text string) error {
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSender) last() string {
	if len(s.sent) == 0 {
		return ""
	}
	return s.sent[len(s.sent)-1]
}

type engineFixture struct {
	engine   *Engine
	dir      *fakeDirectory
	ledger   *fakeLedger
	sessions *fakeSessions
	sender   *fakeSender
	creds    *fakeCredentials
}

func newEngineFixture(now time.Time) *engineFixture {
	f := &engineFixture{
		dir:      &fakeDirectory{},
		ledger:   &fakeLedger{period: repo.Period{ID: "period-1", Name: "Natillera 2026", Active: true}},
		sessions: newFakeSessions(),
		sender:   &fakeSender{},
		creds:    &fakeCredentials{},
	}
	f.engine = New(Deps{
		Directory:   f.dir,
		Ledger:      f.ledger,
		Credentials: f.creds,
		Sessions:    f.sessions,
		Sender:      f.sender,
		Metrics:     metrics.Registry("natillera"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, EngineConfig{
		Rules: receipt.Rules{
			AcceptedIssuers: []receipt.Issuer{receipt.IssuerBancolombia, receipt.IssuerNequi},
			ExpectedAccount: "33177135742",
			GraceDueDay:     5,
		},
		TypicalFee:        receipt.Range{Min: 50_000, Max: 500_000},
		DefaultMonthlyFee: 150_000,
		MaxPINAttempts:    3,
		Now:               func() time.Time { return now },
	})
	return f
}

// cleanReceipt builds a receipt that passes every business rule for the
// fixture's expected account.
func cleanReceipt(amount int64) receipt.Parsed {
	return receipt.Parsed{
		Issuer:           receipt.IssuerBancolombia,
		Amount:           &amount,
		Reference:        "987654",
		RecipientAccount: "331-771-35742",
		Confidence:       0.9,
	}
}

var testNow = time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC)

func TestPINChallengeLockout(t *testing.T) {
	f := newEngineFixture(testNow)
	const phone = "3001112222"
	f.creds.users = []*repo.User{{ID: "u1", Phone: phone, PIN: "1234", Role: "partner", Active: true}}
	chat := types.NewJID(phone, types.DefaultUserServer)
	ctx := context.Background()

	f.engine.handleText(ctx, phone, chat, "hola")
	if sess := f.sessions.sessions[phone]; sess == nil || sess.State != session.StateAuthPending {
		t.Fatalf("expected auth_pending session, got %+v", f.sessions.sessions[phone])
	}
	if f.sender.last() != msgPINPrompt {
		t.Fatalf("expected PIN prompt, got %q", f.sender.last())
	}

	f.engine.handleText(ctx, phone, chat, "0000")
	if f.sender.last() != msgPINRetry(2) {
		t.Fatalf("after first failure: %q", f.sender.last())
	}
	f.engine.handleText(ctx, phone, chat, "0000")
	if f.sender.last() != msgPINRetry(1) {
		t.Fatalf("after second failure: %q", f.sender.last())
	}

	f.engine.handleText(ctx, phone, chat, "0000")
	if f.sender.last() != msgLockedOut {
		t.Fatalf("after third failure: %q", f.sender.last())
	}
	if !f.sessions.locked[phone] {
		t.Fatal("phone should be locked")
	}
	if f.sessions.sessions[phone] != nil {
		t.Fatal("challenge session should be deleted on lockout")
	}

	// A locked phone cannot open a new challenge.
	f.engine.handleText(ctx, phone, chat, "hola")
	if f.sender.last() != msgLockedOut {
		t.Fatalf("locked phone restarted a challenge: %q", f.sender.last())
	}
	if f.sessions.sessions[phone] != nil {
		t.Fatal("no session should exist for a locked phone")
	}
}

func TestPINSuccessOpensMenu(t *testing.T) {
	f := newEngineFixture(testNow)
	const phone = "3001112222"
	f.creds.users = []*repo.User{{ID: "u1", Phone: phone, PIN: "1234", Role: "partner", Active: true}}
	f.dir.partners = []*repo.Partner{
		{ID: "p1", Name: "Marta", Phone: phone, RaffleNumber: 7, MonthlyFee: 150_000, Active: true},
	}
	chat := types.NewJID(phone, types.DefaultUserServer)
	ctx := context.Background()

	f.engine.handleText(ctx, phone, chat, "hola")
	f.engine.handleText(ctx, phone, chat, "1234")

	sess := f.sessions.sessions[phone]
	if sess == nil || sess.State != session.StateAuthenticated {
		t.Fatalf("expected authenticated session, got %+v", sess)
	}
	if f.sender.last() != msgMenu("partner") {
		t.Fatalf("expected menu after login, got %q", f.sender.last())
	}

	f.engine.handleText(ctx, phone, chat, "2")
	if !strings.Contains(f.sender.last(), "7") {
		t.Fatalf("raffle reply should name number 7: %q", f.sender.last())
	}
}

func TestCancelDiscardsPendingReceipt(t *testing.T) {
	f := newEngineFixture(testNow)
	const phone = "3004445555"
	chat := types.NewJID(phone, types.DefaultUserServer)
	ctx := context.Background()

	f.sessions.sessions[phone] = session.NewAwaitingPartner(phone, session.AwaitingPartner{
		Receipt:        cleanReceipt(150_000),
		DetectedAmount: 150_000,
	}, testNow)

	f.engine.handleText(ctx, phone, chat, "CANCELAR")
	if f.sessions.sessions[phone] != nil {
		t.Fatal("cancel should delete the session")
	}
	if len(f.ledger.payments) != 0 {
		t.Fatalf("cancel must not record payments, got %d", len(f.ledger.payments))
	}
	if f.sender.last() != msgCancelled {
		t.Fatalf("expected cancel confirmation, got %q", f.sender.last())
	}

	f.engine.handleText(ctx, phone, chat, "CANCELAR")
	if f.sender.last() != msgNothingToCancel {
		t.Fatalf("second cancel: %q", f.sender.last())
	}
}

func TestPartnerReplyResolvesByRaffle(t *testing.T) {
	f := newEngineFixture(testNow)
	f.dir.partners = []*repo.Partner{
		{ID: "p1", Name: "Marta", Phone: "3117778888", RaffleNumber: 5, MonthlyFee: 150_000, Active: true},
	}
	const sender = "3009990000"
	chat := types.NewJID(sender, types.DefaultUserServer)
	ctx := context.Background()

	f.sessions.sessions[sender] = session.NewAwaitingPartner(sender, session.AwaitingPartner{
		Receipt:        cleanReceipt(150_000),
		DetectedAmount: 150_000,
	}, testNow)

	// Unknown raffle number keeps the session alive and re-prompts.
	f.engine.handleText(ctx, sender, chat, "9")
	if f.sender.last() != msgIdentifyRetry() {
		t.Fatalf("expected identify retry, got %q", f.sender.last())
	}
	if f.sessions.sessions[sender] == nil {
		t.Fatal("session must survive an unmatched reply")
	}

	f.engine.handleText(ctx, sender, chat, "5")
	if f.sessions.sessions[sender] != nil {
		t.Fatal("session should be deleted after identification")
	}
	if len(f.ledger.payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(f.ledger.payments))
	}
	created := f.ledger.payments[0]
	if created.PartnerID != "p1" || created.Amount != 150_000 || created.Status != repo.PaymentStatusVerified {
		t.Fatalf("payment = %+v", created)
	}
	if created.Month != 8 || created.Year != 2026 {
		t.Fatalf("undated receipt should post to the current month, got %02d/%d", created.Month, created.Year)
	}
}

func TestAccumulationForcesPending(t *testing.T) {
	f := newEngineFixture(testNow)
	partner := &repo.Partner{ID: "p1", Name: "Marta", Phone: "3117778888", RaffleNumber: 5, MonthlyFee: 150_000, Active: true}
	f.dir.partners = []*repo.Partner{partner}
	f.ledger.payments = []*repo.Payment{{
		ID: "pay-1", PartnerID: "p1", PeriodID: "period-1",
		Month: 8, Year: 2026, Amount: 50_000, ExpectedAmount: 150_000,
		Status: repo.PaymentStatusPending,
	}}
	chat := types.NewJID(partner.Phone, types.DefaultUserServer)

	f.engine.resolvePayment(context.Background(), chat, partner.Phone, partner, 100_000, cleanReceipt(100_000), "", nil)

	updated := f.ledger.payments[0]
	if updated.Amount != 150_000 {
		t.Fatalf("amount = %d, want 150000", updated.Amount)
	}
	if updated.Status != repo.PaymentStatusPending {
		t.Fatalf("status = %q, want pending", updated.Status)
	}
	if updated.Notes == nil || !strings.Contains(*updated.Notes, "Abono adicional") {
		t.Fatalf("accumulation should leave an audit note, got %v", updated.Notes)
	}
	if !strings.Contains(f.sender.last(), "Sumamos tu abono") {
		t.Fatalf("reply = %q", f.sender.last())
	}
}

func TestSponsorChoiceKeysOnSender(t *testing.T) {
	f := newEngineFixture(testNow)
	sponsorID := "p1"
	payer := &repo.Partner{ID: "p1", Name: "Pedro", Phone: "3117778888", RaffleNumber: 3, MonthlyFee: 150_000, Active: true}
	sponsored := &repo.Partner{ID: "p2", Name: "Luisa", RaffleNumber: 9, MonthlyFee: 100_000, SponsorID: &sponsorID, Active: true}
	f.dir.partners = []*repo.Partner{payer, sponsored}

	// Group chat: the chat JID user is not the sender's phone.
	groupChat := types.NewJID("12036304567", types.GroupServer)
	ctx := context.Background()

	f.engine.resolvePayment(ctx, groupChat, payer.Phone, payer, 100_000, cleanReceipt(100_000), "", nil)

	sess := f.sessions.sessions[payer.Phone]
	if sess == nil || sess.State != session.StateAwaitingSponsor {
		t.Fatalf("expected awaiting_sponsor session under the sender phone, got %+v", sess)
	}
	if len(f.ledger.payments) != 0 {
		t.Fatal("nothing should post before the sponsor choice")
	}

	f.engine.handleText(ctx, payer.Phone, groupChat, "SI")
	if f.sessions.sessions[payer.Phone] != nil {
		t.Fatal("session should be deleted after the choice")
	}
	if len(f.ledger.payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(f.ledger.payments))
	}
	created := f.ledger.payments[0]
	if created.PartnerID != "p2" || created.ExpectedAmount != 100_000 || created.Status != repo.PaymentStatusVerified {
		t.Fatalf("payment = %+v", created)
	}
}

func TestStaleReceiptDateLeavesPaymentPending(t *testing.T) {
	f := newEngineFixture(testNow)
	partner := &repo.Partner{ID: "p1", Name: "Marta", Phone: "3117778888", RaffleNumber: 5, MonthlyFee: 150_000, Active: true}
	f.dir.partners = []*repo.Partner{partner}
	chat := types.NewJID(partner.Phone, types.DefaultUserServer)

	parsed := cleanReceipt(150_000)
	day := receipt.NewDay(2026, time.January, 31)
	parsed.Date = &day

	f.engine.resolvePayment(context.Background(), chat, partner.Phone, partner, 150_000, parsed, "", nil)

	if len(f.ledger.payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(f.ledger.payments))
	}
	created := f.ledger.payments[0]
	if created.Month != 1 || created.Year != 2026 {
		t.Fatalf("payment should post to the receipt month, got %02d/%d", created.Month, created.Year)
	}
	if created.Status != repo.PaymentStatusPending {
		t.Fatalf("a receipt dated months before the running period must not verify, got %q", created.Status)
	}
	if created.Notes == nil || !strings.Contains(*created.Notes, "mes distinto") {
		t.Fatalf("expected a date issue in the notes, got %v", created.Notes)
	}
}

func TestDefaultFeeFallback(t *testing.T) {
	f := newEngineFixture(testNow)
	partner := &repo.Partner{ID: "p1", Name: "Marta", Phone: "3117778888", RaffleNumber: 5, Active: true}
	f.dir.partners = []*repo.Partner{partner}
	chat := types.NewJID(partner.Phone, types.DefaultUserServer)

	f.engine.resolvePayment(context.Background(), chat, partner.Phone, partner, 150_000, cleanReceipt(150_000), "", nil)

	if len(f.ledger.payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(f.ledger.payments))
	}
	created := f.ledger.payments[0]
	if created.ExpectedAmount != 150_000 || created.Status != repo.PaymentStatusVerified {
		t.Fatalf("fee fallback not applied: %+v", created)
	}
}
