package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"natillera-bot/internal/metrics"
	"natillera-bot/internal/receipt"
	"natillera-bot/internal/repo"
	"natillera-bot/internal/session"
	"natillera-bot/internal/wa"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// Deps groups the collaborators the engine drives.
type Deps struct {
	Directory   Directory
	Ledger      Ledger
	Credentials Credentials
	Sessions    Sessions
	Sender      Sender
	Media       MediaDownloader
	OCR         TextExtractor
	Archive     Uploader
	Parser      *receipt.Parser
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Engine drives the per-sender conversation state machine. Each inbound
// message is an independent unit of work; the only shared state is the
// session store, keyed by phone, where last-write-wins for a single
// sender is accepted.
type Engine struct {
	deps Deps
	cfg  EngineConfig
}

// New builds the conversation engine.
func New(deps Deps, cfg EngineConfig) *Engine {
	if cfg.MaxPINAttempts <= 0 {
		cfg.MaxPINAttempts = 3
	}
	if cfg.PartialSponsorStatus == "" {
		cfg.PartialSponsorStatus = repo.PaymentStatusPending
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	deps.Logger = deps.Logger.With("component", "convo")
	return &Engine{deps: deps, cfg: cfg}
}

// ProcessMessage satisfies wa.MessageProcessor.
func (e *Engine) ProcessMessage(ctx context.Context, evt *events.Message) {
	msg := evt.Message
	if msg == nil {
		return
	}
	phone := evt.Info.Sender.User
	chat := evt.Info.Chat
	ctx = wa.WithReply(ctx, evt)

	if msg.ImageMessage != nil {
		e.handleImage(ctx, evt, phone, chat)
		return
	}

	text := msg.GetConversation()
	if text == "" && msg.ExtendedTextMessage != nil {
		text = msg.GetExtendedTextMessage().GetText()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	e.handleText(ctx, phone, chat, text)
}

func (e *Engine) handleText(ctx context.Context, phone string, chat types.JID, text string) {
	sess, err := e.deps.Sessions.Get(ctx, phone)
	if err != nil {
		e.deps.Logger.Error("failed loading session", "error", err)
		e.deps.Metrics.Errors.WithLabelValues("session").Inc()
		e.send(ctx, chat, msgApology)
		return
	}

	if isCancel(text) {
		if sess == nil {
			e.send(ctx, chat, msgNothingToCancel)
			return
		}
		if err := e.deps.Sessions.Delete(ctx, phone); err != nil {
			e.deps.Logger.Error("failed deleting session", "error", err)
		}
		e.send(ctx, chat, msgCancelled)
		return
	}

	if sess != nil {
		switch sess.State {
		case session.StateAuthPending:
			e.handlePINReply(ctx, chat, sess, text)
		case session.StateAwaitingPartner:
			e.handlePartnerReply(ctx, chat, sess, text)
		case session.StateAwaitingSponsor:
			e.handleSponsorReply(ctx, chat, sess, text)
		case session.StateAuthenticated:
			e.handleAuthenticatedText(ctx, chat, sess, text)
		}
		return
	}

	e.handleStatelessText(ctx, phone, chat, text)
}

func (e *Engine) handleStatelessText(ctx context.Context, phone string, chat types.JID, text string) {
	if !isIdentityCommand(text) {
		e.send(ctx, chat, msgHelp)
		return
	}

	locked, err := e.deps.Sessions.IsLocked(ctx, phone)
	if err != nil {
		e.deps.Logger.Error("failed checking lockout", "error", err)
		e.send(ctx, chat, msgApology)
		return
	}
	if locked {
		e.send(ctx, chat, msgLockedOut)
		return
	}

	sess := session.NewAuthPending(phone, "menu", e.cfg.Now())
	if err := e.deps.Sessions.Save(ctx, sess); err != nil {
		e.deps.Logger.Error("failed saving session", "error", err)
		e.send(ctx, chat, msgApology)
		return
	}
	e.transition(session.StateAuthPending)
	e.send(ctx, chat, msgPINPrompt)
}

func (e *Engine) handlePINReply(ctx context.Context, chat types.JID, sess *session.Session, text string) {
	phone := sess.Phone
	user, err := e.deps.Credentials.ValidateCredential(ctx, phone, text)
	if err != nil && !errors.Is(err, repo.ErrInvalidCredential) {
		e.deps.Logger.Error("credential validation failed", "error", err)
		e.deps.Metrics.Errors.WithLabelValues("credentials").Inc()
		e.send(ctx, chat, msgApology)
		return
	}

	if err != nil {
		sess.Auth.AttemptsUsed++
		if sess.Auth.AttemptsUsed >= e.cfg.MaxPINAttempts {
			_ = e.deps.Sessions.Delete(ctx, phone)
			if lockErr := e.deps.Sessions.Lock(ctx, phone); lockErr != nil {
				e.deps.Logger.Error("failed locking phone", "error", lockErr)
			}
			e.send(ctx, chat, msgLockedOut)
			return
		}
		// Re-save without refreshing the TTL: failed attempts are not
		// forward progress.
		if saveErr := e.deps.Sessions.SaveKeepTTL(ctx, sess); saveErr != nil {
			e.deps.Logger.Error("failed saving session", "error", saveErr)
		}
		e.send(ctx, chat, msgPINRetry(e.cfg.MaxPINAttempts-sess.Auth.AttemptsUsed))
		return
	}

	pending := sess.Auth.PendingCommand
	authed := session.NewAuthenticated(phone, user.ID, user.Role, e.cfg.Now())
	if err := e.deps.Sessions.Save(ctx, authed); err != nil {
		e.deps.Logger.Error("failed saving session", "error", err)
		e.send(ctx, chat, msgApology)
		return
	}
	e.transition(session.StateAuthenticated)

	// Carry forward whatever command triggered the challenge.
	if pending == "" {
		pending = "menu"
	}
	e.handleAuthenticatedText(ctx, chat, authed, pending)
}

func (e *Engine) handleAuthenticatedText(ctx context.Context, chat types.JID, sess *session.Session, text string) {
	if sess.Menu.MenuActive {
		if option, err := strconv.Atoi(text); err == nil {
			e.dispatchMenuOption(ctx, chat, sess, option)
			return
		}
	}

	if isIdentityCommand(text) {
		sess.Menu.MenuActive = true
		if err := e.deps.Sessions.Save(ctx, sess); err != nil {
			e.deps.Logger.Error("failed saving session", "error", err)
		}
		e.send(ctx, chat, msgMenu(sess.Menu.Role))
		return
	}

	e.send(ctx, chat, "Escribe *menu* para ver las opciones, o envía la foto de tu comprobante.")
}

func (e *Engine) dispatchMenuOption(ctx context.Context, chat types.JID, sess *session.Session, option int) {
	sess.Menu.MenuActive = false
	if err := e.deps.Sessions.Save(ctx, sess); err != nil {
		e.deps.Logger.Error("failed saving session", "error", err)
	}

	switch option {
	case 1:
		e.sendAccountStatus(ctx, chat, sess.Phone)
	case 2:
		e.sendRaffleNumber(ctx, chat, sess.Phone)
	case 3:
		if sess.Menu.Role != "admin" {
			e.send(ctx, chat, "Esa opción no está disponible para tu usuario.")
			return
		}
		e.sendPendingReport(ctx, chat)
	default:
		e.send(ctx, chat, "Opción no válida. Escribe *menu* para ver las opciones.")
	}
}

func (e *Engine) sendAccountStatus(ctx context.Context, chat types.JID, phone string) {
	partner, err := e.deps.Directory.PartnerByPhone(ctx, phone)
	if err != nil {
		e.send(ctx, chat, "No encontramos un socio asociado a este número. Contacta al administrador.")
		return
	}
	period, err := e.deps.Ledger.ActivePeriod(ctx)
	if err != nil {
		e.deps.Logger.Error("failed loading active period", "error", err)
		e.send(ctx, chat, msgApology)
		return
	}

	now := e.cfg.Now()
	month, year := int(now.Month()), now.Year()
	payment, err := e.deps.Ledger.FindPayment(ctx, partner.ID, period.ID, month, year)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		e.deps.Logger.Error("failed loading payment", "error", err)
		e.send(ctx, chat, msgApology)
		return
	}
	e.send(ctx, chat, msgAccountStatus(partner, payment, month, year))
}

func (e *Engine) sendRaffleNumber(ctx context.Context, chat types.JID, phone string) {
	partner, err := e.deps.Directory.PartnerByPhone(ctx, phone)
	if err != nil {
		e.send(ctx, chat, "No encontramos un socio asociado a este número. Contacta al administrador.")
		return
	}
	e.send(ctx, chat, fmt.Sprintf("Tu número de rifa es el %d. ¡Suerte! 🍀", partner.RaffleNumber))
}

func (e *Engine) sendPendingReport(ctx context.Context, chat types.JID) {
	period, err := e.deps.Ledger.ActivePeriod(ctx)
	if err != nil {
		e.deps.Logger.Error("failed loading active period", "error", err)
		e.send(ctx, chat, msgApology)
		return
	}
	pending, err := e.deps.Ledger.PendingPayments(ctx, period.ID)
	if err != nil {
		e.deps.Logger.Error("failed loading pending payments", "error", err)
		e.send(ctx, chat, msgApology)
		return
	}
	e.send(ctx, chat, msgPendingReport(pending))
}

func (e *Engine) send(ctx context.Context, to types.JID, text string) {
	if err := e.deps.Sender.SendText(ctx, to, text); err != nil {
		e.deps.Logger.Error("failed sending message", "error", err, "to", to.String())
		e.deps.Metrics.Errors.WithLabelValues("send").Inc()
	}
}

func (e *Engine) transition(state session.State) {
	e.deps.Metrics.SessionTransitions.WithLabelValues(string(state)).Inc()
}

var (
	identityCommands = map[string]struct{}{
		"menu": {}, "menú": {}, "hola": {}, "estado": {}, "rifa": {}, "reporte": {},
	}
	raffleReplyPattern = regexp.MustCompile(`(?i)^rifa\s*#?\s*(\d+)$`)
	phoneReplyPattern  = regexp.MustCompile(`^\d{10}$`)
	bareNumberPattern  = regexp.MustCompile(`^\d{1,3}$`)
)

func isCancel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "cancelar")
}

func isIdentityCommand(text string) bool {
	_, ok := identityCommands[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

type identKind int

const (
	identUnknown identKind = iota
	identRaffle
	identPhone
)

// parseIdentification interprets a partner-identification reply: an
// explicit raffle reference first, then a 10-digit phone, then a bare
// small integer as an implicit raffle number.
func parseIdentification(text string) (identKind, string) {
	text = strings.TrimSpace(text)
	if m := raffleReplyPattern.FindStringSubmatch(text); m != nil {
		return identRaffle, m[1]
	}
	if phoneReplyPattern.MatchString(text) {
		return identPhone, text
	}
	if bareNumberPattern.MatchString(text) {
		return identRaffle, text
	}
	return identUnknown, ""
}

func receiptKey(mime string) string {
	ext := "jpg"
	if i := strings.IndexByte(mime, '/'); i >= 0 && i+1 < len(mime) {
		ext = mime[i+1:]
	}
	return fmt.Sprintf("receipts/%s.%s", uuid.NewString(), ext)
}
