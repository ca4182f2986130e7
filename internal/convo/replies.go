package convo

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"natillera-bot/internal/repo"
	"natillera-bot/internal/session"

	"go.mau.fi/whatsmeow/types"
)

// handlePartnerReply resolves an identification reply while a parsed
// receipt waits in the session. A reply that matches nobody gets a retry
// prompt without touching the session, so the original TTL keeps running.
func (e *Engine) handlePartnerReply(ctx context.Context, chat types.JID, sess *session.Session, text string) {
	kind, value := parseIdentification(text)
	if kind == identUnknown {
		e.send(ctx, chat, msgIdentifyRetry())
		return
	}

	var (
		partner *repo.Partner
		err     error
	)
	switch kind {
	case identRaffle:
		number, convErr := strconv.Atoi(value)
		if convErr != nil {
			e.send(ctx, chat, msgIdentifyRetry())
			return
		}
		partner, err = e.deps.Directory.PartnerByRaffle(ctx, number)
	case identPhone:
		partner, err = e.deps.Directory.PartnerByPhone(ctx, value)
	}

	if errors.Is(err, repo.ErrNotFound) {
		e.send(ctx, chat, msgIdentifyRetry())
		return
	}
	if err != nil {
		e.deps.Logger.Error("partner lookup failed", "error", err)
		e.deps.Metrics.Errors.WithLabelValues("directory").Inc()
		e.send(ctx, chat, msgApology)
		return
	}

	payload := sess.Partner
	if delErr := e.deps.Sessions.Delete(ctx, sess.Phone); delErr != nil {
		e.deps.Logger.Error("failed deleting session", "error", delErr)
	}
	e.resolvePayment(ctx, chat, sess.Phone, partner, payload.DetectedAmount, payload.Receipt, payload.ImageRef, nil)
}

// handleSponsorReply resolves the sponsor-disambiguation question. SI (or
// the candidate index when there are several) posts to the sponsored
// partner; NO posts to the payer's own account.
func (e *Engine) handleSponsorReply(ctx context.Context, chat types.JID, sess *session.Session, text string) {
	payload := sess.Sponsor
	answer := strings.ToUpper(strings.TrimSpace(text))

	var chosen *session.SponsorCandidate
	switch {
	case answer == "NO":
		// Falls through with chosen nil: the payment is for the payer.
	case len(payload.Candidates) == 1 && (answer == "SI" || answer == "SÍ"):
		chosen = &payload.Candidates[0]
	case len(payload.Candidates) > 1:
		idx, convErr := strconv.Atoi(answer)
		if convErr != nil || idx < 1 || idx > len(payload.Candidates) {
			e.send(ctx, chat, msgSponsorRetry(payload.Candidates))
			return
		}
		chosen = &payload.Candidates[idx-1]
	default:
		e.send(ctx, chat, msgSponsorRetry(payload.Candidates))
		return
	}

	if delErr := e.deps.Sessions.Delete(ctx, sess.Phone); delErr != nil {
		e.deps.Logger.Error("failed deleting session", "error", delErr)
	}

	targetID := payload.PartnerID
	expected := int64(0)
	if chosen != nil {
		targetID = chosen.PartnerID
		expected = chosen.Fee
	}

	partner, err := e.deps.Directory.PartnerByID(ctx, targetID)
	if err != nil {
		e.deps.Logger.Error("partner lookup failed", "error", err)
		e.deps.Metrics.Errors.WithLabelValues("directory").Inc()
		e.send(ctx, chat, msgApology)
		return
	}
	if chosen == nil {
		expected = e.feeFor(partner)
	}

	msg, _ := e.postPayment(ctx, partner, payload.DetectedAmount, expected, payload.Receipt, payload.ImageRef, "")
	e.send(ctx, chat, msg)
}
