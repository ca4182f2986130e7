package convo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"natillera-bot/internal/receipt"
	"natillera-bot/internal/repo"
	"natillera-bot/internal/session"

	"go.mau.fi/whatsmeow/types"
)

// resolvePayment turns an identified partner plus a parsed receipt into a
// ledger action. When the amount matches a sponsored partner's fee rather
// than the payer's own, a disambiguation session is opened instead of
// posting anything.
func (e *Engine) resolvePayment(ctx context.Context, chat types.JID, senderPhone string, partner *repo.Partner, detected int64, parsed receipt.Parsed, imageRef string, sponsorHints []int) {
	fee := e.feeFor(partner)
	if detected != fee {
		sponsored, err := e.deps.Directory.SponsoredBy(ctx, partner.ID)
		if err != nil {
			e.deps.Logger.Error("failed listing sponsored partners", "error", err)
			sponsored = nil
		}

		if len(sponsored) > 0 {
			if detected > fee && len(sponsorHints) > 0 {
				e.postWithSponsors(ctx, chat, partner, detected, parsed, imageRef, pickByRaffle(sponsored, sponsorHints))
				return
			}
			if candidates := sponsorCandidates(sponsored, detected); len(candidates) > 0 {
				e.askSponsorChoice(ctx, chat, senderPhone, partner, detected, parsed, imageRef, candidates)
				return
			}
		}
	}

	msg, _ := e.postPayment(ctx, partner, detected, fee, parsed, imageRef, "")
	e.send(ctx, chat, msg)
}

// postWithSponsors covers the payer's own fee and spreads the excess over
// the named sponsored partners in the order given, capping each slice at
// that sponsor's fee.
func (e *Engine) postWithSponsors(ctx context.Context, chat types.JID, partner *repo.Partner, detected int64, parsed receipt.Parsed, imageRef string, sponsors []repo.Partner) {
	var replies []string

	fee := e.feeFor(partner)
	msg, ok := e.postPayment(ctx, partner, fee, fee, parsed, imageRef, "")
	replies = append(replies, msg)
	if !ok {
		e.send(ctx, chat, strings.Join(replies, "\n\n"))
		return
	}

	allocations, leftover := distributeExcess(detected-fee, sponsors)
	allocated := map[string]struct{}{}
	for _, alloc := range allocations {
		allocated[alloc.partner.ID] = struct{}{}
		forceStatus := ""
		if alloc.amount < alloc.partner.MonthlyFee {
			forceStatus = e.cfg.PartialSponsorStatus
		}
		sponsorMsg, _ := e.postPayment(ctx, &alloc.partner, alloc.amount, alloc.partner.MonthlyFee, parsed, imageRef, forceStatus)
		replies = append(replies, sponsorMsg)
	}

	if leftover > 0 {
		var eligible []repo.Partner
		for _, s := range sponsors {
			if _, done := allocated[s.ID]; !done {
				eligible = append(eligible, s)
			}
		}
		replies = append(replies, msgExcessLeftover(leftover, eligible))
	}

	e.send(ctx, chat, strings.Join(replies, "\n\n"))
}

func (e *Engine) askSponsorChoice(ctx context.Context, chat types.JID, senderPhone string, partner *repo.Partner, detected int64, parsed receipt.Parsed, imageRef string, candidates []repo.Partner) {
	payload := session.AwaitingSponsor{
		PartnerID:      partner.ID,
		DetectedAmount: detected,
		Receipt:        parsed,
		ImageRef:       imageRef,
	}
	for _, c := range candidates {
		payload.Candidates = append(payload.Candidates, session.SponsorCandidate{
			PartnerID:    c.ID,
			Name:         c.Name,
			RaffleNumber: c.RaffleNumber,
			Fee:          c.MonthlyFee,
		})
	}

	// Key on the sender, not the identified partner: when the payer was
	// named via caption the two phones differ, and the reply arrives from
	// the sender.
	sess := session.NewAwaitingSponsor(senderPhone, payload, e.cfg.Now())
	if err := e.deps.Sessions.Save(ctx, sess); err != nil {
		e.deps.Logger.Error("failed saving session", "error", err)
		e.send(ctx, chat, msgSessionSaveFailed)
		return
	}
	e.transition(session.StateAwaitingSponsor)
	e.send(ctx, chat, msgSponsorPrompt(detected, payload.Candidates))
}

// postPayment records one payment following the create/accumulate rules
// and returns the user-facing reply. The boolean reports whether a ledger
// write happened.
func (e *Engine) postPayment(ctx context.Context, partner *repo.Partner, amount, expected int64, parsed receipt.Parsed, imageRef, forceStatus string) (string, bool) {
	period, err := e.deps.Ledger.ActivePeriod(ctx)
	if err != nil {
		e.deps.Logger.Error("failed loading active period", "error", err)
		e.deps.Metrics.Errors.WithLabelValues("ledger").Inc()
		return msgApology, false
	}

	now := e.cfg.Now()
	month, year := targetPeriod(parsed.Date, now)

	existing, err := e.deps.Ledger.FindPayment(ctx, partner.ID, period.ID, month, year)
	switch {
	case err == nil:
		if existing.Amount >= existing.ExpectedAmount {
			return msgAlreadyPaid(partner, month, year), false
		}
		note := auditNote("Abono adicional", amount, parsed)
		updated, accErr := e.deps.Ledger.AccumulatePayment(ctx, existing.ID, amount, note)
		if accErr != nil {
			e.deps.Logger.Error("failed accumulating payment", "error", accErr)
			e.deps.Metrics.Errors.WithLabelValues("ledger").Inc()
			return msgApology, false
		}
		e.deps.Metrics.PaymentsRecorded.WithLabelValues("accumulate", updated.Status).Inc()
		return msgPaymentAccumulated(partner, updated), true

	case errors.Is(err, repo.ErrNotFound):
		// The window is the running month, not the month the payment
		// posts to. A receipt dated in a stale month must raise a date
		// issue instead of validating against its own month.
		window := receipt.Window{Month: now.Month(), Year: now.Year()}
		result := receipt.Validate(parsed, expected, &window, e.cfg.Rules)

		issues := append([]string{}, parsed.Errors...)
		issues = append(issues, result.Issues...)

		status := repo.PaymentStatusVerified
		if len(issues) > 0 {
			status = repo.PaymentStatusPending
		}
		if forceStatus != "" {
			status = forceStatus
		}

		notes := auditNote("Pago registrado", amount, parsed)
		if len(issues) > 0 {
			notes += "\n" + strings.Join(issues, "\n")
		}

		created, createErr := e.deps.Ledger.CreatePayment(ctx, repo.Payment{
			PartnerID:      partner.ID,
			PeriodID:       period.ID,
			Month:          month,
			Year:           year,
			Amount:         amount,
			ExpectedAmount: expected,
			Status:         status,
			Notes:          &notes,
			ReceiptRef:     refOrNil(imageRef),
		})
		if createErr != nil {
			e.deps.Logger.Error("failed creating payment", "error", createErr)
			e.deps.Metrics.Errors.WithLabelValues("ledger").Inc()
			return msgApology, false
		}
		e.deps.Metrics.PaymentsRecorded.WithLabelValues("create", created.Status).Inc()
		return msgPaymentCreated(partner, created, issues), true

	default:
		e.deps.Logger.Error("failed finding payment", "error", err)
		e.deps.Metrics.Errors.WithLabelValues("ledger").Inc()
		return msgApology, false
	}
}

// feeFor returns the partner's monthly fee, falling back to the
// configured default for rows that have no fee assigned yet.
func (e *Engine) feeFor(p *repo.Partner) int64 {
	if p.MonthlyFee > 0 {
		return p.MonthlyFee
	}
	return e.cfg.DefaultMonthlyFee
}

// targetPeriod picks the payment month from the receipt date, falling
// back to the engine clock.
func targetPeriod(date *receipt.Day, now time.Time) (int, int) {
	if date != nil {
		return int(date.Month), date.Year
	}
	return int(now.Month()), now.Year()
}

// sponsorCandidates returns the sponsored partners whose fee equals the
// detected amount.
func sponsorCandidates(sponsored []repo.Partner, detected int64) []repo.Partner {
	var candidates []repo.Partner
	for _, s := range sponsored {
		if s.MonthlyFee == detected {
			candidates = append(candidates, s)
		}
	}
	return candidates
}

type allocation struct {
	partner repo.Partner
	amount  int64
}

// distributeExcess splits an excess over sponsors in order, capping each
// allocation at that sponsor's fee and stopping when the excess runs out.
// The remainder, if any, is returned for follow-up.
func distributeExcess(excess int64, sponsors []repo.Partner) ([]allocation, int64) {
	var allocations []allocation
	for _, sponsor := range sponsors {
		if excess <= 0 {
			break
		}
		amount := sponsor.MonthlyFee
		if amount > excess {
			amount = excess
		}
		allocations = append(allocations, allocation{partner: sponsor, amount: amount})
		excess -= amount
	}
	return allocations, excess
}

// pickByRaffle maps raffle-number hints onto sponsored partners,
// preserving hint order and dropping numbers that match nobody.
func pickByRaffle(sponsored []repo.Partner, hints []int) []repo.Partner {
	byRaffle := map[int]repo.Partner{}
	for _, s := range sponsored {
		byRaffle[s.RaffleNumber] = s
	}
	var picked []repo.Partner
	for _, hint := range hints {
		if s, ok := byRaffle[hint]; ok {
			picked = append(picked, s)
		}
	}
	return picked
}

func auditNote(action string, amount int64, parsed receipt.Parsed) string {
	note := fmt.Sprintf("%s: %s vía %s", action, receipt.FormatCOP(amount), parsed.Issuer)
	if parsed.Reference != "" {
		note += fmt.Sprintf(" (ref %s)", parsed.Reference)
	}
	note += fmt.Sprintf(", confianza %.0f%%", parsed.Confidence*100)
	return note
}

func refOrNil(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}
