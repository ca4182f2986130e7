package convo

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"natillera-bot/internal/receipt"
	"natillera-bot/internal/repo"
	"natillera-bot/internal/session"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

func (e *Engine) handleImage(ctx context.Context, evt *events.Message, phone string, chat types.JID) {
	img := evt.Message.ImageMessage
	caption := img.GetCaption()

	data, mime, err := e.deps.Media.DownloadMedia(ctx, evt.Message)
	if err != nil {
		e.deps.Logger.Error("failed downloading media", "error", err)
		e.deps.Metrics.Errors.WithLabelValues("media").Inc()
		e.send(ctx, chat, msgApology)
		return
	}

	// The transient WhatsApp URL is the fallback reference when the
	// archive is disabled or unavailable.
	imageRef := img.GetURL()
	if e.deps.Archive != nil {
		if ref, upErr := e.deps.Archive.Upload(ctx, receiptKey(mime), data, mime); upErr != nil {
			e.deps.Logger.Warn("failed archiving receipt image", "error", upErr)
			e.deps.Metrics.Errors.WithLabelValues("storage").Inc()
		} else {
			imageRef = ref
		}
	}

	parsed := e.extractReceipt(ctx, data, mime)
	e.deps.Metrics.ReceiptsParsed.WithLabelValues(string(parsed.Issuer)).Inc()

	if parsed.Amount == nil {
		e.send(ctx, chat, msgNoAmount)
		return
	}
	detected := *parsed.Amount

	partner, sponsorHints := e.resolveSender(ctx, phone, caption)
	if partner == nil {
		sess := session.NewAwaitingPartner(phone, session.AwaitingPartner{
			Receipt:        parsed,
			ImageRef:       imageRef,
			DetectedAmount: detected,
		}, e.cfg.Now())
		if err := e.deps.Sessions.Save(ctx, sess); err != nil {
			e.deps.Logger.Error("failed saving session", "error", err)
			e.send(ctx, chat, msgSessionSaveFailed)
			return
		}
		e.transition(session.StateAwaitingPartner)
		e.send(ctx, chat, msgIdentifyPrompt(detected))
		return
	}

	e.resolvePayment(ctx, chat, phone, partner, detected, parsed, imageRef, sponsorHints)
}

func (e *Engine) extractReceipt(ctx context.Context, data []byte, mime string) receipt.Parsed {
	res, err := e.deps.OCR.ExtractText(ctx, data, mime)
	if err != nil {
		e.deps.Logger.Error("ocr extraction failed", "error", err)
		e.deps.Metrics.Errors.WithLabelValues("ocr").Inc()
		return receipt.Parsed{
			Issuer: receipt.IssuerUnknown,
			Errors: []string{"no fue posible leer el comprobante"},
		}
	}
	if !res.TextFound {
		return receipt.Parsed{
			Issuer: receipt.IssuerUnknown,
			Errors: []string{"la imagen no contiene texto legible"},
		}
	}
	return e.deps.Parser.Parse(res.RawText)
}

// resolveSender identifies the paying partner: registered phone first,
// then caption hints (a phone number, then a raffle number). Caption
// numbers not consumed by identification come back as sponsor hints.
func (e *Engine) resolveSender(ctx context.Context, phone, caption string) (*repo.Partner, []int) {
	numbers := captionNumbers(caption)

	partner, err := e.deps.Directory.PartnerByPhone(ctx, phone)
	if err == nil {
		return partner, numbers
	}
	if !errors.Is(err, repo.ErrNotFound) {
		e.deps.Logger.Error("partner lookup failed", "error", err)
		return nil, nil
	}

	if capPhone := captionPhone(caption); capPhone != "" {
		if partner, err := e.deps.Directory.PartnerByPhone(ctx, capPhone); err == nil {
			return partner, numbers
		}
	}
	if len(numbers) > 0 {
		if partner, err := e.deps.Directory.PartnerByRaffle(ctx, numbers[0]); err == nil {
			return partner, numbers[1:]
		}
	}
	return nil, nil
}

var (
	captionNumberPattern = regexp.MustCompile(`\b\d{1,3}\b`)
	captionPhonePattern  = regexp.MustCompile(`\b\d{10}\b`)
)

// captionNumbers extracts small integers (raffle numbers) from a caption,
// in order of appearance, without duplicates.
func captionNumbers(caption string) []int {
	seen := map[int]struct{}{}
	var numbers []int
	for _, m := range captionNumberPattern.FindAllString(caption, -1) {
		n, err := strconv.Atoi(m)
		if err != nil || n <= 0 {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	return numbers
}

func captionPhone(caption string) string {
	return captionPhonePattern.FindString(caption)
}
