package receipt

import (
	"fmt"
	"strings"
	"time"
)

// Rules carries the injected business configuration for receipt
// validation. Nothing here reads ambient state; the caller supplies the
// expected account and calendar context so validation stays pure.
type Rules struct {
	AcceptedIssuers []Issuer
	ExpectedAccount string
	GraceDueDay     int
}

// Window names the payment period a receipt should fall into.
type Window struct {
	Month time.Month
	Year  int
}

// Result reports business-rule validation. Valid is true iff Issues is
// empty.
type Result struct {
	Valid  bool
	Issues []string
}

// Validate applies the business rules to a parsed receipt. An unaccepted
// issuer rejects outright with a single issue; every other rule appends
// independently. A nil window skips the date check.
func Validate(parsed Parsed, expectedAmount int64, window *Window, rules Rules) Result {
	if !issuerAccepted(parsed.Issuer, rules.AcceptedIssuers) {
		return Result{Issues: []string{
			fmt.Sprintf("el comprobante no proviene de una entidad aceptada (%s)", parsed.Issuer),
		}}
	}

	var issues []string

	if parsed.Amount != nil && *parsed.Amount != expectedAmount {
		issues = append(issues, fmt.Sprintf(
			"el monto %s no coincide con la cuota esperada %s",
			FormatCOP(*parsed.Amount), FormatCOP(expectedAmount)))
	}

	// Destination evidence fails closed: a receipt that never shows the
	// target account cannot silently pass.
	if parsed.RecipientAccount == "" {
		issues = append(issues, "el comprobante no muestra la cuenta destino")
	} else if rules.ExpectedAccount != "" &&
		NormalizeAccount(parsed.RecipientAccount) != NormalizeAccount(rules.ExpectedAccount) {
		issues = append(issues, fmt.Sprintf(
			"la cuenta destino %s no corresponde a la cuenta de la natillera", parsed.RecipientAccount))
	}

	if window != nil && parsed.Date != nil {
		if issue := checkDateWindow(*parsed.Date, *window, rules.GraceDueDay); issue != "" {
			issues = append(issues, issue)
		}
	}

	return Result{Valid: len(issues) == 0, Issues: issues}
}

// NormalizeAccount strips dashes, spaces and dots so differently formatted
// renditions of the same account number compare equal.
func NormalizeAccount(account string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '.':
			return -1
		}
		return r
	}, account)
}

func issuerAccepted(issuer Issuer, accepted []Issuer) bool {
	for _, a := range accepted {
		if issuer == a {
			return true
		}
	}
	return false
}

// checkDateWindow accepts receipts dated inside the target month, plus the
// first GraceDueDay days of the following month. The wording separates a
// late receipt beyond the grace window from one in an unrelated month.
func checkDateWindow(date Day, window Window, graceDueDay int) string {
	if date.Year == window.Year && date.Month == window.Month {
		return ""
	}

	nextMonth := window.Month + 1
	nextYear := window.Year
	if nextMonth > time.December {
		nextMonth = time.January
		nextYear++
	}

	if date.Year == nextYear && date.Month == nextMonth {
		if date.Day <= graceDueDay {
			return ""
		}
		return fmt.Sprintf(
			"el comprobante del %02d/%02d/%d supera el plazo de gracia (hasta el día %d del mes siguiente)",
			date.Day, date.Month, date.Year, graceDueDay)
	}

	return fmt.Sprintf(
		"el comprobante del %02d/%02d/%d corresponde a un mes distinto al período %02d/%d",
		date.Day, date.Month, date.Year, window.Month, window.Year)
}
