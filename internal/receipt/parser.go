package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parsed is the immutable result of interpreting one receipt text. It is
// a pure function of the input: no clock or randomness feeds it.
type Parsed struct {
	Issuer           Issuer    `json:"issuer"`
	Amount           *int64    `json:"amount,omitempty"`
	Date             *Day `json:"date,omitempty"`
	Time             string    `json:"time,omitempty"`
	Reference        string    `json:"reference,omitempty"`
	SenderName       string    `json:"sender_name,omitempty"`
	RecipientName    string    `json:"recipient_name,omitempty"`
	RecipientAccount string    `json:"recipient_account,omitempty"`
	Status           string    `json:"status,omitempty"`
	Confidence       float64   `json:"confidence"`
	AllAmounts       []int64   `json:"all_amounts,omitempty"`
	Errors           []string  `json:"errors,omitempty"`
}

// Day is a calendar date without time-of-day or zone.
type Day struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// NewDay builds a calendar date value.
func NewDay(year int, month time.Month, day int) Day {
	return Day{Year: year, Month: month, Day: day}
}

// Parser classifies receipt texts against an ordered schema registry and
// extracts structured fields from the winning schema.
type Parser struct {
	schemas []Schema
	typical Range
}

// NewParser builds a parser over the given registry. The typical range is
// only consulted when no schema matches and an amount must be guessed.
func NewParser(schemas []Schema, typical Range) *Parser {
	return &Parser{schemas: schemas, typical: typical}
}

// Parse interprets raw OCR output into a Parsed receipt. It never fails:
// unknown layouts and missing fields degrade into validation errors and a
// lower confidence score.
func (p *Parser) Parse(raw string) Parsed {
	text := normalizeText(raw)
	parsed := Parsed{
		Issuer:     IssuerUnknown,
		AllAmounts: FindAllAmounts(text),
	}

	schema := p.classify(text)
	if schema == nil {
		if value := MostLikelyAmount(text, p.typical); value > 0 {
			parsed.Amount = &value
		}
		parsed.Errors = append(parsed.Errors, "tipo de comprobante desconocido")
		if parsed.Amount != nil {
			parsed.Confidence = 0.3
		}
		return parsed
	}

	parsed.Issuer = schema.Issuer
	parsed.Time = extractField(text, schema.Fields[FieldTime])
	parsed.Reference = extractField(text, schema.Fields[FieldReference])
	parsed.SenderName = extractField(text, schema.Fields[FieldSenderName])
	parsed.RecipientName = extractField(text, schema.Fields[FieldRecipientName])
	parsed.RecipientAccount = extractField(text, schema.Fields[FieldRecipientAccount])
	parsed.Status = extractField(text, schema.Fields[FieldStatus])

	if rawAmount := extractField(text, schema.Fields[FieldAmount]); rawAmount != "" {
		if value, ok := NormalizeAmount(rawAmount); ok {
			parsed.Amount = &value
		}
	}
	if parsed.Amount == nil {
		// Schema patterns missed; fall back to the bulk scan bounded by
		// what this issuer plausibly transfers.
		for _, value := range parsed.AllAmounts {
			if value >= schema.AmountRange.Min && value <= schema.AmountRange.Max {
				parsed.Amount = &value
				break
			}
		}
	}

	if rawDate := extractField(text, schema.Fields[FieldDate]); rawDate != "" {
		parsed.Date = parseSpanishDate(rawDate)
	}

	for _, field := range schema.Required {
		if !fieldPresent(&parsed, field) {
			parsed.Errors = append(parsed.Errors, fmt.Sprintf("falta el campo %s", field))
		}
	}
	if parsed.Amount != nil {
		if *parsed.Amount < schema.AmountRange.Min || *parsed.Amount > schema.AmountRange.Max {
			parsed.Errors = append(parsed.Errors, fmt.Sprintf("monto fuera de rango: %s", FormatCOP(*parsed.Amount)))
		}
	}

	parsed.Confidence = scoreConfidence(&parsed)
	return parsed
}

func (p *Parser) classify(text string) *Schema {
	for i := range p.schemas {
		for _, id := range p.schemas[i].Identifiers {
			if id.MatchString(text) {
				return &p.schemas[i]
			}
		}
	}
	return nil
}

func extractField(text string, patterns []*regexp.Regexp) string {
	for _, pattern := range patterns {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			if value := strings.TrimSpace(m[1]); value != "" {
				return value
			}
		}
	}
	return ""
}

func fieldPresent(p *Parsed, field Field) bool {
	switch field {
	case FieldAmount:
		return p.Amount != nil
	case FieldDate:
		return p.Date != nil
	case FieldTime:
		return p.Time != ""
	case FieldReference:
		return p.Reference != ""
	case FieldSenderName:
		return p.SenderName != ""
	case FieldRecipientName:
		return p.RecipientName != ""
	case FieldRecipientAccount:
		return p.RecipientAccount != ""
	case FieldStatus:
		return p.Status != ""
	}
	return false
}

// Confidence weights, summing to 100.
func scoreConfidence(p *Parsed) float64 {
	score := 0
	if p.Issuer != IssuerUnknown {
		score += 30
	}
	if p.Amount != nil {
		score += 30
	}
	if p.Reference != "" {
		score += 15
	}
	if p.Date != nil {
		score += 10
	}
	if p.SenderName != "" || p.RecipientName != "" {
		score += 10
	}
	if len(p.Errors) == 0 {
		score += 5
	}
	return float64(score) / 100
}

var (
	crlf       = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	spaceRuns  = regexp.MustCompile(`[ \t]+`)
	textualDay = regexp.MustCompile(`(?i)^(\d{1,2})\s+(?:de\s+)?([a-záéíóúñ]+)\.?\s+(?:de\s+)?(\d{4})$`)
	numericDay = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4})$`)
)

var spanishMonths = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"octubre": time.October, "noviembre": time.November, "diciembre": time.December,
	"ene": time.January, "feb": time.February, "mar": time.March,
	"abr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "ago": time.August, "sep": time.September, "sept": time.September,
	"oct": time.October, "nov": time.November, "dic": time.December,
}

func normalizeText(raw string) string {
	text := crlf.Replace(raw)
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// parseSpanishDate accepts "5 de enero de 2026", "5 ene 2026" and numeric
// "5/1/26" shapes. Two-digit years are assumed to be in the 2000s.
// Anything else yields nil rather than an error.
func parseSpanishDate(s string) *Day {
	s = strings.TrimSpace(s)

	if m := textualDay.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, ok := spanishMonths[strings.ToLower(m[2])]
		if !ok {
			return nil
		}
		year, _ := strconv.Atoi(m[3])
		return validDay(year, month, day)
	}

	if m := numericDay.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		monthNum, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		if monthNum < 1 || monthNum > 12 {
			return nil
		}
		return validDay(year, time.Month(monthNum), day)
	}

	return nil
}

func validDay(year int, month time.Month, day int) *Day {
	if day < 1 || day > 31 || year < 2000 || year > 2100 {
		return nil
	}
	d := Day{Year: year, Month: month, Day: day}
	return &d
}
