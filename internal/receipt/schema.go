package receipt

import "regexp"

// Issuer identifies which institution produced a receipt.
type Issuer string

const (
	IssuerBancolombia Issuer = "BANCOLOMBIA"
	IssuerNequi       Issuer = "NEQUI"
	IssuerUnknown     Issuer = "DESCONOCIDO"
)

// Field names a structured value extracted from a receipt.
type Field string

const (
	FieldAmount           Field = "amount"
	FieldDate             Field = "date"
	FieldTime             Field = "time"
	FieldReference        Field = "reference"
	FieldSenderName       Field = "sender_name"
	FieldRecipientName    Field = "recipient_name"
	FieldRecipientAccount Field = "recipient_account"
	FieldStatus           Field = "status"
)

// Schema describes one receipt layout as plain configuration: how to
// recognize it and, once recognized, where each field lives. Schemas are
// tried in registry order and the first identifier hit wins, so more
// specific layouts must be registered before generic ones.
type Schema struct {
	Issuer      Issuer
	Identifiers []*regexp.Regexp
	Fields      map[Field][]*regexp.Regexp
	Required    []Field
	AmountRange Range
}

// DefaultSchemas returns the registry in priority order. Nequi sits before
// Bancolombia: a Nequi-to-Bancolombia transfer mentions both brands and
// must classify as the wallet that issued it.
func DefaultSchemas() []Schema {
	return []Schema{
		{
			Issuer: IssuerNequi,
			Identifiers: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bnequi\b`),
				regexp.MustCompile(`(?i)env[ií]o de plata`),
			},
			Fields: map[Field][]*regexp.Regexp{
				FieldAmount: {
					regexp.MustCompile(`(?i)¿?cu[áa]nto\??\s*:?\s*\$?\s*([\d.,]+)`),
					regexp.MustCompile(`(?i)monto\s*:?\s*\$?\s*([\d.,]+)`),
					regexp.MustCompile(`\$\s*([\d.,]+)`),
				},
				FieldDate: {
					regexp.MustCompile(`(?i)fecha\s*:?\s*(\d{1,2}\s+de\s+[a-záéíóúñ]+\s+de\s+\d{4})`),
					regexp.MustCompile(`(?i)fecha\s*:?\s*(\d{1,2}/\d{1,2}/\d{2,4})`),
					regexp.MustCompile(`(\d{1,2}\s+de\s+[a-záéíóúñ]+\s+de\s+\d{4})`),
				},
				FieldTime: {
					regexp.MustCompile(`(?i)hora\s*:?\s*(\d{1,2}:\d{2}(?:\s*[ap]\.?\s*m\.?)?)`),
					regexp.MustCompile(`(\d{1,2}:\d{2}\s*[ap]\.?\s*m\.?)`),
				},
				FieldReference: {
					regexp.MustCompile(`(?i)referencia\s*:?\s*([A-Za-z0-9]+)`),
					regexp.MustCompile(`(?i)comprobante\s*(?:no\.?\s*)?:?\s*(\d+)`),
				},
				FieldRecipientName: {
					regexp.MustCompile(`(?i)¿?para\s+qui[ée]n\??\s*:?\s*([^\n]+)`),
					regexp.MustCompile(`(?i)\bpara\b\s*:?\s*([^\n]+)`),
				},
				FieldRecipientAccount: {
					regexp.MustCompile(`(?i)cuenta\s*(?:bancolombia|de ahorros|corriente)?\s*(?:no\.?\s*)?:?\s*([\d][\d\-. ]{4,})`),
				},
				FieldStatus: {
					regexp.MustCompile(`(?i)(env[ií]o exitoso|transacci[óo]n exitosa|disponible)`),
				},
			},
			Required:    []Field{FieldAmount},
			AmountRange: Range{Min: 1_000, Max: 50_000_000},
		},
		{
			Issuer: IssuerBancolombia,
			Identifiers: []*regexp.Regexp{
				regexp.MustCompile(`(?i)bancolombia`),
			},
			Fields: map[Field][]*regexp.Regexp{
				FieldAmount: {
					regexp.MustCompile(`(?i)valor\s+(?:enviado|de la transferencia)\s*:?\s*\$?\s*([\d.,]+)`),
					regexp.MustCompile(`(?i)monto\s*:?\s*\$?\s*([\d.,]+)`),
					regexp.MustCompile(`\$\s*([\d.,]+)`),
				},
				FieldDate: {
					regexp.MustCompile(`(?i)fecha\s*:?\s*(\d{1,2}\s+de\s+[a-záéíóúñ]+\s+de\s+\d{4})`),
					regexp.MustCompile(`(?i)fecha\s*:?\s*(\d{1,2}\s+[a-záéíóúñ]{3,4}\.?\s+\d{4})`),
					regexp.MustCompile(`(?i)fecha\s*:?\s*(\d{1,2}/\d{1,2}/\d{2,4})`),
					regexp.MustCompile(`(\d{1,2}\s+de\s+[a-záéíóúñ]+\s+de\s+\d{4})`),
					regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{2,4})`),
				},
				FieldTime: {
					regexp.MustCompile(`(?i)hora\s*:?\s*(\d{1,2}:\d{2}(?::\d{2})?(?:\s*[ap]\.?\s*m\.?)?)`),
				},
				FieldReference: {
					regexp.MustCompile(`(?i)comprobante\s*(?:no\.?\s*)?:?\s*(\d+)`),
					regexp.MustCompile(`(?i)n[úu]mero de (?:comprobante|transacci[óo]n|aprobaci[óo]n)\s*:?\s*(\d+)`),
				},
				FieldSenderName: {
					regexp.MustCompile(`(?i)\b(?:origen|de la cuenta de)\b\s*:?\s*([A-ZÁÉÍÓÚÑ][^\n\d]+)`),
				},
				FieldRecipientName: {
					regexp.MustCompile(`(?i)\b(?:destino|para)\b\s*:?\s*([A-ZÁÉÍÓÚÑ][^\n\d]+)`),
				},
				FieldRecipientAccount: {
					regexp.MustCompile(`(?i)cuenta\s*(?:de ahorros|corriente)?\s*(?:no\.?\s*)?:?\s*([\d][\d\-. ]{4,})`),
					regexp.MustCompile(`(?i)producto\s+destino\s*:?\s*\**\s*([\d][\d\-. ]{3,})`),
				},
				FieldStatus: {
					regexp.MustCompile(`(?i)(transferencia exitosa|transacci[óo]n exitosa|aprobad[oa])`),
				},
			},
			Required:    []Field{FieldAmount, FieldReference},
			AmountRange: Range{Min: 1_000, Max: 100_000_000},
		},
	}
}
