package convo

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseIdentification(t *testing.T) {
	tests := []struct {
		input string
		kind  identKind
		value string
	}{
		{"rifa 5", identRaffle, "5"},
		{"RIFA #12", identRaffle, "12"},
		{"rifa5", identRaffle, "5"},
		{"3001234567", identPhone, "3001234567"},
		{"7", identRaffle, "7"},
		{"042", identRaffle, "042"},
		{"  rifa 23  ", identRaffle, "23"},
		{"hola", identUnknown, ""},
		{"12345", identUnknown, ""},
		{"", identUnknown, ""},
	}

	for _, tc := range tests {
		kind, value := parseIdentification(tc.input)
		if kind != tc.kind || value != tc.value {
			t.Fatalf("parseIdentification(%q) = (%d, %q), want (%d, %q)",
				tc.input, kind, value, tc.kind, tc.value)
		}
	}
}

func TestCaptionNumbers(t *testing.T) {
	tests := []struct {
		caption string
		want    []int
	}{
		{"rifa 5 y 12", []int{5, 12}},
		{"pago cuotas 7 7 9", []int{7, 9}},
		{"", nil},
		{"transferencia 3001234567", nil},
		{"socio 042", []int{42}},
	}

	for _, tc := range tests {
		if got := captionNumbers(tc.caption); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("captionNumbers(%q) = %v, want %v", tc.caption, got, tc.want)
		}
	}
}

func TestCaptionPhone(t *testing.T) {
	if got := captionPhone("pago de 3001234567 gracias"); got != "3001234567" {
		t.Fatalf("captionPhone = %q", got)
	}
	if got := captionPhone("rifa 12"); got != "" {
		t.Fatalf("expected no phone, got %q", got)
	}
}

func TestIsCancel(t *testing.T) {
	for _, input := range []string{"cancelar", "CANCELAR", " Cancelar "} {
		if !isCancel(input) {
			t.Fatalf("isCancel(%q) = false", input)
		}
	}
	if isCancel("cancel") {
		t.Fatal("isCancel(\"cancel\") = true")
	}
}

func TestIsIdentityCommand(t *testing.T) {
	for _, input := range []string{"menu", "MENÚ", "hola", "Estado", "rifa", "reporte"} {
		if !isIdentityCommand(input) {
			t.Fatalf("isIdentityCommand(%q) = false", input)
		}
	}
	if isIdentityCommand("pagar") {
		t.Fatal("isIdentityCommand(\"pagar\") = true")
	}
}

func TestReceiptKey(t *testing.T) {
	key := receiptKey("image/png")
	if !strings.HasPrefix(key, "receipts/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("key = %q", key)
	}

	if key := receiptKey("weird"); !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("fallback key = %q", key)
	}

	if receiptKey("image/jpeg") == receiptKey("image/jpeg") {
		t.Fatal("keys should be unique per call")
	}
}
