package receipt

import (
	"strings"
	"testing"
	"time"
)

func testRules() Rules {
	return Rules{
		AcceptedIssuers: []Issuer{IssuerBancolombia, IssuerNequi},
		ExpectedAccount: "331-771-35742",
		GraceDueDay:     5,
	}
}

func amountPtr(v int64) *int64 { return &v }

func validParsed() Parsed {
	date := NewDay(2026, time.January, 31)
	return Parsed{
		Issuer:           IssuerBancolombia,
		Amount:           amountPtr(150000),
		Date:             &date,
		Reference:        "123456",
		RecipientAccount: "33177135742",
	}
}

func TestValidateAcceptsMatchingReceipt(t *testing.T) {
	window := &Window{Month: time.January, Year: 2026}
	res := Validate(validParsed(), 150000, window, testRules())

	if !res.Valid {
		t.Fatalf("expected valid, issues: %v", res.Issues)
	}
}

func TestValidateRejectsUnknownIssuerOutright(t *testing.T) {
	parsed := validParsed()
	parsed.Issuer = IssuerUnknown
	parsed.Amount = amountPtr(99)

	res := Validate(parsed, 150000, nil, testRules())
	if res.Valid {
		t.Fatal("expected invalid")
	}
	if len(res.Issues) != 1 {
		t.Fatalf("issuer rejection must short-circuit, got %v", res.Issues)
	}
}

func TestValidateAmountMismatch(t *testing.T) {
	parsed := validParsed()
	parsed.Amount = amountPtr(100000)

	res := Validate(parsed, 150000, nil, testRules())
	if res.Valid {
		t.Fatal("expected invalid")
	}
	found := false
	for _, issue := range res.Issues {
		if strings.Contains(issue, "$100.000") && strings.Contains(issue, "$150.000") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected localized amounts in issue, got %v", res.Issues)
	}
}

func TestNormalizeAccount(t *testing.T) {
	if NormalizeAccount("331-771-35742") != NormalizeAccount("33177135742") {
		t.Fatal("formatted and bare accounts must normalize equal")
	}
	if NormalizeAccount("331-771-35742") == NormalizeAccount("33177135799") {
		t.Fatal("different accounts must not normalize equal")
	}
}

func TestValidateWrongDestinationAccount(t *testing.T) {
	parsed := validParsed()
	parsed.RecipientAccount = "99999999999"

	res := Validate(parsed, 150000, nil, testRules())
	if res.Valid {
		t.Fatal("expected invalid")
	}
	found := false
	for _, issue := range res.Issues {
		if strings.Contains(issue, "99999999999") {
			found = true
		}
	}
	if !found {
		t.Fatalf("issue must name the mismatched account, got %v", res.Issues)
	}
}

func TestValidateMissingDestinationFailsClosed(t *testing.T) {
	parsed := validParsed()
	parsed.RecipientAccount = ""

	res := Validate(parsed, 150000, nil, testRules())
	if res.Valid {
		t.Fatal("missing destination evidence must not pass")
	}
}

func TestValidateDateWindow(t *testing.T) {
	window := &Window{Month: time.January, Year: 2026}

	cases := []struct {
		date  Day
		valid bool
	}{
		{NewDay(2026, time.January, 31), true},
		{NewDay(2026, time.January, 1), true},
		{NewDay(2026, time.February, 5), true},
		{NewDay(2026, time.February, 6), false},
		{NewDay(2025, time.December, 31), false},
		{NewDay(2026, time.March, 1), false},
	}

	for _, tc := range cases {
		parsed := validParsed()
		parsed.Date = &tc.date

		res := Validate(parsed, 150000, window, testRules())
		if res.Valid != tc.valid {
			t.Fatalf("date %v: valid = %v, want %v (issues %v)", tc.date, res.Valid, tc.valid, res.Issues)
		}
	}
}

func TestValidateDecemberGraceRollsIntoJanuary(t *testing.T) {
	window := &Window{Month: time.December, Year: 2025}
	date := NewDay(2026, time.January, 3)

	parsed := validParsed()
	parsed.Date = &date

	res := Validate(parsed, 150000, window, testRules())
	if !res.Valid {
		t.Fatalf("january grace for december period should pass, issues: %v", res.Issues)
	}
}

func TestValidateGraceWordingDiffersFromWrongMonth(t *testing.T) {
	window := &Window{Month: time.January, Year: 2026}

	late := validParsed()
	lateDate := NewDay(2026, time.February, 10)
	late.Date = &lateDate

	wrong := validParsed()
	wrongDate := NewDay(2026, time.June, 10)
	wrong.Date = &wrongDate

	lateRes := Validate(late, 150000, window, testRules())
	wrongRes := Validate(wrong, 150000, window, testRules())

	if len(lateRes.Issues) == 0 || len(wrongRes.Issues) == 0 {
		t.Fatal("both receipts must raise issues")
	}
	if lateRes.Issues[len(lateRes.Issues)-1] == wrongRes.Issues[len(wrongRes.Issues)-1] {
		t.Fatal("grace-window and wrong-month issues must read differently")
	}
}
