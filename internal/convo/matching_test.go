package convo

import (
	"testing"
	"time"

	"natillera-bot/internal/receipt"
	"natillera-bot/internal/repo"
)

func TestTargetPeriod(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	day := receipt.NewDay(2026, time.January, 31)
	month, year := targetPeriod(&day, now)
	if month != 1 || year != 2026 {
		t.Fatalf("with receipt date: got %d/%d, want 1/2026", month, year)
	}

	month, year = targetPeriod(nil, now)
	if month != 3 || year != 2026 {
		t.Fatalf("without receipt date: got %d/%d, want 3/2026", month, year)
	}
}

func TestSponsorCandidates(t *testing.T) {
	sponsored := []repo.Partner{
		{ID: "a", Name: "Ana", MonthlyFee: 100_000},
		{ID: "b", Name: "Berta", MonthlyFee: 150_000},
		{ID: "c", Name: "Carlos", MonthlyFee: 100_000},
	}

	got := sponsorCandidates(sponsored, 100_000)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("candidates = %+v, want partners a and c", got)
	}

	if got := sponsorCandidates(sponsored, 120_000); got != nil {
		t.Fatalf("expected no candidates for 120000, got %+v", got)
	}
}

func TestDistributeExcess(t *testing.T) {
	sponsors := []repo.Partner{
		{ID: "a", MonthlyFee: 100_000},
		{ID: "b", MonthlyFee: 150_000},
		{ID: "c", MonthlyFee: 100_000},
	}

	allocations, leftover := distributeExcess(200_000, sponsors)
	if len(allocations) != 2 {
		t.Fatalf("got %d allocations, want 2", len(allocations))
	}
	if allocations[0].partner.ID != "a" || allocations[0].amount != 100_000 {
		t.Fatalf("first allocation = %s/%d", allocations[0].partner.ID, allocations[0].amount)
	}
	if allocations[1].partner.ID != "b" || allocations[1].amount != 100_000 {
		t.Fatalf("second allocation should cap at the remaining 100000, got %s/%d",
			allocations[1].partner.ID, allocations[1].amount)
	}
	if leftover != 0 {
		t.Fatalf("leftover = %d, want 0", leftover)
	}

	allocations, leftover = distributeExcess(400_000, sponsors)
	if len(allocations) != 3 || leftover != 50_000 {
		t.Fatalf("got %d allocations with leftover %d, want 3 and 50000", len(allocations), leftover)
	}

	allocations, leftover = distributeExcess(0, sponsors)
	if allocations != nil || leftover != 0 {
		t.Fatalf("zero excess should allocate nothing, got %+v leftover %d", allocations, leftover)
	}
}

func TestPickByRaffle(t *testing.T) {
	sponsored := []repo.Partner{
		{ID: "a", RaffleNumber: 5},
		{ID: "b", RaffleNumber: 12},
	}

	picked := pickByRaffle(sponsored, []int{12, 99, 5})
	if len(picked) != 2 || picked[0].ID != "b" || picked[1].ID != "a" {
		t.Fatalf("picked = %+v, want b then a with 99 dropped", picked)
	}
}

func TestAuditNote(t *testing.T) {
	ref := "M123"
	parsed := receipt.Parsed{Issuer: receipt.IssuerNequi, Reference: ref, Confidence: 0.9}

	note := auditNote("Pago registrado", 150_000, parsed)
	want := "Pago registrado: $150.000 vía NEQUI (ref M123), confianza 90%"
	if note != want {
		t.Fatalf("note = %q, want %q", note, want)
	}
}
