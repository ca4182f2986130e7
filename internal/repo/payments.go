package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, partner_id, period_id, month, year, amount, expected_amount, difference, status, notes, receipt_ref, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.PartnerID, &p.PeriodID, &p.Month, &p.Year, &p.Amount, &p.ExpectedAmount, &p.Difference, &p.Status, &p.Notes, &p.ReceiptRef, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &p, nil
}

// FindPayment returns the payment for a partner in the given period month,
// or ErrNotFound.
func (r *Postgres) FindPayment(ctx context.Context, partnerID, periodID string, month, year int) (*Payment, error) {
	q := `
SELECT ` + paymentColumns + `
FROM payments
WHERE partner_id = $1 AND period_id = $2 AND month = $3 AND year = $4
LIMIT 1;
`
	return scanPayment(r.pool.QueryRow(ctx, q, partnerID, periodID, month, year))
}

// CreatePayment inserts a new payment row. Difference is computed here so
// callers cannot desynchronize it from amount and expected_amount.
func (r *Postgres) CreatePayment(ctx context.Context, p Payment) (*Payment, error) {
	const q = `
INSERT INTO payments (partner_id, period_id, month, year, amount, expected_amount, difference, status, notes, receipt_ref)
VALUES ($1, $2, $3, $4, $5, $6, $5 - $6, $7, $8, $9)
RETURNING ` + paymentColumns + `;
`
	return scanPayment(r.pool.QueryRow(ctx, q,
		p.PartnerID, p.PeriodID, p.Month, p.Year,
		p.Amount, p.ExpectedAmount, p.Status, p.Notes, p.ReceiptRef,
	))
}

// AccumulatePayment adds a supplemental amount onto an existing payment,
// recomputes the shortfall, forces the status back to pending for manual
// re-verification and appends an audit note.
func (r *Postgres) AccumulatePayment(ctx context.Context, id string, addAmount int64, note string) (*Payment, error) {
	const q = `
UPDATE payments
SET amount = amount + $2,
    difference = amount + $2 - expected_amount,
    status = 'pending',
    notes = CONCAT_WS(E'\n', notes, $3::text),
    updated_at = NOW()
WHERE id = $1
RETURNING ` + paymentColumns + `;
`
	return scanPayment(r.pool.QueryRow(ctx, q, id, addAmount, note))
}

// PendingPayments lists the pending payments of a period for the admin
// report, newest first.
func (r *Postgres) PendingPayments(ctx context.Context, periodID string) ([]PendingPayment, error) {
	const q = `
SELECT p.id, pa.name, p.month, p.year, p.amount, p.expected_amount, p.notes
FROM payments p
JOIN partners pa ON pa.id = p.partner_id
WHERE p.period_id = $1 AND p.status = 'pending'
ORDER BY p.created_at DESC;
`
	rows, err := r.pool.Query(ctx, q, periodID)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	var pending []PendingPayment
	for rows.Next() {
		var p PendingPayment
		if err := rows.Scan(&p.PaymentID, &p.PartnerName, &p.Month, &p.Year, &p.Amount, &p.Expected, &p.Notes); err != nil {
			return nil, fmt.Errorf("scan pending payment: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending payments: %w", err)
	}
	return pending, nil
}

// ActivePeriod returns the currently active savings period.
func (r *Postgres) ActivePeriod(ctx context.Context) (*Period, error) {
	const q = `
SELECT id, name, active, start_date, end_date
FROM periods
WHERE active
ORDER BY start_date DESC
LIMIT 1;
`
	var p Period
	err := r.pool.QueryRow(ctx, q).Scan(&p.ID, &p.Name, &p.Active, &p.StartDate, &p.EndDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get active period: %w", err)
	}
	return &p, nil
}
