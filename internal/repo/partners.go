package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const partnerColumns = `id, name, phone, raffle_number, monthly_fee, sponsor_id, active, created_at, updated_at`

func scanPartner(row pgx.Row) (*Partner, error) {
	var p Partner
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.RaffleNumber, &p.MonthlyFee, &p.SponsorID, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan partner: %w", err)
	}
	return &p, nil
}

// PartnerByPhone looks up an active partner by registered phone number.
func (r *Postgres) PartnerByPhone(ctx context.Context, phone string) (*Partner, error) {
	q := `SELECT ` + partnerColumns + ` FROM partners WHERE phone = $1 AND active LIMIT 1;`
	return scanPartner(r.pool.QueryRow(ctx, q, phone))
}

// PartnerByRaffle looks up an active partner by raffle number.
func (r *Postgres) PartnerByRaffle(ctx context.Context, number int) (*Partner, error) {
	q := `SELECT ` + partnerColumns + ` FROM partners WHERE raffle_number = $1 AND active LIMIT 1;`
	return scanPartner(r.pool.QueryRow(ctx, q, number))
}

// PartnerByID looks up a partner by internal identifier.
func (r *Postgres) PartnerByID(ctx context.Context, id string) (*Partner, error) {
	q := `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1 LIMIT 1;`
	return scanPartner(r.pool.QueryRow(ctx, q, id))
}

// SponsoredBy lists the active partners whose fees the given partner pays.
func (r *Postgres) SponsoredBy(ctx context.Context, sponsorID string) ([]Partner, error) {
	q := `SELECT ` + partnerColumns + ` FROM partners WHERE sponsor_id = $1 AND active ORDER BY raffle_number;`
	rows, err := r.pool.Query(ctx, q, sponsorID)
	if err != nil {
		return nil, fmt.Errorf("list sponsored partners: %w", err)
	}
	defer rows.Close()

	var partners []Partner
	for rows.Next() {
		var p Partner
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.RaffleNumber, &p.MonthlyFee, &p.SponsorID, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sponsored partner: %w", err)
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sponsored partners: %w", err)
	}
	return partners, nil
}
