package repo

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ValidateCredential checks a phone+PIN pair against the users table. Any
// failure mode (unknown phone, inactive user, wrong PIN) collapses into
// ErrInvalidCredential so callers cannot leak which part failed.
func (r *Postgres) ValidateCredential(ctx context.Context, phone, pin string) (*User, error) {
	const q = `
SELECT id, phone, pin, role, active, created_at
FROM users
WHERE phone = $1
LIMIT 1;
`
	var u User
	err := r.pool.QueryRow(ctx, q, phone).Scan(&u.ID, &u.Phone, &u.PIN, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("lookup credential: %w", err)
	}

	if !u.Active {
		return nil, ErrInvalidCredential
	}
	if subtle.ConstantTimeCompare([]byte(u.PIN), []byte(pin)) != 1 {
		return nil, ErrInvalidCredential
	}

	u.PIN = ""
	return &u, nil
}
