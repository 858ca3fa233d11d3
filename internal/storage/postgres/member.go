package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
)

const (
	getMemberByEmailSQL = `SELECT id, email, password_hash FROM member WHERE email = $1`

	upsertMemberSQL = `INSERT INTO member (email, password_hash) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash
		RETURNING id`

	memberIDsByEmailsSQL = `SELECT email, id FROM member WHERE email = ANY($1)`
)

var _ member.Repository = (*MemberRepository)(nil)

// MemberRepository provides member lookups backed by PostgreSQL.
type MemberRepository struct {
	q querier
}

// NewMemberRepository returns a MemberRepository that uses the given pool.
func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{q: pool}
}

// FindByEmail returns the member registered with email, or
// member.ErrNotFound.
func (r *MemberRepository) FindByEmail(ctx context.Context, email string) (*member.Member, error) {
	var m member.Member
	err := r.q.QueryRow(ctx, getMemberByEmailSQL, email).Scan(&m.ID, &m.Email, &m.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, member.ErrNotFound
		}
		return nil, fmt.Errorf("finding member by email: %w", err)
	}
	return &m, nil
}

// Upsert stores a member, replacing the password hash of an existing email,
// and returns the id.
func (r *MemberRepository) Upsert(ctx context.Context, email, passwordHash string) (int64, error) {
	var id int64
	if err := r.q.QueryRow(ctx, upsertMemberSQL, email, passwordHash).Scan(&id); err != nil {
		return 0, fmt.Errorf("upserting member %q: %w", email, err)
	}
	return id, nil
}

// IDsByEmails resolves emails to member ids. Unknown emails are absent from
// the result.
func (r *MemberRepository) IDsByEmails(ctx context.Context, emails []string) (map[string]int64, error) {
	rows, err := r.q.Query(ctx, memberIDsByEmailsSQL, emails)
	if err != nil {
		return nil, fmt.Errorf("resolving member emails: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64, len(emails))
	for rows.Next() {
		var (
			email string
			id    int64
		)
		if err := rows.Scan(&email, &id); err != nil {
			return nil, fmt.Errorf("scanning member id: %w", err)
		}
		out[email] = id
	}
	return out, rows.Err()
}
