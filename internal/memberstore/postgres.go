package memberstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/lib/pq"
)

const memberColumns = `username, password_hash, role, verified, deleted, deleted_at,
	email, nickname, profile_image, provider, provider_id, created_at`

// Postgres is a Store backed by the members table.
type Postgres struct {
	db *sql.DB
}

// Open opens a lib/pq connection pool. sql.Open does not dial; call Ping to
// check connectivity.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (tripAuth.Member, error) {
	var (
		m         tripAuth.Member
		role      string
		deletedAt sql.NullTime
	)
	err := row.Scan(&m.Username, &m.PasswordHash, &role, &m.Verified, &m.Deleted, &deletedAt,
		&m.Email, &m.Nickname, &m.ProfileImage, &m.Provider, &m.ProviderID, &m.CreatedAt)
	if err != nil {
		return tripAuth.Member{}, err
	}
	m.Role = tripAuth.Role(role)
	if deletedAt.Valid {
		m.DeletedAt = deletedAt.Time
	}
	return m, nil
}

func (s *Postgres) GetMemberByUsername(ctx context.Context, username string) (tripAuth.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE username = $1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return tripAuth.Member{}, tripAuth.ErrMemberNotFound
	}
	if err != nil {
		return tripAuth.Member{}, fmt.Errorf("failed to find member: %w", err)
	}
	return m, nil
}

func (s *Postgres) FindOrCreateFederated(ctx context.Context, fm tripAuth.FederatedMember) (tripAuth.Member, error) {
	m := normalizeNew(federatedToMember(fm), time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (username, password_hash, role, verified, email, nickname, profile_image, provider, provider_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (username) DO NOTHING`,
		m.Username, m.PasswordHash, string(m.Role), m.Verified, m.Email, m.Nickname,
		m.ProfileImage, m.Provider, m.ProviderID, m.CreatedAt,
	)
	if err != nil {
		return tripAuth.Member{}, fmt.Errorf("failed to insert federated member: %w", err)
	}
	return s.GetMemberByUsername(ctx, fm.Username)
}

func (s *Postgres) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	return s.execOne(ctx, "update password hash",
		`UPDATE members SET password_hash = $2 WHERE username = $1`, username, hash)
}

func (s *Postgres) Create(ctx context.Context, m tripAuth.Member) error {
	m = normalizeNew(m, time.Now())
	var deletedAt sql.NullTime
	if m.Deleted && !m.DeletedAt.IsZero() {
		deletedAt = sql.NullTime{Time: m.DeletedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (`+memberColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.Username, m.PasswordHash, string(m.Role), m.Verified, m.Deleted, deletedAt,
		m.Email, m.Nickname, m.ProfileImage, m.Provider, m.ProviderID, m.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateMember
	}
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (s *Postgres) SoftDelete(ctx context.Context, username string, at time.Time) error {
	return s.execOne(ctx, "soft delete member",
		`UPDATE members SET deleted = TRUE, deleted_at = $2 WHERE username = $1`, username, at)
}

func (s *Postgres) Restore(ctx context.Context, username string) error {
	return s.execOne(ctx, "restore member",
		`UPDATE members SET deleted = FALSE, deleted_at = NULL WHERE username = $1`, username)
}

func (s *Postgres) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM members WHERE deleted AND deleted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge members: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (s *Postgres) ListMembers(ctx context.Context) ([]tripAuth.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var out []tripAuth.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return out, nil
}

func (s *Postgres) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return tripAuth.ErrMemberNotFound
	}
	return nil
}

var _ Store = (*Postgres)(nil)
