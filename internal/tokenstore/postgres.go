package tokenstore

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sqlc-dev/pqtype"

	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/grant"
)

//go:embed schema.sql
var schema string

// Postgres is a grant.TokenStore on Postgres, using raw SQL.
type Postgres struct{ db *sql.DB }

// NewPostgres wraps an open pool.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema creates the tables if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return errors.Wrap(err, "tokenstore: ensuring schema")
}

// Issue stores a new token and returns its plaintext, which is not kept.
func (s *Postgres) Issue(ctx context.Context, n NewToken) (string, grant.AccessToken, error) {
	if err := n.Validate(); err != nil {
		return "", grant.AccessToken{}, err
	}
	token, err := Generate()
	if err != nil {
		return "", grant.AccessToken{}, err
	}

	var expires sql.NullTime
	if n.ValidFor > 0 {
		expires = sql.NullTime{Time: time.Now().Add(n.ValidFor), Valid: true}
	}

	const stmt = `
        INSERT INTO access_tokens (token_hash, label, repository, permission, expires_at, access_duration_seconds)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, label, repository, permission, expires_at, access_duration_seconds, used_at;
    `
	row := s.db.QueryRowContext(ctx, stmt, Hash(token), n.Label, n.Repository, string(n.Permission), expires, int64(n.AccessDuration/time.Second))
	t, err := scanToken(row)
	if err != nil {
		return "", grant.AccessToken{}, errors.Wrap(err, "tokenstore: issuing token")
	}
	return token, t, nil
}

// Lookup implements grant.TokenStore.
func (s *Postgres) Lookup(ctx context.Context, token string) (grant.AccessToken, error) {
	const qstr = `SELECT id, label, repository, permission, expires_at, access_duration_seconds, used_at FROM access_tokens WHERE token_hash = $1`
	t, err := scanToken(s.db.QueryRowContext(ctx, qstr, Hash(token)))
	if errors.Is(err, sql.ErrNoRows) {
		return grant.AccessToken{}, grant.ErrTokenNotFound
	}
	if err != nil {
		return grant.AccessToken{}, errors.Wrap(err, "tokenstore: lookup")
	}
	return t, nil
}

// MarkUsed implements grant.TokenStore. Redeeming and recording the grant
// happen in one transaction.
func (s *Postgres) MarkUsed(ctx context.Context, tokenID int64, rec grant.GrantRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "tokenstore: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE access_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`,
		tokenID, rec.GrantedAt)
	if err != nil {
		return errors.Wrap(err, "tokenstore: marking token used")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "tokenstore: marking token used")
	} else if n == 0 {
		return grant.ErrTokenUsed
	}

	var expires sql.NullTime
	if !rec.ExpiresAt.IsZero() {
		expires = sql.NullTime{Time: rec.ExpiresAt, Valid: true}
	}
	const stmt = `
        INSERT INTO access_grants (token_id, repository, github_username, permission, client_ip, granted_at, expires_at, already_collaborator)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `
	if _, err := tx.ExecContext(ctx, stmt,
		tokenID, rec.Repository, rec.GitHubUsername, string(rec.Permission), inet(rec.ClientIP), rec.GrantedAt, expires, rec.AlreadyCollaborator,
	); err != nil {
		return errors.Wrap(err, "tokenstore: recording grant")
	}
	return errors.Wrap(tx.Commit(), "tokenstore: commit")
}

// ExpiredGrants implements grant.TokenStore.
func (s *Postgres) ExpiredGrants(ctx context.Context, now time.Time) ([]grant.GrantRecord, error) {
	const qstr = `
        SELECT id, token_id, repository, github_username, permission, client_ip, granted_at, expires_at, already_collaborator
        FROM access_grants
        WHERE revoked_at IS NULL AND expires_at IS NOT NULL AND expires_at <= $1
        ORDER BY expires_at, id
    `
	rows, err := s.db.QueryContext(ctx, qstr, now)
	if err != nil {
		return nil, errors.Wrap(err, "tokenstore: listing expired grants")
	}
	defer rows.Close()

	var out []grant.GrantRecord
	for rows.Next() {
		var (
			g          grant.GrantRecord
			permission string
			ip         pqtype.Inet
			expires    sql.NullTime
		)
		if err := rows.Scan(&g.ID, &g.TokenID, &g.Repository, &g.GitHubUsername, &permission, &ip, &g.GrantedAt, &expires, &g.AlreadyCollaborator); err != nil {
			return nil, errors.Wrap(err, "tokenstore: scanning grant")
		}
		g.Permission = githubapi.Permission(permission)
		g.ClientIP = inetString(ip)
		g.ExpiresAt = expires.Time
		out = append(out, g)
	}
	return out, errors.Wrap(rows.Err(), "tokenstore: listing expired grants")
}

// MarkRevoked implements grant.TokenStore.
func (s *Postgres) MarkRevoked(ctx context.Context, grantID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE access_grants SET revoked_at = $2 WHERE id = $1`, grantID, at)
	return errors.Wrap(err, "tokenstore: marking grant revoked")
}

func scanToken(row *sql.Row) (grant.AccessToken, error) {
	var (
		t          grant.AccessToken
		permission string
		expires    sql.NullTime
		seconds    int64
		used       sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Label, &t.Repository, &permission, &expires, &seconds, &used); err != nil {
		return grant.AccessToken{}, err
	}
	t.Permission = githubapi.Permission(permission)
	t.ExpiresAt = expires.Time
	t.AccessDuration = time.Duration(seconds) * time.Second
	t.UsedAt = used.Time
	return t, nil
}

// Counts reports outstanding tokens and active grants as of now.
func (s *Postgres) Counts(ctx context.Context, now time.Time) (Counts, error) {
	const q = `
        SELECT
            (SELECT count(*) FROM access_tokens
              WHERE used_at IS NULL AND (expires_at IS NULL OR expires_at >= $1)),
            (SELECT count(*) FROM access_grants WHERE revoked_at IS NULL);
    `
	var c Counts
	if err := s.db.QueryRowContext(ctx, q, now).Scan(&c.OutstandingTokens, &c.ActiveGrants); err != nil {
		return Counts{}, errors.Wrap(err, "tokenstore: counting")
	}
	return c, nil
}
