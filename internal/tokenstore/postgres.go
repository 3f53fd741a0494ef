package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/tailorbook/internal/domain"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const schema = `CREATE TABLE IF NOT EXISTS client_sessions (
	profile TEXT PRIMARY KEY,
	access_token TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	access_expires_at TIMESTAMPTZ NULL,
	user_record JSONB NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PGStore keeps one row per profile; every save is a single upsert.
type PGStore struct {
	db      *sql.DB
	profile string
}

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

func NewPostgresStore(db *sql.DB, profile string) *PGStore {
	return &PGStore{db: db, profile: profile}
}

func (p *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create client_sessions: %w", err)
	}
	return nil
}

func (p *PGStore) Load(ctx context.Context) (*domain.Session, error) {
	row := p.db.QueryRowContext(ctx, `SELECT access_token, refresh_token, access_expires_at, user_record FROM client_sessions WHERE profile=$1`, p.profile)

	var (
		fields    = map[string]string{}
		access    string
		refresh   string
		expiresAt sql.NullTime
		user      []byte
	)
	if err := row.Scan(&access, &refresh, &expiresAt, &user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	fields[KeyAccessToken] = access
	fields[KeyRefreshToken] = refresh
	if expiresAt.Valid {
		fields[KeyAccessExpiresAt] = expiresAt.Time.UTC().Format(time.RFC3339Nano)
	}
	if len(user) > 0 {
		fields[KeyCurrentUser] = string(user)
	}
	return fromFields(fields)
}

func (p *PGStore) Save(ctx context.Context, session domain.Session) error {
	fields, err := toFields(session)
	if err != nil {
		return err
	}

	var expiresAt, user interface{}
	if !session.AccessExpiresAt.IsZero() {
		expiresAt = session.AccessExpiresAt.UTC()
	}
	if raw, ok := fields[KeyCurrentUser]; ok {
		user = []byte(raw)
	}

	_, err = p.db.ExecContext(ctx, `INSERT INTO client_sessions (profile, access_token, refresh_token, access_expires_at, user_record, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (profile) DO UPDATE SET access_token=EXCLUDED.access_token, refresh_token=EXCLUDED.refresh_token,
			access_expires_at=EXCLUDED.access_expires_at, user_record=EXCLUDED.user_record, updated_at=now()`,
		p.profile, session.AccessToken, session.RefreshToken, expiresAt, user)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (p *PGStore) Clear(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM client_sessions WHERE profile=$1`, p.profile); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

var _ Store = (*PGStore)(nil)
