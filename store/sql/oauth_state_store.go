package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-deployer/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

const defaultOAuthStateTTL = 15 * time.Minute

// OAuthStateStore persists issued states so a callback may land on another
// process than the one that started authorization.
type OAuthStateStore struct {
	db   *bun.DB
	repo repository.Repository[*oauthStateRecord]
	ttl  time.Duration
	now  func() time.Time

	// afterLookup runs between reading a state and claiming it.
	afterLookup func(context.Context, bun.Tx) error
}

func NewOAuthStateStore(db *bun.DB, ttl time.Duration) (*OAuthStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if ttl <= 0 {
		ttl = defaultOAuthStateTTL
	}
	repo := repository.NewRepository[*oauthStateRecord](db, oauthStateHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid oauth state repository wiring: %w", err)
		}
	}
	return &OAuthStateStore{
		db:   db,
		repo: repo,
		ttl:  ttl,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *OAuthStateStore) Save(ctx context.Context, record core.OAuthStateRecord) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: oauth state store is not configured")
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("sqlstore: oauth state is required")
	}
	createdAt := record.CreatedAt.UTC()
	if record.CreatedAt.IsZero() {
		createdAt = s.now()
	}
	expiresAt := record.ExpiresAt.UTC()
	if record.ExpiresAt.IsZero() {
		expiresAt = createdAt.Add(s.ttl)
	}

	_, err := s.repo.Create(ctx, &oauthStateRecord{
		State:       state,
		SessionID:   strings.TrimSpace(record.SessionID),
		RedirectURI: strings.TrimSpace(record.RedirectURI),
		ExpiresAt:   expiresAt,
		CreatedAt:   createdAt,
	})
	return err
}

// Consume deletes the state and returns it. Expired states are deleted too
// and reported as an error. Only the caller whose DELETE removes the row gets
// the record, so concurrent callbacks with one state cannot both succeed.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (core.OAuthStateRecord, error) {
	if s == nil || s.db == nil {
		return core.OAuthStateRecord{}, fmt.Errorf("sqlstore: oauth state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return core.OAuthStateRecord{}, fmt.Errorf("sqlstore: oauth state is required")
	}

	record := &oauthStateRecord{}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.state = ?", state).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}
		if s.afterLookup != nil {
			if err := s.afterLookup(ctx, tx); err != nil {
				return err
			}
		}
		result, err := tx.NewDelete().
			Model((*oauthStateRecord)(nil)).
			Where("id = ?", record.ID).
			Where("state = ?", state).
			Exec(ctx)
		if err != nil {
			return err
		}
		claimed, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if claimed != 1 {
			return sql.ErrNoRows
		}
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.OAuthStateRecord{}, fmt.Errorf("sqlstore: oauth state not found")
	}
	if err != nil {
		return core.OAuthStateRecord{}, err
	}
	if s.now().After(record.ExpiresAt) {
		return core.OAuthStateRecord{}, fmt.Errorf("sqlstore: oauth state expired")
	}
	return record.toDomain(), nil
}

// PurgeExpired deletes states that were never consumed.
func (s *OAuthStateStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: oauth state store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*oauthStateRecord)(nil)).
		Where("expires_at < ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *oauthStateRecord) toDomain() core.OAuthStateRecord {
	if r == nil {
		return core.OAuthStateRecord{}
	}
	return core.OAuthStateRecord{
		State:       r.State,
		SessionID:   r.SessionID,
		RedirectURI: r.RedirectURI,
		CreatedAt:   r.CreatedAt.UTC(),
		ExpiresAt:   r.ExpiresAt.UTC(),
	}
}
