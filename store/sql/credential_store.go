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

// CredentialStore keeps the access token of one driver in
// deployer_driver_data. Saving replaces the previous payload.
type CredentialStore struct {
	db     *bun.DB
	repo   repository.Repository[*driverDataRecord]
	driver string
	codec  core.CredentialCodec
	cipher core.TokenCipher
	now    func() time.Time
}

type CredentialStoreOption func(*CredentialStore)

func WithCredentialCodec(codec core.CredentialCodec) CredentialStoreOption {
	return func(s *CredentialStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithTokenCipher seals payloads at rest. Rows written without a cipher stay
// readable.
func WithTokenCipher(cipher core.TokenCipher) CredentialStoreOption {
	return func(s *CredentialStore) {
		if cipher != nil {
			s.cipher = cipher
		}
	}
}

func NewCredentialStore(db *bun.DB, driver string, opts ...CredentialStoreOption) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	driver = strings.TrimSpace(driver)
	if driver == "" {
		driver = core.DefaultDriverName
	}
	repo := repository.NewRepository[*driverDataRecord](db, driverDataHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid driver data repository wiring: %w", err)
		}
	}
	store := &CredentialStore{
		db:     db,
		repo:   repo,
		driver: driver,
		codec:  core.JSONCredentialCodec{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

func (s *CredentialStore) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

func (s *CredentialStore) Load(ctx context.Context) (core.AccessToken, bool, error) {
	if s == nil || s.repo == nil {
		return core.AccessToken{}, false, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("driver", "=", s.driver),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.AccessToken{}, false, err
	}
	if len(records) == 0 {
		return core.AccessToken{}, false, nil
	}

	payload, err := s.open(ctx, records[0])
	if err != nil {
		return core.AccessToken{}, false, err
	}
	token, err := s.codec.Decode(payload)
	if err != nil {
		return core.AccessToken{}, false, err
	}
	if token.IsZero() {
		return core.AccessToken{}, false, nil
	}
	return token, true, nil
}

func (s *CredentialStore) Save(ctx context.Context, token core.AccessToken) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	if token.IsZero() {
		return fmt.Errorf("sqlstore: access token is required")
	}
	payload, err := s.codec.Encode(token)
	if err != nil {
		return err
	}

	keyID, keyVersion := "", 0
	if s.cipher != nil {
		payload, err = s.cipher.Encrypt(ctx, payload)
		if err != nil {
			return fmt.Errorf("sqlstore: seal credential payload: %w", err)
		}
		keyID, keyVersion = s.cipher.KeyID(), s.cipher.Version()
	}
	now := s.now()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findDriverDataTx(ctx, tx, s.driver)
		if err != nil {
			return err
		}
		created := record == nil
		if created {
			record = &driverDataRecord{Driver: s.driver, CreatedAt: now}
		}
		record.Data = payload
		record.PayloadFormat = s.codec.Format()
		record.PayloadVersion = s.codec.Version()
		record.EncryptionKeyID = keyID
		record.EncryptionVersion = keyVersion
		record.ExpiresAt = token.Clone().ExpiresAt
		record.UpdatedAt = now

		if created {
			_, createErr := s.repo.CreateTx(ctx, tx, record)
			return createErr
		}
		_, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return updateErr
	})
}

// Clear removes the stored token, returning the driver to unauthenticated.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*driverDataRecord)(nil)).
		Where("driver = ?", s.driver).
		Exec(ctx)
	return err
}

func (s *CredentialStore) open(ctx context.Context, record *driverDataRecord) ([]byte, error) {
	if strings.TrimSpace(record.EncryptionKeyID) == "" {
		return record.Data, nil
	}
	if s.cipher == nil {
		return nil, fmt.Errorf("sqlstore: credential for driver %q is sealed with key %q but no cipher is configured",
			s.driver, record.EncryptionKeyID)
	}
	payload, err := s.cipher.Decrypt(ctx, record.Data)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open credential payload: %w", err)
	}
	return payload, nil
}

func findDriverDataTx(ctx context.Context, tx bun.Tx, driver string) (*driverDataRecord, error) {
	record := &driverDataRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.driver = ?", driver).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}
