package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-trellolink/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialStore keeps one linked Trello credential per user. When a
// SecretProvider is configured, tokens are sealed before they reach the
// database and opened again on read.
type CredentialStore struct {
	db      *bun.DB
	repo    repository.Repository[*credentialRecord]
	secrets core.SecretProvider
	now     func() time.Time
}

func NewCredentialStore(db *bun.DB, secrets core.SecretProvider) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	return &CredentialStore{
		db:      db,
		repo:    repo,
		secrets: secrets,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Upsert inserts the credential or replaces the token fields of the
// existing row for the same user. created_at and id survive a relink.
func (s *CredentialStore) Upsert(ctx context.Context, in core.UpsertCredentialInput) (core.LinkedCredential, error) {
	if s == nil || s.db == nil {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: user id is required")
	}
	if strings.TrimSpace(in.AccessToken) == "" {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: access token is required")
	}

	accessToken, err := s.seal(ctx, in.AccessToken)
	if err != nil {
		return core.LinkedCredential{}, err
	}
	var refreshToken *string
	if in.RefreshToken != nil && strings.TrimSpace(*in.RefreshToken) != "" {
		sealed, sealErr := s.seal(ctx, *in.RefreshToken)
		if sealErr != nil {
			return core.LinkedCredential{}, sealErr
		}
		refreshToken = &sealed
	}

	now := s.now()
	record := &credentialRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    copyTimePointer(in.ExpiresAt),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var stored credentialRecord
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, insertErr := tx.NewInsert().
			Model(record).
			On("CONFLICT (user_id) DO UPDATE").
			Set("access_token = EXCLUDED.access_token").
			Set("refresh_token = EXCLUDED.refresh_token").
			Set("expires_at = EXCLUDED.expires_at").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); insertErr != nil {
			return insertErr
		}
		return tx.NewSelect().
			Model(&stored).
			Where("?TableAlias.user_id = ?", userID).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return core.LinkedCredential{}, err
	}
	return s.open(ctx, &stored)
}

func (s *CredentialStore) Get(ctx context.Context, userID string) (core.LinkedCredential, error) {
	if s == nil || s.repo == nil {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.LinkedCredential{}, err
	}
	if len(records) == 0 {
		return core.LinkedCredential{}, fmt.Errorf("%w: user %q", core.ErrCredentialNotFound, userID)
	}
	return s.open(ctx, records[0])
}

func (s *CredentialStore) seal(ctx context.Context, value string) (string, error) {
	if s.secrets == nil {
		return value, nil
	}
	sealed, err := s.secrets.Encrypt(ctx, []byte(value))
	if err != nil {
		return "", fmt.Errorf("sqlstore: seal credential token: %w", err)
	}
	return string(sealed), nil
}

// unseal passes plaintext rows through when the provider can tell they
// were written before a key was configured.
func (s *CredentialStore) unseal(ctx context.Context, value string) (string, error) {
	if s.secrets == nil || value == "" {
		return value, nil
	}
	if detector, ok := s.secrets.(core.SealDetector); ok && !detector.IsSealed([]byte(value)) {
		return value, nil
	}
	opened, err := s.secrets.Decrypt(ctx, []byte(value))
	if err != nil {
		return "", fmt.Errorf("sqlstore: open credential token: %w", err)
	}
	return string(opened), nil
}

func (s *CredentialStore) open(ctx context.Context, record *credentialRecord) (core.LinkedCredential, error) {
	credential := record.toDomain()
	accessToken, err := s.unseal(ctx, credential.AccessToken)
	if err != nil {
		return core.LinkedCredential{}, err
	}
	credential.AccessToken = accessToken
	if credential.RefreshToken != nil {
		refreshToken, refreshErr := s.unseal(ctx, *credential.RefreshToken)
		if refreshErr != nil {
			return core.LinkedCredential{}, refreshErr
		}
		credential.RefreshToken = &refreshToken
	}
	return credential, nil
}
