package secrets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
	"github.com/QSchlegel/OrchWiz-sub000/pkg/config"
	"github.com/QSchlegel/OrchWiz-sub000/pkg/crypto"
)

// Service stores per-user, per-profile secret bundles encrypted at rest.
type Service struct {
	repo   repository.SecretRepository
	logger *slog.Logger
	cfg    config.ShipyardConfig
}

// New constructs a secrets service.
func New(repo repository.SecretRepository, logger *slog.Logger, cfg config.ShipyardConfig) Service {
	return Service{repo: repo, logger: logger, cfg: cfg}
}

var (
	errKeyRequired     = fmt.Errorf("%w: secret key required", repository.ErrInvalidArgument)
	errProfileRequired = fmt.Errorf("%w: deployment profile required", repository.ErrInvalidArgument)
)

// Input is one plaintext key/value pair to store.
type Input struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Upsert encrypts and stores the provided entries for (user, profile).
func (s Service) Upsert(ctx context.Context, userID, profile string, inputs []Input) error {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return errProfileRequired
	}
	now := time.Now().UTC()
	for _, input := range inputs {
		key := strings.TrimSpace(input.Key)
		if key == "" {
			return errKeyRequired
		}
		ciphertext, err := crypto.EncryptString(s.cfg.SecretEncryptionKey, input.Value)
		if err != nil {
			return err
		}
		checksum := checksumOf(input.Value)
		entry := &domain.SecretEntry{
			UserID:    userID,
			Profile:   profile,
			Key:       key,
			Value:     ciphertext,
			Checksum:  &checksum,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.UpsertSecret(ctx, entry); err != nil {
			return err
		}
	}
	s.logger.Info("secrets stored", "user_id", userID, "profile", profile, "count", len(inputs))
	return nil
}

// Summaries returns masked secret entries for display. Values never leave the
// service in plaintext through this path.
func (s Service) Summaries(ctx context.Context, userID, profile string) ([]domain.SecretSummary, error) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return nil, errProfileRequired
	}
	entries, err := s.repo.ListSecrets(ctx, userID, profile)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.SecretSummary, 0, len(entries))
	for _, entry := range entries {
		plain, err := crypto.DecryptToString(s.cfg.SecretEncryptionKey, entry.Value)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.SecretSummary{
			Key:       entry.Key,
			Masked:    Mask(plain),
			UpdatedAt: entry.UpdatedAt,
		})
	}
	return summaries, nil
}

// Reveal decrypts the full bundle for launch-time injection.
func (s Service) Reveal(ctx context.Context, userID, profile string) (map[string]string, error) {
	entries, err := s.repo.ListSecrets(ctx, userID, profile)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(entries))
	for _, entry := range entries {
		plain, err := crypto.DecryptToString(s.cfg.SecretEncryptionKey, entry.Value)
		if err != nil {
			return nil, err
		}
		values[entry.Key] = plain
	}
	return values, nil
}

// Delete removes one secret entry.
func (s Service) Delete(ctx context.Context, userID, profile, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errKeyRequired
	}
	return s.repo.DeleteSecret(ctx, userID, strings.TrimSpace(profile), key)
}

// Mask hides all but a short prefix of a secret value.
func Mask(value string) string {
	const visible = 4
	if len(value) <= visible {
		return strings.Repeat("*", len(value))
	}
	return value[:visible] + strings.Repeat("*", len(value)-visible)
}

func checksumOf(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
