package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
	"github.com/QSchlegel/OrchWiz-sub000/pkg/config"
)

// Service computes quotes and manages the refueling wallet.
type Service struct {
	wallets repository.WalletRepository
	logger  *slog.Logger
	cfg     config.ShipyardConfig
}

// New constructs a billing service.
func New(wallets repository.WalletRepository, logger *slog.Logger, cfg config.ShipyardConfig) Service {
	return Service{wallets: wallets, logger: logger, cfg: cfg}
}

// ErrInsufficientFuel signals the wallet balance does not cover a quote.
var ErrInsufficientFuel = errors.New("billing: insufficient fuel balance")

var errAmountPositive = errors.New("billing: top-up amount must be positive")

// Wallet returns the user's wallet, creating it on first access.
func (s Service) Wallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	return s.wallets.GetWallet(ctx, userID)
}

// Quote computes the launch cost for a profile and app selection. Local dock
// launches are free; cloud launches carry a base cost plus a per-app charge.
func (s Service) Quote(ctx context.Context, profile string, apps []string) (*domain.LaunchQuote, error) {
	normalized := normalizeApps(apps)
	quote := &domain.LaunchQuote{
		Profile:    profile,
		Apps:       normalized,
		Currency:   s.cfg.QuoteCurrency,
		ComputedAt: time.Now().UTC(),
	}
	switch profile {
	case domain.ProfileLocalDock:
		quote.AmountMilli = s.cfg.LocalLaunchCost
	case domain.ProfileCloudShipyard:
		quote.AmountMilli = s.cfg.CloudLaunchCost + int64(len(normalized))*s.cfg.CloudAppCost
	default:
		return nil, fmt.Errorf("%w: unknown profile %q", repository.ErrInvalidArgument, profile)
	}
	return quote, nil
}

// TopUp credits the wallet and returns the updated balance.
func (s Service) TopUp(ctx context.Context, userID string, amountMilli int64, reference string) (*domain.Wallet, error) {
	if amountMilli <= 0 {
		return nil, errAmountPositive
	}
	txn := &domain.WalletTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		AmountMilli: amountMilli,
		Kind:        domain.TransactionTopUp,
		Reference:   strings.TrimSpace(reference),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.wallets.ApplyTransaction(ctx, txn); err != nil {
		return nil, err
	}
	s.logger.Info("wallet refueled", "user_id", userID, "amount_milli", amountMilli)
	return s.wallets.GetWallet(ctx, userID)
}

// ChargeLaunch debits the wallet for a launch quote. The debit is applied
// conditionally at the store, so concurrent charges against the same wallet
// cannot overdraw it.
func (s Service) ChargeLaunch(ctx context.Context, userID string, quote *domain.LaunchQuote, shipID string) error {
	if quote == nil || quote.AmountMilli <= 0 {
		return nil
	}
	txn := &domain.WalletTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		AmountMilli: -quote.AmountMilli,
		Kind:        domain.TransactionLaunchCharge,
		Reference:   shipID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.wallets.ApplyTransaction(ctx, txn); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return ErrInsufficientFuel
		}
		return err
	}
	s.logger.Info("launch charged", "user_id", userID, "ship_id", shipID, "amount_milli", quote.AmountMilli)
	return nil
}

// Transactions returns recent wallet activity.
func (s Service) Transactions(ctx context.Context, userID string, limit int) ([]domain.WalletTransaction, error) {
	return s.wallets.ListTransactions(ctx, userID, limit)
}

func normalizeApps(apps []string) []string {
	seen := make(map[string]struct{}, len(apps))
	out := make([]string, 0, len(apps))
	for _, app := range apps {
		name := strings.TrimSpace(app)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
