package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
	"github.com/QSchlegel/OrchWiz-sub000/pkg/config"
)

type fakeWalletRepo struct {
	balances map[string]int64
	txns     []domain.WalletTransaction
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{balances: map[string]int64{}}
}

func (f *fakeWalletRepo) GetWallet(_ context.Context, userID string) (*domain.Wallet, error) {
	return &domain.Wallet{UserID: userID, BalanceMilli: f.balances[userID]}, nil
}

func (f *fakeWalletRepo) ApplyTransaction(_ context.Context, txn *domain.WalletTransaction) error {
	if f.balances[txn.UserID]+txn.AmountMilli < 0 {
		return repository.ErrInsufficientFunds
	}
	f.balances[txn.UserID] += txn.AmountMilli
	f.txns = append(f.txns, *txn)
	return nil
}

func (f *fakeWalletRepo) ListTransactions(_ context.Context, userID string, _ int) ([]domain.WalletTransaction, error) {
	var out []domain.WalletTransaction
	for _, txn := range f.txns {
		if txn.UserID == userID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func newTestService(repo repository.WalletRepository) Service {
	cfg := config.ShipyardConfig{
		LocalLaunchCost: 0,
		CloudLaunchCost: 25000,
		CloudAppCost:    5000,
		QuoteCurrency:   "credits",
	}
	return New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

func TestQuoteLocalIsFree(t *testing.T) {
	svc := newTestService(newFakeWalletRepo())

	quote, err := svc.Quote(context.Background(), domain.ProfileLocalDock, []string{"a", "b"})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.AmountMilli != 0 {
		t.Fatalf("expected free quote, got %d", quote.AmountMilli)
	}
}

func TestQuoteCloudPerApp(t *testing.T) {
	svc := newTestService(newFakeWalletRepo())

	quote, err := svc.Quote(context.Background(), domain.ProfileCloudShipyard, []string{"b", "a", " a ", ""})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.AmountMilli != 25000+2*5000 {
		t.Fatalf("unexpected amount %d", quote.AmountMilli)
	}
	if !reflect.DeepEqual(quote.Apps, []string{"a", "b"}) {
		t.Fatalf("apps not normalized: %v", quote.Apps)
	}
}

func TestQuoteUnknownProfile(t *testing.T) {
	svc := newTestService(newFakeWalletRepo())
	if _, err := svc.Quote(context.Background(), "orbital", nil); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestTopUpRejectsNonPositive(t *testing.T) {
	svc := newTestService(newFakeWalletRepo())
	if _, err := svc.TopUp(context.Background(), "user-1", 0, ""); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestChargeLaunchInsufficientFuel(t *testing.T) {
	repo := newFakeWalletRepo()
	repo.balances["user-1"] = 1000
	svc := newTestService(repo)

	quote := &domain.LaunchQuote{Profile: domain.ProfileCloudShipyard, AmountMilli: 25000}
	err := svc.ChargeLaunch(context.Background(), "user-1", quote, "ship-1")
	if !errors.Is(err, ErrInsufficientFuel) {
		t.Fatalf("expected insufficient fuel, got %v", err)
	}
	if repo.balances["user-1"] != 1000 {
		t.Fatalf("balance must be untouched, got %d", repo.balances["user-1"])
	}
}

func TestChargeLaunchDebits(t *testing.T) {
	repo := newFakeWalletRepo()
	repo.balances["user-1"] = 30000
	svc := newTestService(repo)

	quote := &domain.LaunchQuote{Profile: domain.ProfileCloudShipyard, AmountMilli: 25000}
	if err := svc.ChargeLaunch(context.Background(), "user-1", quote, "ship-1"); err != nil {
		t.Fatalf("charge: %v", err)
	}
	if repo.balances["user-1"] != 5000 {
		t.Fatalf("expected 5000 remaining, got %d", repo.balances["user-1"])
	}
	if len(repo.txns) != 1 || repo.txns[0].Kind != domain.TransactionLaunchCharge {
		t.Fatalf("unexpected transactions %+v", repo.txns)
	}
}

func TestChargeLaunchNeverOverdraws(t *testing.T) {
	repo := newFakeWalletRepo()
	repo.balances["user-1"] = 30000
	svc := newTestService(repo)

	quote := &domain.LaunchQuote{Profile: domain.ProfileCloudShipyard, AmountMilli: 25000}
	if err := svc.ChargeLaunch(context.Background(), "user-1", quote, "ship-1"); err != nil {
		t.Fatalf("first charge: %v", err)
	}
	// A second charge that the original balance would have covered must be
	// declined by the store, not by a stale balance read.
	err := svc.ChargeLaunch(context.Background(), "user-1", quote, "ship-2")
	if !errors.Is(err, ErrInsufficientFuel) {
		t.Fatalf("expected insufficient fuel, got %v", err)
	}
	if repo.balances["user-1"] != 5000 {
		t.Fatalf("expected 5000 remaining, got %d", repo.balances["user-1"])
	}
	if len(repo.txns) != 1 {
		t.Fatalf("declined charge must not record a transaction, got %d", len(repo.txns))
	}
}

func TestChargeLaunchFreeQuoteNoop(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newTestService(repo)

	quote := &domain.LaunchQuote{Profile: domain.ProfileLocalDock, AmountMilli: 0}
	if err := svc.ChargeLaunch(context.Background(), "user-1", quote, "ship-1"); err != nil {
		t.Fatalf("charge: %v", err)
	}
	if len(repo.txns) != 0 {
		t.Fatalf("free launch must not record a transaction, got %d", len(repo.txns))
	}
}
