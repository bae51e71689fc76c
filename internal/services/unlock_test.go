package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"automatch/internal/models"
)

func TestUnlockScenarioSpendsLastCredit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(nil)
	env.world.addDealer("d1", 1, models.DealerStatusActive)
	env.world.addLead("lead-a", "Florianópolis - SC", false)
	env.world.addLead("lead-b", "Curitiba - PR", true)

	result, err := env.unlock.Unlock(ctx, UnlockRequest{DealerID: "d1", LeadID: "lead-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Balance != 0 || result.Lead.Status != models.LeadStatusUnlocked || result.Lead.UnlockCount != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if result.Entry.Kind != models.EntryUnlockDebit || result.Entry.Amount != -1 || *result.Entry.Reference != "lead-a" {
		t.Fatalf("unexpected entry: %#v", result.Entry)
	}

	_, err = env.unlock.Unlock(ctx, UnlockRequest{DealerID: "d1", LeadID: "lead-b"})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if env.world.dealer("d1").Balance != 0 {
		t.Fatalf("expected balance 0, got %d", env.world.dealer("d1").Balance)
	}
	leadB, _ := env.world.lead("lead-b")
	if leadB.Status != models.LeadStatusNew || leadB.UnlockCount != 0 {
		t.Fatalf("lead-b changed: %#v", leadB)
	}
	if len(env.publisher.unlocked) != 1 || env.publisher.unlocked[0].BuyerEmail != "carlos@email.com" {
		t.Fatalf("expected one unlock event, got %#v", env.publisher.unlocked)
	}
}

func TestUnlockBlockedDealerChangesNothing(t *testing.T) {
	env := newTestEnv(nil)
	env.world.addDealer("d1", 5, models.DealerStatusBlocked)
	env.world.addDealer("d2", 5, models.DealerStatusPending)
	env.world.addLead("lead-1", "Florianópolis - SC", false)

	for _, id := range []string{"d1", "d2"} {
		_, err := env.unlock.Unlock(context.Background(), UnlockRequest{DealerID: id, LeadID: "lead-1"})
		if !errors.Is(err, ErrDealerBlocked) {
			t.Fatalf("expected dealer blocked for %s, got %v", id, err)
		}
		if env.world.dealer(id).Balance != 5 {
			t.Fatalf("balance changed for %s", id)
		}
	}
	lead, _ := env.world.lead("lead-1")
	if lead.UnlockCount != 0 {
		t.Fatalf("lead changed: %#v", lead)
	}
}

func TestUnlockChecksBalanceBeforeLead(t *testing.T) {
	env := newTestEnv(nil)
	env.world.addDealer("d1", 0, models.DealerStatusActive)
	_, err := env.unlock.Unlock(context.Background(), UnlockRequest{DealerID: "d1", LeadID: "missing"})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestUnlockUnknownLeadAndDealer(t *testing.T) {
	env := newTestEnv(nil)
	env.world.addDealer("d1", 2, models.DealerStatusActive)
	if _, err := env.unlock.Unlock(context.Background(), UnlockRequest{DealerID: "d1", LeadID: "missing"}); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected lead not found, got %v", err)
	}
	if env.world.dealer("d1").Balance != 2 {
		t.Fatal("expected balance unchanged")
	}
	if _, err := env.unlock.Unlock(context.Background(), UnlockRequest{DealerID: "ghost", LeadID: "missing"}); !errors.Is(err, ErrUnknownDealer) {
		t.Fatalf("expected unknown dealer, got %v", err)
	}
}

func TestUnlockRollsBackDebitWhenLeadUpdateFails(t *testing.T) {
	env := newTestEnv(nil)
	env.world.addDealer("d1", 2, models.DealerStatusActive)
	env.world.addLead("lead-1", "Florianópolis - SC", false)
	env.world.markUnlockedErr = errors.New("connection reset")
	entries := env.world.entryCount()

	if _, err := env.unlock.Unlock(context.Background(), UnlockRequest{DealerID: "d1", LeadID: "lead-1"}); err == nil {
		t.Fatal("expected error")
	}
	if env.world.dealer("d1").Balance != 2 || env.world.entryCount() != entries {
		t.Fatal("debit was not rolled back")
	}
	if _, ok := env.hub.last(); ok {
		t.Fatal("expected no broadcast for a failed unlock")
	}
}

func TestUnlockSameLeadTwiceDebitsTwice(t *testing.T) {
	env := newTestEnv(nil)
	env.world.addDealer("d1", 3, models.DealerStatusActive)
	env.world.addDealer("d2", 3, models.DealerStatusActive)
	env.world.addLead("lead-1", "Florianópolis - SC", false)

	for _, id := range []string{"d1", "d1", "d2"} {
		if _, err := env.unlock.Unlock(context.Background(), UnlockRequest{DealerID: id, LeadID: "lead-1"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	lead, _ := env.world.lead("lead-1")
	if lead.UnlockCount != 3 {
		t.Fatalf("expected unlock count 3, got %d", lead.UnlockCount)
	}
	if env.world.dealer("d1").Balance != 1 || env.world.dealer("d2").Balance != 2 {
		t.Fatalf("unexpected balances: %d %d", env.world.dealer("d1").Balance, env.world.dealer("d2").Balance)
	}
}

func TestUnlockRejectsRepeatedClientRequestID(t *testing.T) {
	env := newTestEnv(nil)
	env.world.addDealer("d1", 3, models.DealerStatusActive)
	env.world.addLead("lead-1", "Florianópolis - SC", false)

	req := UnlockRequest{DealerID: "d1", LeadID: "lead-1", ClientRequestID: "req-1"}
	if _, err := env.unlock.Unlock(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.unlock.Unlock(context.Background(), req); err == nil {
		t.Fatal("expected duplicate request error")
	}
	if env.world.dealer("d1").Balance != 2 {
		t.Fatalf("expected a single debit, balance %d", env.world.dealer("d1").Balance)
	}
	lead, _ := env.world.lead("lead-1")
	if lead.UnlockCount != 1 {
		t.Fatalf("expected unlock count 1, got %d", lead.UnlockCount)
	}
}

func TestConcurrentUnlocksNeverOverdraw(t *testing.T) {
	env := newTestEnv(nil)
	env.world.addDealer("d1", 5, models.DealerStatusActive)
	for i := 0; i < 20; i++ {
		env.world.addLead(fmt.Sprintf("lead-%d", i), "Florianópolis - SC", false)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.unlock.Unlock(context.Background(), UnlockRequest{DealerID: "d1", LeadID: fmt.Sprintf("lead-%d", i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 5 || insufficient != 15 {
		t.Fatalf("expected 5 successes and 15 rejections, got %d and %d", succeeded, insufficient)
	}
	if env.world.dealer("d1").Balance != 0 || env.world.ledgerSum("d1") != 0 {
		t.Fatalf("unexpected final balance %d", env.world.dealer("d1").Balance)
	}
}

func TestUnlockSurvivesPublishFailure(t *testing.T) {
	env := newTestEnv(nil)
	env.publisher.err = errors.New("broker down")
	env.world.addDealer("d1", 1, models.DealerStatusActive)
	env.world.addLead("lead-1", "Florianópolis - SC", false)

	if _, err := env.unlock.Unlock(context.Background(), UnlockRequest{DealerID: "d1", LeadID: "lead-1"}); err != nil {
		t.Fatalf("publish failure must not fail the unlock: %v", err)
	}
	if env.world.dealer("d1").Balance != 0 {
		t.Fatal("expected committed debit")
	}
}

func TestVehicleSummary(t *testing.T) {
	lead := models.Lead{Brands: []string{"Toyota", "Honda"}, Models: []string{"Corolla"}, YearMin: 2018, YearMax: 2022}
	if got := vehicleSummary(lead); got != "Toyota/Honda Corolla 2018-2022" {
		t.Fatalf("unexpected summary %q", got)
	}
	lead = models.Lead{Brands: []string{"Jeep"}, YearMin: 2020, YearMax: 2020}
	if got := vehicleSummary(lead); got != "Jeep 2020" {
		t.Fatalf("unexpected summary %q", got)
	}
}
