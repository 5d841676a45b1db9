package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/invoice-pipeline/canonical"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestClaimOnlyOneWorkerSucceeds(t *testing.T) {
	db := setupTestDB(t)
	s := NewMetadataStore(db)
	ctx := context.Background()
	if err := s.Enqueue(ctx, "tx-1", "blob://tx-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	successes := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ok, err := s.Claim(ctx, "tx-1")
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			successes[idx] = ok
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", count)
	}
}

func TestClaimFailsWhenAlreadyTerminal(t *testing.T) {
	db := setupTestDB(t)
	s := NewMetadataStore(db)
	ctx := context.Background()
	s.Enqueue(ctx, "tx-2", "blob://tx-2")
	ok, err := s.Claim(ctx, "tx-2")
	if err != nil || !ok {
		t.Fatalf("expected first claim to succeed: ok=%v err=%v", ok, err)
	}
	s.Finalize(ctx, "tx-2", canonical.StatusValid, canonical.Report{}, nil, "", false)

	ok, err = s.Claim(ctx, "tx-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected re-claim of a VALID transaction to fail")
	}
}

func TestClaimSucceedsAfterErrorStatus(t *testing.T) {
	db := setupTestDB(t)
	s := NewMetadataStore(db)
	ctx := context.Background()
	s.Enqueue(ctx, "tx-3", "blob://tx-3")
	s.Claim(ctx, "tx-3")
	s.Finalize(ctx, "tx-3", canonical.StatusError, canonical.Report{}, nil, "", false)

	ok, err := s.Claim(ctx, "tx-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected ERROR status to be re-claimable by an operator retry")
	}
}

func TestRevertToReceivedIncrementsRetryCount(t *testing.T) {
	db := setupTestDB(t)
	s := NewMetadataStore(db)
	ctx := context.Background()
	s.Enqueue(ctx, "tx-4", "blob://tx-4")
	s.Claim(ctx, "tx-4")

	if err := s.RevertToReceived(ctx, "tx-4"); err != nil {
		t.Fatalf("revert: %v", err)
	}
	count, err := s.RetryCount(ctx, "tx-4")
	if err != nil {
		t.Fatalf("retry count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected retry count 1, got %d", count)
	}
	tx, err := s.Get(ctx, "tx-4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tx.Status != string(canonical.StatusReceived) {
		t.Fatalf("expected status RECEIVED, got %s", tx.Status)
	}
}
