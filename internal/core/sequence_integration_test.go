package core_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"kcl-stores/internal/core"
)

func TestDocumentSequencer_Format(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	seq := core.NewDocumentSequencer()
	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)

	got, err := seq.Next(ctx, tx, core.PrefixOrder, "NGO")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	now := time.Now()
	want := fmt.Sprintf("ORD-NGO-%02d%02d-0001", now.Year()%100, int(now.Month()))
	if got != want {
		t.Errorf("number = %s, want %s", got, want)
	}

	// Same prefix, different camp: independent counter.
	got2, err := seq.Next(ctx, tx, core.PrefixOrder, "SER")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !strings.HasSuffix(got2, "-0001") {
		t.Errorf("other camp should start at 0001, got %s", got2)
	}
}

func TestDocumentSequencer_RollbackLeavesNoGap(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	seq := core.NewDocumentSequencer()
	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := seq.Next(ctx, tx, core.PrefixIssue, "NGO"); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	tx.Rollback(ctx)

	tx2, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx2.Rollback(ctx)
	got, err := seq.Next(ctx, tx2, core.PrefixIssue, "NGO")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !strings.HasSuffix(got, "-0001") {
		t.Errorf("rolled back number should be reissued, got %s", got)
	}
}

func TestDocumentSequencer_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	seq := core.NewDocumentSequencer()
	ctx := context.Background()
	const workers = 8

	numbers := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx, err := pool.Begin(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			n, err := seq.Next(ctx, tx, core.PrefixDispatch, "NGO")
			if err != nil {
				errs[i] = err
				tx.Rollback(ctx)
				return
			}
			numbers[i] = n
			errs[i] = tx.Commit(ctx)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}

	sort.Strings(numbers)
	for i := 1; i < workers; i++ {
		if numbers[i] == numbers[i-1] {
			t.Fatalf("duplicate document number issued: %s", numbers[i])
		}
	}
	if !strings.HasSuffix(numbers[0], "-0001") || !strings.HasSuffix(numbers[workers-1], fmt.Sprintf("-%04d", workers)) {
		t.Errorf("numbers should run 0001..%04d without gaps, got %v", workers, numbers)
	}
}
