// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package credit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	backend, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	ownerID := "owner_1"
	require.NoError(t, backend.Principals().Create(context.Background(), &model.Principal{
		ID: ownerID, ExternalSubject: "ext_1", Credits: 5, CreatedAt: time.Now(),
	}))

	return New(backend.Credits()), ownerID
}

func TestDebitNeverGoesNegative(t *testing.T) {
	ledger, owner := newTestLedger(t)
	ctx := context.Background()

	ok, err := ledger.Debit(ctx, owner, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ledger.Debit(ctx, owner, 10)
	require.NoError(t, err)
	require.False(t, ok)

	balance, err := ledger.Balance(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 2, balance)
}

func TestDebitZeroIsNoOp(t *testing.T) {
	ledger, owner := newTestLedger(t)
	ok, err := ledger.Debit(context.Background(), owner, 0)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ledger, owner := newTestLedger(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	successes := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.Debit(ctx, owner, 1)
			require.NoError(t, err)
			successes <- ok
		}()
	}
	wg.Wait()
	close(successes)

	succeeded := 0
	for ok := range successes {
		if ok {
			succeeded++
		}
	}
	require.Equal(t, 5, succeeded)

	balance, err := ledger.Balance(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 0, balance)
}

func TestUnknownOwnerHasZeroBalance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	balance, err := ledger.Balance(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.Equal(t, 0, balance)
}
