package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/credit-bot/internal/domain"
	"github.com/yourname/credit-bot/internal/ledger"
	"github.com/yourname/credit-bot/internal/store"
)

func TestAdjustBalanceCreatesOneRow(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.AdjustBalance(ctx, "alice", 30))
	require.NoError(t, s.AdjustBalance(ctx, "alice", 12))

	bal, err := s.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal)

	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
}

func TestGetBalanceUnknownUserIsZero(t *testing.T) {
	s := New()
	bal, err := s.GetBalance(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Zero(t, bal)

	_, err = s.LookupAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestTopBalancesOrdering(t *testing.T) {
	ctx := context.Background()
	s := New()
	for user, bal := range map[string]int64{
		"carol": 30, "alice": 50, "bob": 50, "dave": 10,
	} {
		require.NoError(t, s.AdjustBalance(ctx, user, bal))
	}

	top, err := s.TopBalances(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	// descending by balance, ties by username ascending
	assert.Equal(t, "alice", top[0].Username)
	assert.Equal(t, "bob", top[1].Username)
	assert.Equal(t, "carol", top[2].Username)
}

func TestRecentTransactionsPagination(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		_, err := s.ApplyMint(ctx, supplyApp("alice", int64(i+1), base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	page, err := s.RecentTransactions(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(5), page[0].Amount) // newest first
	assert.Equal(t, int64(4), page[1].Amount)

	page, err = s.RecentTransactions(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1), page[0].Amount)

	page, err = s.RecentTransactions(ctx, 2, 99)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestTakePendingIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.CreatePending(ctx, domain.PendingTransaction{
		Sender: "alice", Receiver: "bob", Amount: 10, Kind: domain.KindTransfer,
	})
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan domain.PendingTransaction, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p, err := s.TakePending(ctx, id); err == nil {
				wins <- p
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for p := range wins {
		winners++
		assert.Equal(t, "alice", p.Sender)
	}
	assert.Equal(t, 1, winners)

	_, err = s.TakePending(ctx, id)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestPendingIDsNeverReused(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.CreatePending(ctx, domain.PendingTransaction{Sender: "a", Amount: 1, Kind: domain.KindTransfer})
	require.NoError(t, err)
	_, err = s.TakePending(ctx, first)
	require.NoError(t, err)

	second, err := s.CreatePending(ctx, domain.PendingTransaction{Sender: "a", Amount: 1, Kind: domain.KindTransfer})
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestApplyTransferAtomicity(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.ApplyMint(ctx, supplyApp("alice", 100, time.Now().UTC()))
	require.NoError(t, err)

	_, err = s.ApplyTransfer(ctx, transferApp("alice", "bob", 200, 200))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// Nothing moved, nothing logged beyond the mint.
	aliceBal, _ := s.GetBalance(ctx, "alice")
	bobBal, _ := s.GetBalance(ctx, "bob")
	assert.Equal(t, int64(100), aliceBal)
	assert.Zero(t, bobBal)
	txs, _ := s.ListTransactions(ctx)
	assert.Len(t, txs, 1)
}

func TestConcurrentTransfersKeepSupplyConstant(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.ApplyMint(ctx, supplyApp("alice", 1000, time.Now().UTC()))
	require.NoError(t, err)
	_, err = s.ApplyMint(ctx, supplyApp("bob", 1000, time.Now().UTC()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.ApplyTransfer(ctx, transferApp("alice", "bob", 10, 10))
		}()
		go func() {
			defer wg.Done()
			_, _ = s.ApplyTransfer(ctx, transferApp("bob", "alice", 10, 10))
		}()
	}
	wg.Wait()

	total, err := s.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), total)

	aliceBal, _ := s.GetBalance(ctx, "alice")
	bobBal, _ := s.GetBalance(ctx, "bob")
	assert.GreaterOrEqual(t, aliceBal, int64(0))
	assert.GreaterOrEqual(t, bobBal, int64(0))
}

func TestBurnedSupplyAccumulates(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.ApplyMint(ctx, supplyApp("alice", 100, time.Now().UTC()))
	require.NoError(t, err)

	_, err = s.ApplyBurn(ctx, supplyApp("alice", 40, time.Now().UTC()))
	require.NoError(t, err)

	app := transferApp("alice", "bob", 50, 48)
	app.Burn = 2
	_, err = s.ApplyTransfer(ctx, app)
	require.NoError(t, err)

	burned, err := s.BurnedSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), burned)

	_, err = s.ApplyBurn(ctx, supplyApp("alice", 999, time.Now().UTC()))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestDeliveryAddresses(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.DeliveryAddress(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetDeliveryAddress(ctx, "alice", 111))
	require.NoError(t, s.SetDeliveryAddress(ctx, "alice", 222))

	chatID, ok, err := s.DeliveryAddress(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(222), chatID)
}

func TestConcurrentFirstClaimGrantsOnce(t *testing.T) {
	ctx := context.Background()
	s := New()

	const callers = 16
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.ApplyClaim(ctx, "newcomer", 50, time.Now().UTC())
		}(i)
	}
	wg.Wait()

	var granted int
	for _, err := range errs {
		if err == nil {
			granted++
		} else {
			assert.ErrorIs(t, err, ledger.ErrAlreadyClaimed)
		}
	}
	assert.Equal(t, 1, granted)

	bal, err := s.GetBalance(ctx, "newcomer")
	require.NoError(t, err)
	assert.Equal(t, int64(50), bal)

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestApplyConsumesPendingExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.ApplyMint(ctx, supplyApp("alice", 100, time.Now().UTC()))
	require.NoError(t, err)

	id, err := s.CreatePending(ctx, domain.PendingTransaction{
		Sender: "alice", Receiver: "bob", Amount: 10, Kind: domain.KindTransfer,
	})
	require.NoError(t, err)

	app := transferApp("alice", "bob", 10, 10)
	app.PendingID = id
	_, err = s.ApplyTransfer(ctx, app)
	require.NoError(t, err)

	// The proposal went with the settlement; a replay finds nothing.
	_, err = s.ApplyTransfer(ctx, app)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = s.GetPending(ctx, id)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	bal, _ := s.GetBalance(ctx, "bob")
	assert.Equal(t, int64(10), bal)
}

func TestInsufficientFundsStillConsumesPending(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.ApplyMint(ctx, supplyApp("alice", 5, time.Now().UTC()))
	require.NoError(t, err)

	id, err := s.CreatePending(ctx, domain.PendingTransaction{
		Sender: "alice", Receiver: "bob", Amount: 10, Kind: domain.KindTransfer,
	})
	require.NoError(t, err)

	app := transferApp("alice", "bob", 10, 10)
	app.PendingID = id
	_, err = s.ApplyTransfer(ctx, app)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	_, err = s.GetPending(ctx, id)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	aliceBal, _ := s.GetBalance(ctx, "alice")
	assert.Equal(t, int64(5), aliceBal)
}

func transferApp(sender, receiver string, gross, net int64) store.TransferApplication {
	return store.TransferApplication{
		Sender:    sender,
		Receiver:  receiver,
		Gross:     gross,
		Net:       net,
		Timestamp: time.Now().UTC(),
	}
}

func supplyApp(username string, amount int64, ts time.Time) store.SupplyApplication {
	return store.SupplyApplication{
		Username:  username,
		Amount:    amount,
		Timestamp: ts,
	}
}
