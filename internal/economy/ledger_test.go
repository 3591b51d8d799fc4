package economy

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBalanceUnknownAndInvalid(t *testing.T) {
	h := newHarness(t, Options{})
	assert.Equal(t, int64(0), h.eng.GetBalance("nobody"))
	assert.Equal(t, int64(0), h.eng.GetBalance(""))
	assert.Equal(t, int64(0), h.eng.GetBalance("bad id"))
}

func TestAddAndSubtract(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	bal, err := h.eng.AddBalance(ctx, "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)

	_, err = h.eng.AddBalance(ctx, "alice", -5)
	require.ErrorIs(t, err, ErrInvalidAmount)

	bal, err = h.eng.AddBalance(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)

	bal, err = h.eng.SubtractBalance(ctx, "alice", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(70), bal)

	_, err = h.eng.SubtractBalance(ctx, "alice", -1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.eng.AddBalance(ctx, "bad id", 1)
	require.ErrorIs(t, err, ErrInvalidAccount)
}

func TestSubtractClampsAtZero(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "alice", 40)

	bal, err := h.eng.SubtractBalance(ctx, "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)

	hist := h.eng.GetTransactionHistory("alice", 1)
	require.Len(t, hist, 1)
	assert.Equal(t, TxDebit, hist[0].Type)
	assert.Equal(t, int64(40), hist[0].Amount)
	assert.EqualValues(t, 100, hist[0].Meta["requested"])

	// Nothing left to remove: no record.
	count := h.eng.TransactionCount()
	_, err = h.eng.SubtractBalance(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, count, h.eng.TransactionCount())
}

func TestSetBalanceClampsNegative(t *testing.T) {
	h := newHarness(t, Options{})
	bal, err := h.eng.SetBalance(context.Background(), "alice", -20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
	assert.Equal(t, TxAdminSet, h.eng.GetTransactionHistory("alice", 1)[0].Type)
}

func TestTransfer(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "alice", 100)

	res, err := h.eng.TransferBalance(ctx, "alice", "bob", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(70), res.FromBalance)
	assert.Equal(t, int64(30), res.ToBalance)
	assert.NotEmpty(t, res.TransactionID)
	assert.Equal(t, int64(70), h.eng.GetBalance("alice"))
	assert.Equal(t, int64(30), h.eng.GetBalance("bob"))

	rec := h.eng.GetTransactionHistory("bob", 1)[0]
	assert.Equal(t, res.TransactionID, rec.ID)
	assert.Equal(t, TxTransfer, rec.Type)
	assert.Equal(t, "alice", rec.From)
	assert.Equal(t, "bob", rec.To)
}

func TestTransferRejections(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "alice", 50)

	tests := []struct {
		name     string
		from, to string
		amount   int64
		want     error
	}{
		{"same account", "alice", "alice", 10, ErrInvalidTarget},
		{"zero", "alice", "bob", 0, ErrInvalidAmount},
		{"negative", "alice", "bob", -3, ErrInvalidAmount},
		{"bad sender", "", "bob", 1, ErrInvalidAccount},
		{"bad receiver", "alice", "a b", 1, ErrInvalidAccount},
		{"insufficient", "alice", "bob", 51, ErrInsufficientFunds},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.eng.TransferBalance(ctx, tc.from, tc.to, tc.amount)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, int64(50), h.eng.GetBalance("alice"))
			assert.Equal(t, int64(0), h.eng.GetBalance("bob"))
		})
	}
}

func TestTransferRoundTripRestoresBalances(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "alice", 80)
	h.fund(t, "bob", 20)

	_, err := h.eng.TransferBalance(ctx, "alice", "bob", 35)
	require.NoError(t, err)
	_, err = h.eng.TransferBalance(ctx, "bob", "alice", 35)
	require.NoError(t, err)

	assert.Equal(t, int64(80), h.eng.GetBalance("alice"))
	assert.Equal(t, int64(20), h.eng.GetBalance("bob"))
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	const n = 200

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.eng.AddBalance(ctx, "alice", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(n), h.eng.GetBalance("alice"))
}

func TestConcurrentTransfersConserveMoney(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	accounts := []string{"a", "b", "c", "d"}
	for _, id := range accounts {
		h.fund(t, id, 100)
	}

	var wg sync.WaitGroup
	for i := range 400 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			from := accounts[i%len(accounts)]
			to := accounts[(i+1+i/len(accounts))%len(accounts)]
			if from == to {
				return
			}
			_, err := h.eng.TransferBalance(ctx, from, to, int64(1+i%30))
			if err != nil {
				assert.ErrorIs(t, err, ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	var total int64
	for _, id := range accounts {
		bal := h.eng.GetBalance(id)
		assert.GreaterOrEqual(t, bal, int64(0), id)
		total += bal
	}
	assert.Equal(t, int64(400), total)
	assert.Equal(t, int64(400), h.eng.TotalSupply())
}

func TestCreditsAtInt64LimitAreRefused(t *testing.T) {
	const near = math.MaxInt64 - 5
	cases := []struct {
		name string
		run  func(h *harness) error
	}{
		{"add", func(h *harness) error {
			_, err := h.eng.AddBalance(context.Background(), "rich", 10)
			return err
		}},
		{"transfer in", func(h *harness) error {
			_, err := h.eng.TransferBalance(context.Background(), "payer", "rich", 100)
			return err
		}},
		{"lottery win", func(h *harness) error {
			h.rand.ints = []int{3, 3}
			_, err := h.eng.CreateLottery(context.Background(), "rich", 1, DefaultMaxPrizePool)
			return err
		}},
		{"sell", func(h *harness) error {
			_, err := h.eng.SellToMarket(context.Background(), "rich", "iron", 1)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.fund(t, "rich", near)
			h.fund(t, "payer", 100)
			saves := h.store.Saves()
			before := h.eng.GetTransactionHistory("rich", 10)

			err := tc.run(h)
			require.ErrorIs(t, err, ErrBalanceOverflow)
			assert.Equal(t, "balance_overflow", Reason(err))
			assert.Equal(t, int64(near), h.eng.GetBalance("rich"))
			assert.Equal(t, int64(100), h.eng.GetBalance("payer"))
			assert.Equal(t, before, h.eng.GetTransactionHistory("rich", 10))
			assert.Equal(t, saves, h.store.Saves())
		})
	}
}

func TestCreditUpToInt64LimitSucceeds(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "rich", math.MaxInt64-100)
	h.fund(t, "payer", 100)

	out, err := h.eng.TransferBalance(ctx, "payer", "rich", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), out.ToBalance)
	assert.Equal(t, int64(0), out.FromBalance)

	_, err = h.eng.AddBalance(ctx, "rich", 1)
	require.ErrorIs(t, err, ErrBalanceOverflow)
	assert.Equal(t, int64(math.MaxInt64), h.eng.TotalSupply())
}

func TestHugeMarketTotalsAreInvalidQuantity(t *testing.T) {
	h := newHarness(t, Options{
		Catalog: []CatalogItem{{ItemID: "star", BasePrice: 1 << 62, Volatility: 0}},
	})
	ctx := context.Background()
	h.fund(t, "u", math.MaxInt64)

	_, err := h.eng.BuyFromMarket(ctx, "u", "star", 2)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = h.eng.SellToMarket(ctx, "u", "star", 3)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, int64(math.MaxInt64), h.eng.GetBalance("u"))
}

func TestTopBalances(t *testing.T) {
	h := newHarness(t, Options{})
	h.fund(t, "carol", 300)
	h.fund(t, "alice", 100)
	h.fund(t, "bob", 300)
	h.fund(t, "dave", 0)

	rows := h.eng.TopBalances(10)
	require.Len(t, rows, 3)
	assert.Equal(t, LeaderboardRow{Rank: 1, AccountID: "bob", Balance: 300}, rows[0])
	assert.Equal(t, LeaderboardRow{Rank: 2, AccountID: "carol", Balance: 300}, rows[1])
	assert.Equal(t, LeaderboardRow{Rank: 3, AccountID: "alice", Balance: 100}, rows[2])

	assert.Len(t, h.eng.TopBalances(0), 1)

	// A write invalidates every cached ranking.
	h.fund(t, "alice", 1000)
	assert.Equal(t, "alice", h.eng.TopBalances(10)[0].AccountID)
}

func TestHistoryNewestFirstWithLimit(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "alice", 100)
	for i := range 5 {
		h.clock.Advance(time.Minute)
		_, err := h.eng.TransferBalance(ctx, "alice", "bob", int64(i+1))
		require.NoError(t, err)
	}

	hist := h.eng.GetTransactionHistory("bob", 3)
	require.Len(t, hist, 3)
	assert.Equal(t, []int64{5, 4, 3}, []int64{hist[0].Amount, hist[1].Amount, hist[2].Amount})
	assert.True(t, hist[0].Timestamp.After(hist[1].Timestamp))

	assert.Len(t, h.eng.GetTransactionHistory("alice", 0), 1)
	assert.Len(t, h.eng.GetTransactionHistory("alice", 5000), 6)
	assert.Empty(t, h.eng.GetTransactionHistory("carol", 10))
}

func TestHistoryCacheInvalidatedByWrite(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "alice", 100)
	require.Len(t, h.eng.GetTransactionHistory("bob", 10), 0)

	_, err := h.eng.TransferBalance(ctx, "alice", "bob", 10)
	require.NoError(t, err)
	assert.Len(t, h.eng.GetTransactionHistory("bob", 10), 1)
	assert.Equal(t, int64(10), h.eng.GetAccountStats("bob").TotalReceived)
}

func TestReturnedHistoryIsACopy(t *testing.T) {
	h := newHarness(t, Options{})
	h.fund(t, "alice", 100)
	hist := h.eng.GetTransactionHistory("alice", 10)
	hist[0].Amount = 999
	assert.Equal(t, int64(100), h.eng.GetTransactionHistory("alice", 10)[0].Amount)
}

func TestLogTrimsToMaxTransactions(t *testing.T) {
	h := newHarness(t, Options{MaxTransactions: 5})
	ctx := context.Background()
	for i := range 8 {
		_, err := h.eng.AddBalance(ctx, fmt.Sprintf("acct%d", i), 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, h.eng.TransactionCount())
	assert.Empty(t, h.eng.GetTransactionHistory("acct0", 10))
	assert.Len(t, h.eng.GetTransactionHistory("acct7", 10), 1)
}

func TestPruneTransactions(t *testing.T) {
	h := newHarness(t, Options{Retention: 48 * time.Hour})
	ctx := context.Background()
	h.fund(t, "alice", 10)
	h.fund(t, "bob", 10)
	h.clock.Advance(72 * time.Hour)
	h.fund(t, "carol", 10)

	removed, err := h.eng.PruneTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, h.eng.TransactionCount())
	assert.Empty(t, h.eng.GetTransactionHistory("alice", 10))

	removed, err = h.eng.PruneTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestLogTransaction(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	rec, err := h.eng.LogTransaction(ctx, Transaction{Type: "blackjack", From: "alice", Amount: 25})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, h.clock.Now(), rec.Timestamp)

	_, err = h.eng.LogTransaction(ctx, Transaction{Amount: 1})
	require.ErrorIs(t, err, ErrInvalidTransaction)
	_, err = h.eng.LogTransaction(ctx, Transaction{Type: "x", To: "bad id"})
	require.ErrorIs(t, err, ErrInvalidAccount)
}

func TestAccountStats(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "alice", 1000)
	_, err := h.eng.TransferBalance(ctx, "alice", "bob", 100)
	require.NoError(t, err)
	_, err = h.eng.TransferBalance(ctx, "bob", "alice", 40)
	require.NoError(t, err)
	_, err = h.eng.CreateBusiness(ctx, "alice", "shop", 100)
	require.NoError(t, err)
	_, err = h.eng.CreateInvestment(ctx, "alice", "bonds", 50)
	require.NoError(t, err)
	_, err = h.eng.ClaimDailyReward(ctx, "alice")
	require.NoError(t, err)

	st := h.eng.GetAccountStats("alice")
	assert.Equal(t, int64(1000-100+40-100-50+50), st.Balance)
	assert.Equal(t, int64(100), st.TotalSent)
	assert.Equal(t, int64(40), st.TotalReceived)
	assert.Equal(t, 6, st.TransactionCount)
	assert.Equal(t, 1, st.BusinessCount)
	assert.Equal(t, 1, st.ActiveInvestments)
	assert.Equal(t, int64(1), st.DailyStreak)
}
