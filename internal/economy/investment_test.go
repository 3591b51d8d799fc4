package economy

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInvestment(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "u", 1000)

	res, err := h.eng.CreateInvestment(ctx, "u", "Bonds", 400)
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.Balance)
	assert.Equal(t, "bonds", res.Investment.Type)
	assert.Equal(t, 0.12, res.Investment.Rate)
	assert.Equal(t, InvestmentActive, res.Investment.Status)
	assert.Equal(t, h.clock.Now().Add(72*time.Hour), res.Investment.Maturity)

	_, err = h.eng.CreateInvestment(ctx, "u", "tulips", 10)
	require.ErrorIs(t, err, ErrInvalidInvestmentType)
	_, err = h.eng.CreateInvestment(ctx, "u", "savings", 0)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = h.eng.CreateInvestment(ctx, "u", "savings", 601)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Len(t, h.eng.ListInvestments("u"), 1)
}

func TestSweepPaysOnceAtMaturity(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "u", 1000)
	_, err := h.eng.CreateInvestment(ctx, "u", "savings", 1000)
	require.NoError(t, err)

	h.clock.Advance(23 * time.Hour)
	res, err := h.eng.ProcessMatureInvestments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matured)
	assert.Equal(t, int64(0), h.eng.GetBalance("u"))

	h.clock.Advance(time.Hour)
	res, err = h.eng.ProcessMatureInvestments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matured)
	assert.Equal(t, int64(1050), res.Credited)
	require.Len(t, res.Payouts, 1)
	assert.Equal(t, int64(1050), h.eng.GetBalance("u"))

	inv := h.eng.ListInvestments("u")[0]
	assert.Equal(t, InvestmentMatured, inv.Status)
	assert.Equal(t, int64(1050), inv.Payout)

	res, err = h.eng.ProcessMatureInvestments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matured)
	assert.Equal(t, int64(1050), h.eng.GetBalance("u"))

	rec := h.eng.GetTransactionHistory("u", 1)[0]
	assert.Equal(t, TxInvestmentReturn, rec.Type)
	assert.Empty(t, res.Payouts)
}

func TestSweepAcrossAccounts(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "a", 100)
	h.fund(t, "b", 300)
	_, err := h.eng.CreateInvestment(ctx, "a", "crypto", 100)
	require.NoError(t, err)
	_, err = h.eng.CreateInvestment(ctx, "b", "stocks", 100)
	require.NoError(t, err)
	_, err = h.eng.CreateInvestment(ctx, "b", "savings", 200)
	require.NoError(t, err)

	h.clock.Advance(8 * 24 * time.Hour)
	res, err := h.eng.ProcessMatureInvestments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matured)
	assert.Equal(t, int64(125+210), h.eng.GetBalance("b"))
	assert.Equal(t, int64(0), h.eng.GetBalance("a"))
	assert.Equal(t, 1, h.eng.GetAccountStats("a").ActiveInvestments)

	h.clock.Advance(6 * 24 * time.Hour)
	res, err = h.eng.ProcessMatureInvestments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matured)
	assert.Equal(t, int64(150), h.eng.GetBalance("a"))
}

func TestConcurrentSweepsCreditOnce(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "u", 1000)
	_, err := h.eng.CreateInvestment(ctx, "u", "savings", 1000)
	require.NoError(t, err)
	h.clock.Advance(24 * time.Hour)

	done := make(chan SweepResult, 4)
	for range 4 {
		go func() {
			res, err := h.eng.ProcessMatureInvestments(ctx)
			assert.NoError(t, err)
			done <- res
		}()
	}
	matured := 0
	for range 4 {
		matured += (<-done).Matured
	}
	assert.Equal(t, 1, matured)
	assert.Equal(t, int64(1050), h.eng.GetBalance("u"))
}

func TestInvestmentTypesCatalog(t *testing.T) {
	types := InvestmentTypes()
	require.Len(t, types, 4)
	assert.Equal(t, "crypto", types[3].Name)
	assert.Equal(t, 336*time.Hour, types[3].Duration)
}

func TestSweepLeavesOverflowingPayoutActive(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "whale", math.MaxInt64)
	_, err := h.eng.CreateInvestment(ctx, "whale", "crypto", math.MaxInt64)
	require.NoError(t, err)

	h.clock.Advance(336 * time.Hour)
	res, err := h.eng.ProcessMatureInvestments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matured)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, int64(0), h.eng.GetBalance("whale"))
	assert.Equal(t, InvestmentActive, h.eng.ListInvestments("whale")[0].Status)
}
