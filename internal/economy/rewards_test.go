package economy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLotteryWin(t *testing.T) {
	h := newHarness(t, Options{})
	h.fund(t, "u", 100)
	h.rand.ints = []int{7, 7}

	res, err := h.eng.CreateLottery(context.Background(), "u", 10, 500)
	require.NoError(t, err)
	assert.True(t, res.Won)
	assert.Equal(t, int64(500), res.Payout)
	assert.Equal(t, int64(490), res.Net)
	assert.Equal(t, int64(590), res.Balance)

	rec := h.eng.GetTransactionHistory("u", 1)[0]
	assert.Equal(t, TxLottery, rec.Type)
	assert.Equal(t, "u", rec.To)
	assert.Equal(t, int64(490), rec.Amount)
}

func TestLotteryLossChargesTicket(t *testing.T) {
	h := newHarness(t, Options{})
	h.fund(t, "u", 100)
	h.rand.ints = []int{1, 2}

	res, err := h.eng.CreateLottery(context.Background(), "u", 10, 500)
	require.NoError(t, err)
	assert.False(t, res.Won)
	assert.Equal(t, 1, res.PlayerNumber)
	assert.Equal(t, 2, res.WinningNumber)
	assert.Equal(t, int64(-10), res.Net)
	assert.Equal(t, int64(90), h.eng.GetBalance("u"))

	rec := h.eng.GetTransactionHistory("u", 1)[0]
	assert.Equal(t, "u", rec.From)
	assert.Equal(t, int64(10), rec.Amount)
}

func TestLotteryRejections(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "u", 5)

	_, err := h.eng.CreateLottery(ctx, "u", 0, 100)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = h.eng.CreateLottery(ctx, "u", 1, -1)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = h.eng.CreateLottery(ctx, "u", 10, 100)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(5), h.eng.GetBalance("u"))
}

func TestDailyRewardCooldown(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	first, err := h.eng.ClaimDailyReward(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(50), first.Reward)
	assert.Equal(t, int64(1), first.Streak)
	assert.Equal(t, int64(50), h.eng.GetBalance("u"))

	h.clock.Advance(22*time.Hour + 30*time.Minute)
	_, err = h.eng.ClaimDailyReward(ctx, "u")
	require.ErrorIs(t, err, ErrDailyCooldown)
	assert.Equal(t, "daily_cooldown", Reason(err))
	var cd *CooldownError
	require.True(t, errors.As(err, &cd))
	assert.Equal(t, 2, cd.HoursLeft())
	assert.Equal(t, int64(50), h.eng.GetBalance("u"))

	h.clock.Advance(90 * time.Minute)
	second, err := h.eng.ClaimDailyReward(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(60), second.Reward)
	assert.Equal(t, int64(110), second.Balance)
}

func TestDailyStreakBonusCapsAndNeverResets(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	var rewards []int64
	for range 13 {
		res, err := h.eng.ClaimDailyReward(ctx, "u")
		require.NoError(t, err)
		rewards = append(rewards, res.Reward)
		h.clock.Advance(24 * time.Hour)
	}
	assert.Equal(t, []int64{50, 60, 70, 80, 90, 100, 110, 120, 130, 140, 150, 150, 150}, rewards)

	// A week away keeps the streak.
	h.clock.Advance(7 * 24 * time.Hour)
	res, err := h.eng.ClaimDailyReward(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(14), res.Streak)
	assert.Equal(t, int64(150), res.Reward)
}

func TestLotteryPrizePoolIsCapped(t *testing.T) {
	h := newHarness(t, Options{MaxPrizePool: 1000})
	ctx := context.Background()
	h.fund(t, "u", 50)

	_, err := h.eng.CreateLottery(ctx, "u", 10, 1001)
	require.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, int64(50), h.eng.GetBalance("u"))

	h.rand.ints = []int{4, 4}
	res, err := h.eng.CreateLottery(ctx, "u", 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1040), res.Balance)

	_, err = newHarness(t, Options{}).eng.CreateLottery(ctx, "u", 1, DefaultMaxPrizePool+1)
	require.ErrorIs(t, err, ErrInvalidAmount)
}
