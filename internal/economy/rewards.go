package economy

import (
	"context"
	"fmt"
)

// CreateLottery sells one ticket and draws. The ticket is always charged; a
// match pays prizePool, which may not exceed the configured maximum. One
// record carries the net change.
func (e *Engine) CreateLottery(ctx context.Context, accountID string, ticketPrice, prizePool int64) (LotteryResult, error) {
	var out LotteryResult
	if err := validateAccount(accountID); err != nil {
		return out, err
	}
	if err := validatePositive(ticketPrice); err != nil {
		return out, err
	}
	if prizePool < 0 {
		return out, ErrInvalidAmount
	}
	if prizePool > e.maxPool {
		return out, fmt.Errorf("%w: prize pool above %d", ErrInvalidAmount, e.maxPool)
	}

	release, err := e.lockAccounts(ctx, accountID)
	if err != nil {
		return out, err
	}
	defer release()

	err = e.commit(ctx, "lottery", func(tx *docTx) error {
		if tx.balance(accountID) < ticketPrice {
			return ErrInsufficientFunds
		}
		out.PlayerNumber = e.nextIntn(LotteryNumberSpan)
		out.WinningNumber = e.nextIntn(LotteryNumberSpan)
		out.Won = out.PlayerNumber == out.WinningNumber
		out.TicketPrice = ticketPrice

		out.Balance = tx.debit(accountID, ticketPrice)
		if out.Won {
			bal, err := tx.credit(accountID, prizePool)
			if err != nil {
				return err
			}
			out.Payout, out.Balance = prizePool, bal
		}
		out.Net = out.Payout - ticketPrice

		rec := Transaction{
			Type: TxLottery,
			Meta: map[string]any{
				"player_number":  out.PlayerNumber,
				"winning_number": out.WinningNumber,
				"ticket_price":   ticketPrice,
				"prize_pool":     prizePool,
				"net":            out.Net,
			},
		}
		if out.Net < 0 {
			rec.From, rec.Amount = accountID, -out.Net
		} else {
			rec.To, rec.Amount = accountID, out.Net
		}
		tx.log(rec)
		return nil
	})
	if err != nil {
		return LotteryResult{}, err
	}
	return out, nil
}

// ClaimDailyReward pays 50 plus 10 per streak day, bonus capped at 100, once
// per rolling 24h. The streak only grows; a missed day does not reset it.
func (e *Engine) ClaimDailyReward(ctx context.Context, accountID string) (DailyRewardResult, error) {
	var out DailyRewardResult
	if err := validateAccount(accountID); err != nil {
		return out, err
	}
	release, err := e.lockAccounts(ctx, accountID)
	if err != nil {
		return out, err
	}
	defer release()

	err = e.commit(ctx, "daily_reward", func(tx *docTx) error {
		rec, claimed := tx.doc.DailyRewards[accountID]
		if claimed {
			if since := tx.now.Sub(rec.LastClaim); since < DailyCooldown {
				return &CooldownError{Remaining: DailyCooldown - since}
			}
		}
		reward := DailyBaseReward + min(rec.Streak*DailyStreakBonus, DailyStreakCap)
		next := DailyReward{LastClaim: tx.now, Streak: rec.Streak + 1}
		tx.setDailyReward(accountID, next)
		bal, err := tx.credit(accountID, reward)
		if err != nil {
			return err
		}
		out.Balance = bal
		tx.log(Transaction{
			Type:   TxDailyReward,
			To:     accountID,
			Amount: reward,
			Meta:   map[string]any{"streak": next.Streak},
		})
		out.Reward = reward
		out.Streak = next.Streak
		out.NextClaim = tx.now.Add(DailyCooldown)
		return nil
	})
	if err != nil {
		return DailyRewardResult{}, err
	}
	return out, nil
}
