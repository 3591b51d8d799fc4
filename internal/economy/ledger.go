package economy

import (
	"cmp"
	"context"
	"slices"
)

// GetBalance never fails: an unknown or malformed account has balance 0.
func (e *Engine) GetBalance(accountID string) int64 {
	if !ValidAccountID(accountID) {
		return 0
	}
	return cached(e, balanceKey(accountID), e.balanceTTL, func(doc *Document) int64 {
		return doc.UserBalances[accountID]
	})
}

// SetBalance overwrites the balance, clamped to zero.
func (e *Engine) SetBalance(ctx context.Context, accountID string, amount int64) (int64, error) {
	if err := validateAccount(accountID); err != nil {
		return 0, err
	}
	release, err := e.lockAccounts(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer release()

	var out int64
	err = e.commit(ctx, "set_balance", func(tx *docTx) error {
		prev := tx.balance(accountID)
		out = tx.setBalance(accountID, amount)
		tx.log(Transaction{
			Type:   TxAdminSet,
			To:     accountID,
			Amount: out - prev,
			Meta:   map[string]any{"previous": prev, "balance": out},
		})
		return nil
	})
	if err != nil {
		return e.GetBalance(accountID), err
	}
	return out, nil
}

// AddBalance credits amount. Negative amounts are rejected; zero is a no-op.
func (e *Engine) AddBalance(ctx context.Context, accountID string, amount int64) (int64, error) {
	if err := validateAccount(accountID); err != nil {
		return 0, err
	}
	if amount < 0 {
		return e.GetBalance(accountID), ErrInvalidAmount
	}
	if amount == 0 {
		return e.GetBalance(accountID), nil
	}
	release, err := e.lockAccounts(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer release()

	var out int64
	err = e.commit(ctx, "add_balance", func(tx *docTx) error {
		bal, err := tx.credit(accountID, amount)
		if err != nil {
			return err
		}
		out = bal
		tx.log(Transaction{Type: TxCredit, To: accountID, Amount: amount})
		return nil
	})
	if err != nil {
		return e.GetBalance(accountID), err
	}
	return out, nil
}

// SubtractBalance debits amount, stopping at zero. It does not refuse a debit
// larger than the balance; callers that must refuse check GetBalance first.
// The logged amount is what was actually removed.
func (e *Engine) SubtractBalance(ctx context.Context, accountID string, amount int64) (int64, error) {
	if err := validateAccount(accountID); err != nil {
		return 0, err
	}
	if amount < 0 {
		return e.GetBalance(accountID), ErrInvalidAmount
	}
	if amount == 0 {
		return e.GetBalance(accountID), nil
	}
	release, err := e.lockAccounts(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer release()

	var out int64
	err = e.commit(ctx, "subtract_balance", func(tx *docTx) error {
		prev := tx.balance(accountID)
		out = tx.debit(accountID, amount)
		if applied := prev - out; applied > 0 {
			tx.log(Transaction{
				Type:   TxDebit,
				From:   accountID,
				Amount: applied,
				Meta:   map[string]any{"requested": amount},
			})
		}
		return nil
	})
	if err != nil {
		return e.GetBalance(accountID), err
	}
	return out, nil
}

// TransferBalance moves amount from one account to another. Both sides and
// the transfer record land in one commit, so a transfer is never partially
// applied. Insufficient funds leave both balances untouched.
func (e *Engine) TransferBalance(ctx context.Context, from, to string, amount int64) (TransferResult, error) {
	var out TransferResult
	if err := validateAccount(from); err != nil {
		return out, err
	}
	if err := validateAccount(to); err != nil {
		return out, err
	}
	if from == to {
		return out, ErrInvalidTarget
	}
	if err := validatePositive(amount); err != nil {
		return out, err
	}
	if e.GetBalance(from) < amount {
		return out, ErrInsufficientFunds
	}

	release, err := e.lockAccounts(ctx, from, to)
	if err != nil {
		return out, err
	}
	defer release()

	err = e.commit(ctx, "transfer", func(tx *docTx) error {
		// The pre-check above ran before the lock; a competing debit may
		// have landed since.
		if tx.balance(from) < amount {
			return ErrInsufficientFunds
		}
		out.FromBalance = tx.debit(from, amount)
		bal, err := tx.credit(to, amount)
		if err != nil {
			return err
		}
		out.ToBalance = bal
		rec := tx.log(Transaction{Type: TxTransfer, From: from, To: to, Amount: amount})
		out.TransactionID = rec.ID
		out.Amount = amount
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	return out, nil
}

// TopBalances ranks accounts by balance, highest first. limit is clamped to
// [1, 100]; the ranking is cached for the slice TTL.
func (e *Engine) TopBalances(limit int) []LeaderboardRow {
	limit = clampLimit(limit, MaxLeaderboardLimit)
	rows := cached(e, leaderboardKey(limit), e.sliceTTL, func(doc *Document) []LeaderboardRow {
		all := make([]LeaderboardRow, 0, len(doc.UserBalances))
		for id, bal := range doc.UserBalances {
			if bal > 0 {
				all = append(all, LeaderboardRow{AccountID: id, Balance: bal})
			}
		}
		slices.SortFunc(all, func(a, b LeaderboardRow) int {
			if c := cmp.Compare(b.Balance, a.Balance); c != 0 {
				return c
			}
			return cmp.Compare(a.AccountID, b.AccountID)
		})
		if len(all) > limit {
			all = all[:limit]
		}
		for i := range all {
			all[i].Rank = i + 1
		}
		return all
	})
	return slices.Clone(rows)
}

// TotalSupply sums every balance.
func (e *Engine) TotalSupply() int64 {
	var total int64
	e.read(func(doc *Document) {
		for _, bal := range doc.UserBalances {
			total += bal
		}
	})
	return total
}
