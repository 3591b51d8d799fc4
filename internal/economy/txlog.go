package economy

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// log stamps rec with an id and the commit time, appends it and trims the
// log to the newest maxTx entries.
func (tx *docTx) log(rec Transaction) Transaction {
	rec.ID = uuid.NewString()
	rec.Timestamp = tx.now

	list := append(tx.doc.Transactions, rec)
	if over := len(list) - tx.maxTx; over > 0 {
		// Copy so the dropped prefix can be collected.
		list = append(make([]Transaction, 0, tx.maxTx), list[over:]...)
	}
	tx.setTransactions(list)
	tx.logged = append(tx.logged, rec)
	for _, id := range []string{rec.From, rec.To} {
		if id != "" {
			tx.touchHistory(id)
		}
	}
	return rec
}

func (tx *docTx) touchHistory(accountID string) {
	tx.invalidate = append(tx.invalidate, statsKey(accountID))
	tx.prefixes = append(tx.prefixes, historyPrefix(accountID))
}

// LogTransaction appends an externally produced record, e.g. from a game
// that settles through its own balance calls. ID and Timestamp are assigned.
func (e *Engine) LogTransaction(ctx context.Context, rec Transaction) (Transaction, error) {
	if rec.Type == "" {
		return Transaction{}, ErrInvalidTransaction
	}
	for _, id := range []string{rec.From, rec.To} {
		if id != "" && !ValidAccountID(id) {
			return Transaction{}, ErrInvalidAccount
		}
	}
	var out Transaction
	err := e.commit(ctx, "log_transaction", func(tx *docTx) error {
		out = tx.log(rec)
		return nil
	})
	return out, err
}

// GetTransactionHistory returns the newest records where accountID is sender
// or receiver. limit is clamped to [1, 1000]. Results are cached per
// (account, limit) for the slice TTL.
func (e *Engine) GetTransactionHistory(accountID string, limit int) []Transaction {
	if !ValidAccountID(accountID) {
		return []Transaction{}
	}
	limit = clampLimit(limit, MaxHistoryLimit)
	out := cached(e, historyKey(accountID, limit), e.sliceTTL, func(doc *Document) []Transaction {
		res := make([]Transaction, 0, limit)
		// The log is append-only and stamped at commit time, so walking
		// backwards yields newest first.
		for i := len(doc.Transactions) - 1; i >= 0 && len(res) < limit; i-- {
			if doc.Transactions[i].involves(accountID) {
				res = append(res, doc.Transactions[i])
			}
		}
		return res
	})
	return slices.Clone(out)
}

// PruneTransactions drops records older than the retention window and
// reports how many went.
func (e *Engine) PruneTransactions(ctx context.Context) (int, error) {
	removed := 0
	err := e.commit(ctx, "prune_transactions", func(tx *docTx) error {
		cutoff := tx.now.Add(-e.retention)
		list := tx.doc.Transactions
		i := 0
		for i < len(list) && list[i].Timestamp.Before(cutoff) {
			i++
		}
		if i == 0 {
			return nil
		}
		kept := append(make([]Transaction, 0, len(list)-i), list[i:]...)
		for _, t := range list[:i] {
			for _, id := range []string{t.From, t.To} {
				if id != "" {
					tx.touchHistory(id)
				}
			}
		}
		tx.setTransactions(kept)
		removed = i
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		e.log.Info("transactions pruned", "removed", removed, "retention", e.retention.String())
	}
	return removed, nil
}

// TransactionCount reports the current length of the log.
func (e *Engine) TransactionCount() int {
	n := 0
	e.read(func(doc *Document) { n = len(doc.Transactions) })
	return n
}

// GetAccountStats summarizes an account. Cached for the slice TTL.
func (e *Engine) GetAccountStats(accountID string) AccountStats {
	if !ValidAccountID(accountID) {
		return AccountStats{AccountID: accountID}
	}
	return cached(e, statsKey(accountID), e.sliceTTL, func(doc *Document) AccountStats {
		st := AccountStats{
			AccountID:     accountID,
			Balance:       doc.UserBalances[accountID],
			BusinessCount: len(doc.BusinessData[accountID]),
			DailyStreak:   doc.DailyRewards[accountID].Streak,
		}
		for _, t := range doc.Transactions {
			if !t.involves(accountID) {
				continue
			}
			st.TransactionCount++
			if t.Type != TxTransfer {
				continue
			}
			if t.From == accountID {
				st.TotalSent += t.Amount
			}
			if t.To == accountID {
				st.TotalReceived += t.Amount
			}
		}
		for _, inv := range doc.Investments[accountID] {
			if inv.Status == InvestmentActive {
				st.ActiveInvestments++
			}
		}
		return st
	})
}
