package economy

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const sweepLockKey = "investments:sweep"

type InvestmentType struct {
	Name     string        `json:"name"`
	Rate     float64       `json:"rate"`
	Duration time.Duration `json:"duration"`
}

var investmentTypes = []InvestmentType{
	{"savings", 0.05, 24 * time.Hour},
	{"bonds", 0.12, 72 * time.Hour},
	{"stocks", 0.25, 168 * time.Hour},
	{"crypto", 0.50, 336 * time.Hour},
}

func InvestmentTypes() []InvestmentType {
	return slices.Clone(investmentTypes)
}

func lookupInvestment(raw string) (InvestmentType, bool) {
	name := normalizeKey(raw)
	for _, t := range investmentTypes {
		if t.Name == name {
			return t, true
		}
	}
	return InvestmentType{}, false
}

// payoutOf is floor(amount * (1 + rate)). The rate goes through its decimal
// string form so 0.05 means 5/100 exactly.
func payoutOf(inv Investment) (int64, error) {
	return mulFloorChecked(inv.Amount, decimalOne.Add(decimal.NewFromFloat(inv.Rate)))
}

func (inv Investment) due(now time.Time) bool {
	return inv.Status == InvestmentActive && !inv.Maturity.After(now)
}

func (e *Engine) CreateInvestment(ctx context.Context, accountID, investmentType string, amount int64) (CreateInvestmentResult, error) {
	var out CreateInvestmentResult
	if err := validateAccount(accountID); err != nil {
		return out, err
	}
	kind, ok := lookupInvestment(investmentType)
	if !ok {
		return out, ErrInvalidInvestmentType
	}
	if err := validatePositive(amount); err != nil {
		return out, err
	}

	release, err := e.lockAccounts(ctx, accountID)
	if err != nil {
		return out, err
	}
	defer release()

	err = e.commit(ctx, "create_investment", func(tx *docTx) error {
		if tx.balance(accountID) < amount {
			return ErrInsufficientFunds
		}
		inv := Investment{
			ID:        uuid.NewString(),
			User:      accountID,
			Type:      kind.Name,
			Amount:    amount,
			Rate:      kind.Rate,
			CreatedAt: tx.now,
			Maturity:  tx.now.Add(kind.Duration),
			Status:    InvestmentActive,
		}
		out.Balance = tx.debit(accountID, amount)
		tx.setInvestments(accountID, append(cloneInvestments(tx.doc.Investments[accountID]), inv))
		tx.log(Transaction{
			Type:   TxInvestment,
			From:   accountID,
			Amount: amount,
			Meta:   map[string]any{"investment_id": inv.ID, "investment_type": inv.Type},
		})
		out.Investment = inv
		return nil
	})
	if err != nil {
		return CreateInvestmentResult{}, err
	}
	return out, nil
}

// ProcessMatureInvestments pays out every active investment whose maturity
// has passed. It is not scheduled by the engine; the host drives it. Each
// account is settled in its own commit under that account's lock, and a
// settled entry is flipped to matured in the same commit that credits it.
// A failed account is counted and skipped; its entries stay active for the
// next sweep.
func (e *Engine) ProcessMatureInvestments(ctx context.Context) (SweepResult, error) {
	out := SweepResult{Payouts: []InvestmentPayout{}}
	release, err := e.locks.Acquire(ctx, sweepLockKey)
	if err != nil {
		return out, err
	}
	defer release()

	now := e.now()
	var accounts []string
	e.read(func(doc *Document) {
		for id, list := range doc.Investments {
			if slices.ContainsFunc(list, func(inv Investment) bool { return inv.due(now) }) {
				accounts = append(accounts, id)
			}
		}
	})
	slices.Sort(accounts)

	for _, id := range accounts {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		payouts, err := e.settleAccount(ctx, id)
		if err != nil {
			out.Failed++
			e.log.Error("investment sweep failed for account", "account", id, "err", err)
			continue
		}
		for _, p := range payouts {
			out.Matured++
			out.Credited += p.Payout
		}
		out.Payouts = append(out.Payouts, payouts...)
	}
	if out.Matured > 0 || out.Failed > 0 {
		e.log.Info("investment sweep", "matured", out.Matured, "credited", out.Credited, "failed", out.Failed)
	}
	return out, nil
}

func (e *Engine) settleAccount(ctx context.Context, accountID string) ([]InvestmentPayout, error) {
	release, err := e.lockAccounts(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	var payouts []InvestmentPayout
	err = e.commit(ctx, "settle_investments", func(tx *docTx) error {
		payouts = payouts[:0]
		next := cloneInvestments(tx.doc.Investments[accountID])
		changed := false
		for i := range next {
			if !next[i].due(tx.now) {
				continue
			}
			amt, err := payoutOf(next[i])
			if err != nil {
				return err
			}
			next[i].Status = InvestmentMatured
			next[i].Payout = amt
			changed = true
			if _, err := tx.credit(accountID, amt); err != nil {
				return err
			}
			rec := tx.log(Transaction{
				Type:   TxInvestmentReturn,
				To:     accountID,
				Amount: amt,
				Meta:   map[string]any{"investment_id": next[i].ID, "principal": next[i].Amount},
			})
			payouts = append(payouts, InvestmentPayout{
				InvestmentID:  next[i].ID,
				AccountID:     accountID,
				Payout:        amt,
				TransactionID: rec.ID,
			})
		}
		if changed {
			tx.setInvestments(accountID, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (e *Engine) ListInvestments(accountID string) []Investment {
	var out []Investment
	e.read(func(doc *Document) { out = cloneInvestments(doc.Investments[accountID]) })
	if out == nil {
		out = []Investment{}
	}
	return out
}
