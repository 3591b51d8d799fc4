package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BusinessType string

const (
	BusinessShop    BusinessType = "shop"
	BusinessFarm    BusinessType = "farm"
	BusinessMine    BusinessType = "mine"
	BusinessFactory BusinessType = "factory"
	BusinessBank    BusinessType = "bank"
	BusinessCasino  BusinessType = "casino"
)

// BusinessSpec is the fixed catalog entry for a business type.
type BusinessSpec struct {
	Type          BusinessType `json:"type"`
	BaseIncome    int64        `json:"base_income"`
	MinInvestment int64        `json:"min_investment"`
}

var businessSpecs = []BusinessSpec{
	{BusinessShop, 50, 100},
	{BusinessFarm, 80, 250},
	{BusinessMine, 150, 500},
	{BusinessFactory, 250, 1000},
	{BusinessBank, 400, 2500},
	{BusinessCasino, 600, 5000},
}

var (
	levelStep  = decimal.RequireFromString("0.5")
	msPerHour  = decimal.NewFromInt(time.Hour.Milliseconds())
	decimalOne = decimal.NewFromInt(1)
)

// BusinessTypes lists the catalog in ascending price order.
func BusinessTypes() []BusinessSpec {
	out := make([]BusinessSpec, len(businessSpecs))
	copy(out, businessSpecs)
	return out
}

func lookupBusiness(raw string) (BusinessSpec, bool) {
	t := BusinessType(normalizeKey(raw))
	for _, s := range businessSpecs {
		if s.Type == t {
			return s, true
		}
	}
	return BusinessSpec{}, false
}

// incomeAt is base * (1 + 0.5*(level-1)), floored.
func incomeAt(spec BusinessSpec, level int) int64 {
	factor := decimalOne.Add(levelStep.Mul(decimal.NewFromInt(int64(level - 1))))
	return mulFloor(spec.BaseIncome, factor)
}

// accrued is floor(income * hours elapsed). Time before lastCollected, from
// a clock that went backwards, accrues nothing.
func accrued(b Business, now time.Time) int64 {
	elapsed := now.Sub(b.LastCollected)
	if elapsed <= 0 || b.Income <= 0 {
		return 0
	}
	return decimal.NewFromInt(b.Income).
		Mul(decimal.NewFromInt(elapsed.Milliseconds())).
		Div(msPerHour).
		Floor().
		IntPart()
}

func (e *Engine) CreateBusiness(ctx context.Context, owner, businessType string, investment int64) (CreateBusinessResult, error) {
	var out CreateBusinessResult
	if err := validateAccount(owner); err != nil {
		return out, err
	}
	spec, ok := lookupBusiness(businessType)
	if !ok {
		return out, ErrInvalidBusinessType
	}
	if err := validatePositive(investment); err != nil {
		return out, err
	}
	if investment < spec.MinInvestment {
		return out, fmt.Errorf("%w: %s needs %d", ErrInvestmentTooLow, spec.Type, spec.MinInvestment)
	}

	release, err := e.lockAccounts(ctx, owner)
	if err != nil {
		return out, err
	}
	defer release()

	err = e.commit(ctx, "create_business", func(tx *docTx) error {
		if tx.balance(owner) < investment {
			return ErrInsufficientFunds
		}
		b := Business{
			ID:            uuid.NewString(),
			Owner:         owner,
			Type:          spec.Type,
			Level:         1,
			Income:        incomeAt(spec, 1),
			LastCollected: tx.now,
			CreatedAt:     tx.now,
		}
		out.Balance = tx.debit(owner, investment)
		tx.setBusinesses(owner, append(cloneBusinesses(tx.doc.BusinessData[owner]), b))
		tx.log(Transaction{
			Type:   TxBusinessPurchase,
			From:   owner,
			Amount: investment,
			Meta:   map[string]any{"business_id": b.ID, "business_type": string(b.Type)},
		})
		out.Business = b
		return nil
	})
	if err != nil {
		return CreateBusinessResult{}, err
	}
	return out, nil
}

// CollectBusinessIncome realizes accrued income across every business the
// owner has, as a single credit and a single record, and moves every
// lastCollected to now. When the total floors to zero, no state changes and
// lastCollected stays where it was, so a partial hour keeps accruing toward
// the next collection instead of being discarded.
func (e *Engine) CollectBusinessIncome(ctx context.Context, owner string) (CollectResult, error) {
	out := CollectResult{PerBusiness: map[string]int64{}}
	if err := validateAccount(owner); err != nil {
		return out, err
	}
	release, err := e.lockAccounts(ctx, owner)
	if err != nil {
		return out, err
	}
	defer release()

	err = e.commit(ctx, "collect_income", func(tx *docTx) error {
		list := tx.doc.BusinessData[owner]
		if len(list) == 0 {
			return ErrNoBusinesses
		}
		var total int64
		for _, b := range list {
			n := accrued(b, tx.now)
			out.PerBusiness[b.ID] = n
			var err error
			if total, err = checkedAdd(total, n); err != nil {
				return err
			}
		}
		out.Balance = tx.balance(owner)
		if total == 0 {
			return nil
		}
		next := cloneBusinesses(list)
		for i := range next {
			next[i].LastCollected = tx.now
		}
		tx.setBusinesses(owner, next)
		bal, err := tx.credit(owner, total)
		if err != nil {
			return err
		}
		out.Balance = bal
		rec := tx.log(Transaction{
			Type:   TxBusinessIncome,
			To:     owner,
			Amount: total,
			Meta:   map[string]any{"businesses": len(next)},
		})
		out.Income = total
		out.TransactionID = rec.ID
		return nil
	})
	if err != nil {
		return CollectResult{PerBusiness: map[string]int64{}}, err
	}
	return out, nil
}

// UpgradeBusiness raises a business one level for level*500. lastCollected
// is kept, so income accrued since then is paid at the new rate on the next
// collect.
func (e *Engine) UpgradeBusiness(ctx context.Context, owner, businessID string) (UpgradeResult, error) {
	var out UpgradeResult
	if err := validateAccount(owner); err != nil {
		return out, err
	}
	release, err := e.lockAccounts(ctx, owner)
	if err != nil {
		return out, err
	}
	defer release()

	err = e.commit(ctx, "upgrade_business", func(tx *docTx) error {
		list := tx.doc.BusinessData[owner]
		idx := -1
		for i, b := range list {
			if b.ID == businessID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrBusinessNotFound
		}
		b := list[idx]
		spec, ok := lookupBusiness(string(b.Type))
		if !ok {
			return fmt.Errorf("%w: stored business has type %q", ErrInvalidBusinessType, b.Type)
		}
		cost := int64(b.Level) * UpgradeCostPerLevel
		if tx.balance(owner) < cost {
			return ErrInsufficientFunds
		}
		b.Level++
		b.Upgrades++
		b.Income = incomeAt(spec, b.Level)

		next := cloneBusinesses(list)
		next[idx] = b
		tx.setBusinesses(owner, next)
		out.Balance = tx.debit(owner, cost)
		tx.log(Transaction{
			Type:   TxBusinessUpgrade,
			From:   owner,
			Amount: cost,
			Meta:   map[string]any{"business_id": b.ID, "level": b.Level},
		})
		out.Business = b
		out.Cost = cost
		return nil
	})
	if err != nil {
		return UpgradeResult{}, err
	}
	return out, nil
}

func (e *Engine) ListBusinesses(owner string) []Business {
	var out []Business
	e.read(func(doc *Document) { out = cloneBusinesses(doc.BusinessData[owner]) })
	if out == nil {
		out = []Business{}
	}
	return out
}

// PendingIncome previews what CollectBusinessIncome would pay right now.
func (e *Engine) PendingIncome(owner string) int64 {
	now := e.now()
	var total int64
	e.read(func(doc *Document) {
		for _, b := range doc.BusinessData[owner] {
			total += accrued(b, now)
		}
	})
	return total
}
