package economy

import (
	"slices"
	"time"
)

// Document is the persisted shape. Top-level maps are keyed by account id,
// except MarketItems which is keyed by item id.
type Document struct {
	UserBalances map[string]int64        `json:"userBalances"`
	Transactions []Transaction           `json:"transactions"`
	BusinessData map[string][]Business   `json:"businessData"`
	Investments  map[string][]Investment `json:"investments"`
	DailyRewards map[string]DailyReward  `json:"dailyRewards"`
	MarketItems  map[string]MarketItem   `json:"marketItems"`
}

func newDocument() *Document {
	d := &Document{}
	d.ensure()
	return d
}

// ensure fills in maps a loaded document may lack.
func (d *Document) ensure() {
	if d.UserBalances == nil {
		d.UserBalances = map[string]int64{}
	}
	if d.Transactions == nil {
		d.Transactions = []Transaction{}
	}
	if d.BusinessData == nil {
		d.BusinessData = map[string][]Business{}
	}
	if d.Investments == nil {
		d.Investments = map[string][]Investment{}
	}
	if d.DailyRewards == nil {
		d.DailyRewards = map[string]DailyReward{}
	}
	if d.MarketItems == nil {
		d.MarketItems = map[string]MarketItem{}
	}
}

type TxType string

const (
	TxTransfer         TxType = "transfer"
	TxCredit           TxType = "credit"
	TxDebit            TxType = "debit"
	TxAdminSet         TxType = "admin_set"
	TxBusinessPurchase TxType = "business_purchase"
	TxBusinessIncome   TxType = "business_income"
	TxBusinessUpgrade  TxType = "business_upgrade"
	TxInvestment       TxType = "investment_deposit"
	TxInvestmentReturn TxType = "investment_return"
	TxMarketBuy        TxType = "market_buy"
	TxMarketSell       TxType = "market_sell"
	TxLottery          TxType = "lottery"
	TxDailyReward      TxType = "daily_reward"
)

// Transaction is immutable once logged. From is the debited account and To
// the credited one; single-sided events set only one of them.
type Transaction struct {
	ID        string         `json:"id"`
	Type      TxType         `json:"type"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	Amount    int64          `json:"amount"`
	Timestamp time.Time      `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

func (t Transaction) involves(accountID string) bool {
	return t.From == accountID || t.To == accountID
}

type Business struct {
	ID            string       `json:"id"`
	Owner         string       `json:"owner"`
	Type          BusinessType `json:"type"`
	Level         int          `json:"level"`
	Income        int64        `json:"income"`
	LastCollected time.Time    `json:"lastCollected"`
	Upgrades      int          `json:"upgrades"`
	CreatedAt     time.Time    `json:"createdAt"`
}

type InvestmentStatus string

const (
	InvestmentActive  InvestmentStatus = "active"
	InvestmentMatured InvestmentStatus = "matured"
)

type Investment struct {
	ID        string           `json:"id"`
	User      string           `json:"user"`
	Type      string           `json:"type"`
	Amount    int64            `json:"amount"`
	Rate      float64          `json:"rate"`
	CreatedAt time.Time        `json:"createdAt"`
	Maturity  time.Time        `json:"maturity"`
	Status    InvestmentStatus `json:"status"`
	Payout    int64            `json:"payout,omitempty"`
}

type DailyReward struct {
	LastClaim time.Time `json:"lastClaim"`
	Streak    int64     `json:"streak"`
}

type PricePoint struct {
	Price     int64     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

type MarketItem struct {
	ItemID       string       `json:"itemId"`
	Name         string       `json:"name"`
	BasePrice    int64        `json:"basePrice"`
	CurrentPrice int64        `json:"currentPrice"`
	Volatility   float64      `json:"volatility"`
	History      []PricePoint `json:"history"`
}

// docTx mutates the document inside a commit and records how to undo each
// change. Undo runs in reverse order.
type docTx struct {
	doc        *Document
	now        time.Time
	maxTx      int
	undo       []func()
	invalidate []string
	prefixes   []string
	logged     []Transaction
}

func (tx *docTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *docTx) balance(accountID string) int64 {
	return tx.doc.UserBalances[accountID]
}

// setBalance clamps to zero and returns the stored value.
func (tx *docTx) setBalance(accountID string, amount int64) int64 {
	if amount < 0 {
		amount = 0
	}
	prev, had := tx.doc.UserBalances[accountID]
	tx.undo = append(tx.undo, func() {
		if had {
			tx.doc.UserBalances[accountID] = prev
		} else {
			delete(tx.doc.UserBalances, accountID)
		}
	})
	tx.doc.UserBalances[accountID] = amount
	tx.touchAccount(accountID)
	tx.prefixes = append(tx.prefixes, leaderboardPrefix)
	return amount
}

// credit refuses before mutating when the sum would not fit in an int64.
func (tx *docTx) credit(accountID string, amount int64) (int64, error) {
	next, err := checkedAdd(tx.balance(accountID), amount)
	if err != nil {
		return tx.balance(accountID), err
	}
	return tx.setBalance(accountID, next), nil
}

func (tx *docTx) debit(accountID string, amount int64) int64 {
	return tx.setBalance(accountID, tx.balance(accountID)-amount)
}

func (tx *docTx) setBusinesses(owner string, list []Business) {
	prev, had := tx.doc.BusinessData[owner]
	tx.undo = append(tx.undo, func() {
		if had {
			tx.doc.BusinessData[owner] = prev
		} else {
			delete(tx.doc.BusinessData, owner)
		}
	})
	tx.doc.BusinessData[owner] = list
	tx.touchAccount(owner)
}

func (tx *docTx) setInvestments(accountID string, list []Investment) {
	prev, had := tx.doc.Investments[accountID]
	tx.undo = append(tx.undo, func() {
		if had {
			tx.doc.Investments[accountID] = prev
		} else {
			delete(tx.doc.Investments, accountID)
		}
	})
	tx.doc.Investments[accountID] = list
	tx.touchAccount(accountID)
}

func (tx *docTx) setDailyReward(accountID string, rec DailyReward) {
	prev, had := tx.doc.DailyRewards[accountID]
	tx.undo = append(tx.undo, func() {
		if had {
			tx.doc.DailyRewards[accountID] = prev
		} else {
			delete(tx.doc.DailyRewards, accountID)
		}
	})
	tx.doc.DailyRewards[accountID] = rec
	tx.invalidate = append(tx.invalidate, statsKey(accountID))
}

func (tx *docTx) setMarketItem(item MarketItem) {
	prev, had := tx.doc.MarketItems[item.ItemID]
	tx.undo = append(tx.undo, func() {
		if had {
			tx.doc.MarketItems[item.ItemID] = prev
		} else {
			delete(tx.doc.MarketItems, item.ItemID)
		}
	})
	tx.doc.MarketItems[item.ItemID] = item
}

// setTransactions swaps the whole log. The previous slice header is kept for
// undo; appends past its length never change what it sees.
func (tx *docTx) setTransactions(list []Transaction) {
	prev := tx.doc.Transactions
	tx.undo = append(tx.undo, func() { tx.doc.Transactions = prev })
	tx.doc.Transactions = list
}

func (tx *docTx) touchAccount(accountID string) {
	tx.invalidate = append(tx.invalidate, balanceKey(accountID), statsKey(accountID))
	tx.prefixes = append(tx.prefixes, historyPrefix(accountID))
}

func cloneBusinesses(list []Business) []Business      { return slices.Clone(list) }
func cloneInvestments(list []Investment) []Investment { return slices.Clone(list) }
