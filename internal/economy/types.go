package economy

import "time"

type TransferResult struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	FromBalance   int64  `json:"from_balance"`
	ToBalance     int64  `json:"to_balance"`
}

type LeaderboardRow struct {
	Rank      int    `json:"rank"`
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

type AccountStats struct {
	AccountID         string `json:"account_id"`
	Balance           int64  `json:"balance"`
	TotalSent         int64  `json:"total_sent"`
	TotalReceived     int64  `json:"total_received"`
	TransactionCount  int    `json:"transaction_count"`
	BusinessCount     int    `json:"business_count"`
	ActiveInvestments int    `json:"active_investments"`
	DailyStreak       int64  `json:"daily_streak"`
}

type CollectResult struct {
	Income        int64            `json:"income"`
	Balance       int64            `json:"balance"`
	TransactionID string           `json:"transaction_id,omitempty"`
	PerBusiness   map[string]int64 `json:"per_business"`
}

type UpgradeResult struct {
	Business Business `json:"business"`
	Cost     int64    `json:"cost"`
	Balance  int64    `json:"balance"`
}

type CreateBusinessResult struct {
	Business Business `json:"business"`
	Balance  int64    `json:"balance"`
}

type CreateInvestmentResult struct {
	Investment Investment `json:"investment"`
	Balance    int64      `json:"balance"`
}

type InvestmentPayout struct {
	InvestmentID  string `json:"investment_id"`
	AccountID     string `json:"account_id"`
	Payout        int64  `json:"payout"`
	TransactionID string `json:"transaction_id"`
}

type SweepResult struct {
	Matured  int                `json:"matured"`
	Credited int64              `json:"credited"`
	Payouts  []InvestmentPayout `json:"payouts"`
	Failed   int                `json:"failed"`
}

type TradeResult struct {
	ItemID        string `json:"item_id"`
	Quantity      int64  `json:"quantity"`
	UnitPrice     int64  `json:"unit_price"`
	Total         int64  `json:"total"`
	Balance       int64  `json:"balance"`
	TransactionID string `json:"transaction_id"`
}

type LotteryResult struct {
	PlayerNumber  int   `json:"player_number"`
	WinningNumber int   `json:"winning_number"`
	Won           bool  `json:"won"`
	TicketPrice   int64 `json:"ticket_price"`
	Payout        int64 `json:"payout"`
	Net           int64 `json:"net"`
	Balance       int64 `json:"balance"`
}

type DailyRewardResult struct {
	Reward    int64     `json:"reward"`
	Streak    int64     `json:"streak"`
	Balance   int64     `json:"balance"`
	NextClaim time.Time `json:"next_claim"`
}

type TickResult struct {
	Items  int              `json:"items"`
	Prices map[string]int64 `json:"prices"`
	At     time.Time        `json:"at"`
}
