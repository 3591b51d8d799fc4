package economy

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultMaxTransactions = 10_000
	DefaultRetention       = 30 * 24 * time.Hour
	DefaultBalanceTTL      = 60 * time.Second
	DefaultSliceTTL        = 30 * time.Second

	MaxHistoryLimit     = 1000
	MaxLeaderboardLimit = 100
	MaxPriceHistory     = 100
	MaxTradeQuantity    = 1000

	DailyCooldown     = 24 * time.Hour
	DailyBaseReward   = int64(50)
	DailyStreakBonus  = int64(10)
	DailyStreakCap    = int64(100)
	LotteryNumberSpan = 1000

	UpgradeCostPerLevel = int64(500)

	DefaultMaxPrizePool = int64(1_000_000)
)

var sellRatio = decimal.RequireFromString("0.8")

var (
	ErrInvalidAccount        = errors.New("invalid account id")
	ErrInvalidAmount         = errors.New("amount must be a positive integer")
	ErrInvalidTarget         = errors.New("cannot transfer to the same account")
	ErrInvalidQuantity       = errors.New("quantity out of range")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInvalidBusinessType   = errors.New("unknown business type")
	ErrInvestmentTooLow      = errors.New("investment below minimum for business type")
	ErrBusinessNotFound      = errors.New("business not found")
	ErrNoBusinesses          = errors.New("account owns no businesses")
	ErrInvalidInvestmentType = errors.New("unknown investment type")
	ErrUnknownItem           = errors.New("unknown market item")
	ErrDailyCooldown         = errors.New("daily reward already claimed")
	ErrInvalidTransaction    = errors.New("transaction type is required")
	ErrPersistFailed         = errors.New("persisting ledger document failed")
	ErrBalanceOverflow       = errors.New("balance would exceed the maximum")
)

// CooldownError reports how long until the next daily claim is allowed.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("daily reward already claimed: %d hour(s) left", e.HoursLeft())
}

func (e *CooldownError) Unwrap() error { return ErrDailyCooldown }

// HoursLeft rounds up so that a pending cooldown never reports zero.
func (e *CooldownError) HoursLeft() int {
	h := int(math.Ceil(e.Remaining.Hours()))
	if h < 1 {
		h = 1
	}
	return h
}

var reasons = []struct {
	err    error
	reason string
}{
	{ErrInvalidAccount, "invalid_account"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidTarget, "invalid_target"},
	{ErrInvalidQuantity, "invalid_quantity"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrInvalidBusinessType, "invalid_business_type"},
	{ErrInvestmentTooLow, "investment_too_low"},
	{ErrBusinessNotFound, "business_not_found"},
	{ErrNoBusinesses, "no_businesses"},
	{ErrInvalidInvestmentType, "invalid_investment_type"},
	{ErrUnknownItem, "unknown_item"},
	{ErrDailyCooldown, "daily_cooldown"},
	{ErrInvalidTransaction, "invalid_transaction"},
	{ErrPersistFailed, "persist_failed"},
	{ErrBalanceOverflow, "balance_overflow"},
}

// Reason maps err to the stable code the command layer branches on. Errors
// that are not business outcomes map to "internal".
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}

// IsBusinessError reports whether err is an expected outcome rather than a
// fault. Persistence failures count as faults.
func IsBusinessError(err error) bool {
	switch Reason(err) {
	case "", "internal", "persist_failed":
		return false
	}
	return true
}

var accountRE = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

// ValidAccountID accepts chat-platform ids (snowflakes, usernames, prefixed
// ids) and rejects empty or oversized values.
func ValidAccountID(id string) bool {
	return accountRE.MatchString(id)
}

func validateAccount(id string) error {
	if !ValidAccountID(id) {
		return ErrInvalidAccount
	}
	return nil
}

func validatePositive(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clampLimit(limit, max int) int {
	if limit < 1 {
		return 1
	}
	if limit > max {
		return max
	}
	return limit
}

// mulFloor returns floor(amount * factor) without binary float drift, so
// 100 * 1.15 pays 115 rather than 114.
func mulFloor(amount int64, factor decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(factor).Floor().IntPart()
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// mulFloorChecked is mulFloor for products that may not fit in an int64.
func mulFloorChecked(amount int64, factor decimal.Decimal) (int64, error) {
	d := decimal.NewFromInt(amount).Mul(factor).Floor()
	if d.GreaterThan(maxAmount) {
		return 0, ErrBalanceOverflow
	}
	return d.IntPart(), nil
}

// checkedAdd adds two non-negative amounts.
func checkedAdd(a, b int64) (int64, error) {
	if b > math.MaxInt64-a {
		return 0, ErrBalanceOverflow
	}
	return a + b, nil
}

// checkedMul multiplies two non-negative amounts and reports overflow.
func checkedMul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxInt64/b {
		return 0, fmt.Errorf("%w: total overflows", ErrInvalidQuantity)
	}
	return a * b, nil
}
