package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	cl "coinledger/internal/cli"
	"coinledger/internal/economy"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type balancePayload struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

type transferPayload struct {
	Transfer economy.TransferResult `json:"transfer"`
}

type historyPayload struct {
	Transactions []economy.Transaction `json:"transactions"`
}

type statsPayload struct {
	Stats economy.AccountStats `json:"stats"`
}

type leaderboardPayload struct {
	Rows []economy.LeaderboardRow `json:"rows"`
}

type businessesPayload struct {
	Businesses    []economy.Business     `json:"businesses"`
	PendingIncome int64                  `json:"pending_income"`
	Types         []economy.BusinessSpec `json:"types"`
}

type businessCreatedPayload struct {
	Business economy.Business `json:"business"`
	Balance  int64            `json:"balance"`
}

type collectPayload struct {
	Collect economy.CollectResult `json:"collect"`
}

type upgradePayload struct {
	Upgrade economy.UpgradeResult `json:"upgrade"`
}

type investmentsPayload struct {
	Investments []economy.Investment `json:"investments"`
}

type investmentTypesPayload struct {
	Types []struct {
		Name          string  `json:"name"`
		Rate          float64 `json:"rate"`
		DurationHours int64   `json:"duration_hours"`
	} `json:"types"`
}

type investmentCreatedPayload struct {
	Investment economy.Investment `json:"investment"`
	Balance    int64              `json:"balance"`
}

type marketPayload struct {
	Items []economy.MarketItem `json:"items"`
}

type marketItemPayload struct {
	Item economy.MarketItem `json:"item"`
}

type tradePayload struct {
	Trade economy.TradeResult `json:"trade"`
}

type lotteryPayload struct {
	Lottery economy.LotteryResult `json:"lottery"`
}

type dailyPayload struct {
	Daily economy.DailyRewardResult `json:"daily"`
}

type tickPayload struct {
	Tick economy.TickResult `json:"tick"`
}

type sweepPayload struct {
	Sweep economy.SweepResult `json:"sweep"`
}

type prunePayload struct {
	Removed int `json:"removed"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

// describeReason turns a server reason code into a line for the terminal.
func describeReason(e *cl.APIError) string {
	switch e.Reason {
	case "insufficient_funds":
		return "Not enough coins for that."
	case "daily_cooldown":
		return fmt.Sprintf("Daily reward already claimed. Try again in %d hour(s).", e.HoursLeft)
	case "balance_overflow":
		return "That would push the balance past the maximum. Nothing was applied."
	case "no_businesses":
		return "You do not own any businesses yet."
	case "investment_too_low":
		return "Investment is below the minimum for that business type."
	case "missing_account":
		return "No acting account was sent. Use --account or `ledgerctl use`."
	case "unauthorized":
		return "Admin token was rejected."
	case "persist_failed", "timeout":
		return "The server could not save the change. Nothing was applied; try again."
	}
	return e.Reason + ": " + e.Message
}

func renderBalance(raw map[string]any) error {
	out, err := decodeInto[balancePayload](raw)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s coins\n", accent.Sprint(out.AccountID), comma(out.Balance))
	return nil
}

func renderTransfer(raw map[string]any, to string) error {
	out, err := decodeInto[transferPayload](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Sent %s coins to %s.", comma(out.Transfer.Amount), to))
	fmt.Printf("Your balance: %s coins\n", comma(out.Transfer.FromBalance))
	fmt.Printf("Reference:    %s\n", out.Transfer.TransactionID)
	return nil
}

func renderHistory(raw map[string]any, account string) error {
	out, err := decodeInto[historyPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== TRANSACTIONS ==")
	if len(out.Transactions) == 0 {
		printInfo("No transactions yet.")
		return nil
	}
	fmt.Printf("%-17s %-18s %-16s %-16s %12s\n", "TIME", "TYPE", "FROM", "TO", "AMOUNT")
	for _, tx := range out.Transactions {
		amount := tx.Amount
		if tx.From == account && tx.To != account {
			amount = -amount
		}
		fmt.Printf("%-17s %-18s %-16s %-16s %12s\n",
			tx.Timestamp.Local().Format("2006-01-02 15:04"),
			truncate(string(tx.Type), 18),
			truncate(dash(tx.From), 16),
			truncate(dash(tx.To), 16),
			colorize(amount),
		)
	}
	fmt.Println()
	return nil
}

func renderStats(raw map[string]any) error {
	out, err := decodeInto[statsPayload](raw)
	if err != nil {
		return err
	}
	s := out.Stats
	accent.Printf("\n== %s ==\n", s.AccountID)
	fmt.Printf("Balance:        %s coins\n", comma(s.Balance))
	fmt.Printf("Sent:           %s\n", comma(s.TotalSent))
	fmt.Printf("Received:       %s\n", comma(s.TotalReceived))
	fmt.Printf("Transactions:   %d\n", s.TransactionCount)
	fmt.Printf("Businesses:     %d\n", s.BusinessCount)
	fmt.Printf("Investments:    %d active\n", s.ActiveInvestments)
	fmt.Printf("Daily streak:   %d\n", s.DailyStreak)
	fmt.Println()
	return nil
}

func renderLeaderboard(raw map[string]any) error {
	out, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== LEADERBOARD ==")
	if len(out.Rows) == 0 {
		printInfo("Nobody has coins yet.")
		return nil
	}
	fmt.Printf("%-5s %-24s %14s\n", "RANK", "ACCOUNT", "BALANCE")
	for _, row := range out.Rows {
		fmt.Printf("%-5d %-24s %14s\n", row.Rank, truncate(row.AccountID, 24), comma(row.Balance))
	}
	fmt.Println()
	return nil
}

func renderBusinesses(raw map[string]any) error {
	out, err := decodeInto[businessesPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== BUSINESSES ==")
	if len(out.Businesses) == 0 {
		printInfo("No businesses yet. Available types:")
		for _, t := range out.Types {
			fmt.Printf("  %-8s income %s/h, minimum %s\n", t.Type, comma(t.BaseIncome), comma(t.MinInvestment))
		}
		fmt.Println()
		return nil
	}
	fmt.Printf("%-38s %-8s %5s %10s %-17s\n", "ID", "TYPE", "LVL", "INCOME/H", "LAST COLLECTED")
	for _, b := range out.Businesses {
		fmt.Printf("%-38s %-8s %5d %10s %-17s\n",
			b.ID, b.Type, b.Level, comma(b.Income),
			b.LastCollected.Local().Format("2006-01-02 15:04"),
		)
	}
	fmt.Printf("\nPending income: %s coins\n\n", colorize(out.PendingIncome))
	return nil
}

func renderBusinessCreated(raw map[string]any) error {
	out, err := decodeInto[businessCreatedPayload](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Opened a %s earning %s coins/h.", out.Business.Type, comma(out.Business.Income)))
	fmt.Printf("Business id: %s\n", out.Business.ID)
	fmt.Printf("Balance:     %s coins\n", comma(out.Balance))
	return nil
}

func renderCollect(raw map[string]any) error {
	out, err := decodeInto[collectPayload](raw)
	if err != nil {
		return err
	}
	c := out.Collect
	if c.Income == 0 {
		printWarn("Nothing to collect yet.")
		return nil
	}
	printSuccess(fmt.Sprintf("Collected %s coins.", comma(c.Income)))
	ids := make([]string, 0, len(c.PerBusiness))
	for id := range c.PerBusiness {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("  %s  %s\n", id, comma(c.PerBusiness[id]))
	}
	fmt.Printf("Balance: %s coins\n", comma(c.Balance))
	return nil
}

func renderUpgrade(raw map[string]any) error {
	out, err := decodeInto[upgradePayload](raw)
	if err != nil {
		return err
	}
	u := out.Upgrade
	printSuccess(fmt.Sprintf("%s is now level %d earning %s coins/h.", u.Business.Type, u.Business.Level, comma(u.Business.Income)))
	fmt.Printf("Cost:    %s coins\n", comma(u.Cost))
	fmt.Printf("Balance: %s coins\n", comma(u.Balance))
	return nil
}

func renderInvestments(raw map[string]any) error {
	out, err := decodeInto[investmentsPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== INVESTMENTS ==")
	if len(out.Investments) == 0 {
		printInfo("No investments yet.")
		return nil
	}
	fmt.Printf("%-8s %12s %6s %-17s %-8s %12s\n", "TYPE", "AMOUNT", "RATE", "MATURES", "STATUS", "PAYOUT")
	for _, inv := range out.Investments {
		payout := "-"
		if inv.Status == economy.InvestmentMatured {
			payout = comma(inv.Payout)
		}
		fmt.Printf("%-8s %12s %5.0f%% %-17s %-8s %12s\n",
			inv.Type, comma(inv.Amount), inv.Rate*100,
			inv.Maturity.Local().Format("2006-01-02 15:04"),
			inv.Status, payout,
		)
	}
	fmt.Println()
	return nil
}

func renderInvestmentTypes(raw map[string]any) error {
	out, err := decodeInto[investmentTypesPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== INVESTMENT TYPES ==")
	fmt.Printf("%-8s %6s %10s\n", "TYPE", "RATE", "LOCK")
	for _, t := range out.Types {
		fmt.Printf("%-8s %5.0f%% %10s\n", t.Name, t.Rate*100, (time.Duration(t.DurationHours) * time.Hour).String())
	}
	fmt.Println()
	return nil
}

func renderInvestmentCreated(raw map[string]any) error {
	out, err := decodeInto[investmentCreatedPayload](raw)
	if err != nil {
		return err
	}
	inv := out.Investment
	printSuccess(fmt.Sprintf("Locked %s coins in %s at %.0f%%.", comma(inv.Amount), inv.Type, inv.Rate*100))
	fmt.Printf("Matures: %s\n", inv.Maturity.Local().Format("2006-01-02 15:04"))
	fmt.Printf("Balance: %s coins\n", comma(out.Balance))
	return nil
}

func renderMarket(raw map[string]any) error {
	out, err := decodeInto[marketPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== MARKET ==")
	fmt.Printf("%-10s %-14s %10s %10s %10s\n", "ITEM", "NAME", "PRICE", "BASE", "CHANGE")
	for _, it := range out.Items {
		fmt.Printf("%-10s %-14s %10s %10s %10s\n",
			it.ItemID, truncate(it.Name, 14), comma(it.CurrentPrice), comma(it.BasePrice),
			colorize(it.CurrentPrice-it.BasePrice),
		)
	}
	fmt.Println()
	return nil
}

func renderMarketItem(raw map[string]any) error {
	out, err := decodeInto[marketItemPayload](raw)
	if err != nil {
		return err
	}
	it := out.Item
	accent.Printf("\n== %s (%s) ==\n", it.Name, it.ItemID)
	fmt.Printf("Price:      %s coins\n", comma(it.CurrentPrice))
	fmt.Printf("Base:       %s coins\n", comma(it.BasePrice))
	fmt.Printf("Volatility: %.2f\n", it.Volatility)
	if n := len(it.History); n > 1 {
		fmt.Printf("Trend:      %s\n", colorize(it.History[n-1].Price-it.History[0].Price))
		fmt.Println()
		accent.Println("Recent Prices")
		start := n - 8
		if start < 0 {
			start = 0
		}
		for i := n - 1; i >= start; i-- {
			p := it.History[i]
			fmt.Printf("%-17s %10s\n", p.Timestamp.Local().Format("2006-01-02 15:04"), comma(p.Price))
		}
	}
	fmt.Println()
	return nil
}

func renderTrade(raw map[string]any, verb string) error {
	out, err := decodeInto[tradePayload](raw)
	if err != nil {
		return err
	}
	t := out.Trade
	action := "Bought"
	if verb == "sell" {
		action = "Sold"
	}
	printSuccess(fmt.Sprintf("%s %d %s at %s each.", action, t.Quantity, t.ItemID, comma(t.UnitPrice)))
	fmt.Printf("Total:   %s coins\n", comma(t.Total))
	fmt.Printf("Balance: %s coins\n", comma(t.Balance))
	return nil
}

func renderLottery(raw map[string]any) error {
	out, err := decodeInto[lotteryPayload](raw)
	if err != nil {
		return err
	}
	l := out.Lottery
	fmt.Printf("Your number: %03d   Winning number: %03d\n", l.PlayerNumber, l.WinningNumber)
	if l.Won {
		printSuccess(fmt.Sprintf("Jackpot! You won %s coins.", comma(l.Payout)))
	} else {
		printWarn("No match this time.")
	}
	fmt.Printf("Net:     %s\n", colorize(l.Net))
	fmt.Printf("Balance: %s coins\n", comma(l.Balance))
	return nil
}

func renderDaily(raw map[string]any) error {
	out, err := decodeInto[dailyPayload](raw)
	if err != nil {
		return err
	}
	d := out.Daily
	printSuccess(fmt.Sprintf("Claimed %s coins (streak %d).", comma(d.Reward), d.Streak))
	fmt.Printf("Balance:    %s coins\n", comma(d.Balance))
	fmt.Printf("Next claim: %s\n", d.NextClaim.Local().Format("2006-01-02 15:04"))
	return nil
}

func renderTick(raw map[string]any) error {
	out, err := decodeInto[tickPayload](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Ticked %d items.", out.Tick.Items))
	ids := make([]string, 0, len(out.Tick.Prices))
	for id := range out.Tick.Prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("  %-10s %10s\n", id, comma(out.Tick.Prices[id]))
	}
	return nil
}

func renderSweep(raw map[string]any) error {
	out, err := decodeInto[sweepPayload](raw)
	if err != nil {
		return err
	}
	s := out.Sweep
	printSuccess(fmt.Sprintf("Matured %d investments, credited %s coins.", s.Matured, comma(s.Credited)))
	if s.Failed > 0 {
		printWarn(fmt.Sprintf("%d account(s) failed and will be retried.", s.Failed))
	}
	return nil
}

func renderPrune(raw map[string]any) error {
	out, err := decodeInto[prunePayload](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Removed %d transaction(s).", out.Removed))
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func colorize(v int64) string {
	text := comma(v)
	switch {
	case v > 0:
		return success.Sprint("+" + text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
