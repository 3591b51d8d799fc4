package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "coinledger/internal/cli"
	"coinledger/internal/config"

	"github.com/spf13/cobra"
)

type globals struct {
	apiBase string
	account string
	token   string
}

func main() {
	cfg := config.LoadCLIFromEnv()
	profile, err := cl.LoadProfile()
	if err != nil {
		printWarn(fmt.Sprintf("ignoring unreadable profile: %v", err))
	}
	g := &globals{apiBase: cfg.APIBaseURL, account: cfg.AccountID, token: cfg.AdminToken}
	if g.account == "" {
		g.account = profile.AccountID
	}
	if os.Getenv("LEDGERCTL_API") == "" && profile.APIBaseURL != "" {
		g.apiBase = profile.APIBaseURL
	}

	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Coin ledger client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.apiBase, "api", g.apiBase, "ledgerd base URL")
	root.PersistentFlags().StringVar(&g.account, "account", g.account, "acting account id")
	root.PersistentFlags().StringVar(&g.token, "token", g.token, "admin bearer token")

	root.AddCommand(
		newUseCmd(g),
		newBalanceCmd(g),
		newPayCmd(g),
		newHistoryCmd(g),
		newStatsCmd(g),
		newTopCmd(g),
		newBusinessCmd(g),
		newInvestCmd(g),
		newMarketCmd(g),
		newLotteryCmd(g),
		newDailyCmd(g),
		newAdminCmd(g),
	)

	if err := root.Execute(); err != nil {
		var apiErr *cl.APIError
		if errors.As(err, &apiErr) && apiErr.Reason != "" {
			printError(describeReason(apiErr))
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func (g *globals) client() *cl.Client {
	return cl.NewClient(strings.TrimSpace(g.apiBase), g.account, g.token)
}

// player is a client that must have an acting account.
func (g *globals) player() (*cl.Client, error) {
	if strings.TrimSpace(g.account) == "" {
		return nil, errors.New("no account: pass --account, set LEDGERCTL_ACCOUNT or run `ledgerctl use <account>`")
	}
	return g.client(), nil
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newUseCmd(g *globals) *cobra.Command {
	var forget bool
	cmd := &cobra.Command{
		Use:   "use [account]",
		Short: "Remember the acting account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if forget {
				if err := cl.ClearProfile(); err != nil {
					return err
				}
				printSuccess("Profile cleared.")
				return nil
			}
			account := g.account
			if len(args) == 1 {
				account = strings.TrimSpace(args[0])
			}
			if account == "" {
				var err error
				if account, err = promptRequired("Account id"); err != nil {
					return err
				}
			}
			if err := cl.SaveProfile(cl.Profile{APIBaseURL: g.apiBase, AccountID: account}); err != nil {
				return err
			}
			printSuccess("Acting as " + account + ".")
			return nil
		},
	}
	cmd.Flags().BoolVar(&forget, "clear", false, "forget the saved account")
	return cmd
}

func newBalanceCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [account]",
		Short: "Show a balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := g.account
			if len(args) == 1 {
				target = args[0]
			}
			if target == "" {
				return errors.New("no account given")
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := g.client().Balance(ctx, target)
			if err != nil {
				return err
			}
			return renderBalance(out)
		},
	}
}

func newPayCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "pay <to> <amount>",
		Short: "Transfer coins to another account",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.player()
			if err != nil {
				return err
			}
			to, err := stringFromArgOrPrompt(args, 0, "Recipient")
			if err != nil {
				return err
			}
			amount, err := int64FromArgOrPrompt(args, 1, "Amount")
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := c.Transfer(ctx, to, amount)
			if err != nil {
				return err
			}
			return renderTransfer(out, to)
		},
	}
}

func newHistoryCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.player()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := c.History(ctx, limit)
			if err != nil {
				return err
			}
			return renderHistory(out, g.account)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of records (1-1000)")
	return cmd
}

func newStatsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the acting account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.player()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := c.Stats(ctx)
			if err != nil {
				return err
			}
			return renderStats(out)
		},
	}
}

func newTopCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the richest accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := g.client().Leaderboard(ctx, limit)
			if err != nil {
				return err
			}
			return renderLeaderboard(out)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "rows (1-100)")
	return cmd
}

func newBusinessCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "business",
		Short: "Own income-generating businesses",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List businesses and pending income",
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := g.player()
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := c.ListBusinesses(ctx)
				if err != nil {
					return err
				}
				return renderBusinesses(out)
			},
		},
		&cobra.Command{
			Use:   "create <type> <investment>",
			Short: "Buy a business (shop, farm, mine, factory, bank, casino)",
			Args:  cobra.RangeArgs(0, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := g.player()
				if err != nil {
					return err
				}
				kind, err := stringFromArgOrPrompt(args, 0, "Type")
				if err != nil {
					return err
				}
				investment, err := int64FromArgOrPrompt(args, 1, "Investment")
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := c.CreateBusiness(ctx, kind, investment)
				if err != nil {
					return err
				}
				return renderBusinessCreated(out)
			},
		},
		&cobra.Command{
			Use:   "collect",
			Short: "Collect accrued income",
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := g.player()
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := c.CollectIncome(ctx)
				if err != nil {
					return err
				}
				return renderCollect(out)
			},
		},
		&cobra.Command{
			Use:   "upgrade <business-id>",
			Short: "Upgrade a business one level",
			Args:  cobra.RangeArgs(0, 1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := g.player()
				if err != nil {
					return err
				}
				id, err := stringFromArgOrPrompt(args, 0, "Business id")
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := c.UpgradeBusiness(ctx, id)
				if err != nil {
					return err
				}
				return renderUpgrade(out)
			},
		},
	)
	return cmd
}

func newInvestCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invest",
		Short: "Lock coins for a fixed return",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List investments",
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := g.player()
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := c.ListInvestments(ctx)
				if err != nil {
					return err
				}
				return renderInvestments(out)
			},
		},
		&cobra.Command{
			Use:   "types",
			Short: "Show investment types",
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := g.client().InvestmentTypes(ctx)
				if err != nil {
					return err
				}
				return renderInvestmentTypes(out)
			},
		},
		&cobra.Command{
			Use:   "create <type> <amount>",
			Short: "Open an investment",
			Args:  cobra.RangeArgs(0, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := g.player()
				if err != nil {
					return err
				}
				kind, err := stringFromArgOrPrompt(args, 0, "Type")
				if err != nil {
					return err
				}
				amount, err := int64FromArgOrPrompt(args, 1, "Amount")
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := c.CreateInvestment(ctx, kind, amount)
				if err != nil {
					return err
				}
				return renderInvestmentCreated(out)
			},
		},
	)
	return cmd
}

func newMarketCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Trade market items",
	}
	trade := func(buy bool) *cobra.Command {
		verb := "sell"
		if buy {
			verb = "buy"
		}
		return &cobra.Command{
			Use:   verb + " <item> <quantity>",
			Short: strings.ToUpper(verb[:1]) + verb[1:] + " an item at the current price",
			Args:  cobra.RangeArgs(0, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := g.player()
				if err != nil {
					return err
				}
				item, err := stringFromArgOrPrompt(args, 0, "Item")
				if err != nil {
					return err
				}
				qty, err := int64FromArgOrPrompt(args, 1, "Quantity")
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				do := c.Sell
				if buy {
					do = c.Buy
				}
				out, err := do(ctx, item, qty)
				if err != nil {
					return err
				}
				return renderTrade(out, verb)
			},
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show current prices",
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := g.client().Market(ctx)
				if err != nil {
					return err
				}
				return renderMarket(out)
			},
		},
		&cobra.Command{
			Use:   "show <item>",
			Short: "Show an item with its price history",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := g.client().MarketItem(ctx, args[0])
				if err != nil {
					return err
				}
				return renderMarketItem(out)
			},
		},
		trade(true),
		trade(false),
	)
	return cmd
}

func newLotteryCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "lottery <ticket-price> <prize-pool>",
		Short: "Buy a ticket; a 1-in-1000 match pays the pool",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.player()
			if err != nil {
				return err
			}
			ticket, err := int64FromArgOrPrompt(args, 0, "Ticket price")
			if err != nil {
				return err
			}
			pool, err := int64FromArgOrPrompt(args, 1, "Prize pool")
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := c.Lottery(ctx, ticket, pool)
			if err != nil {
				return err
			}
			return renderLottery(out)
		},
	}
}

func newDailyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Claim the daily reward",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.player()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := c.Daily(ctx)
			if err != nil {
				return err
			}
			return renderDaily(out)
		},
	}
}

func newAdminCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands (need --token)",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if strings.TrimSpace(g.token) == "" {
				return errors.New("admin commands need --token or LEDGERCTL_ADMIN_TOKEN")
			}
			return nil
		},
	}
	balanceOp := func(use, op, short string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <account> <amount>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("amount must be a whole number: %w", err)
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := g.client().AdminBalance(ctx, args[0], op, amount)
				if err != nil {
					return err
				}
				return renderBalance(out)
			},
		}
	}
	simple := func(use, short string, call func(*cl.Client, context.Context) (map[string]any, error), render func(map[string]any) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := call(g.client(), ctx)
				if err != nil {
					return err
				}
				return render(out)
			},
		}
	}
	cmd.AddCommand(
		balanceOp("set", "set", "Overwrite a balance"),
		balanceOp("add", "add", "Credit an account"),
		balanceOp("sub", "subtract", "Debit an account, stopping at zero"),
		simple("tick", "Move market prices now", (*cl.Client).AdminTick, renderTick),
		simple("sweep", "Pay out matured investments now", (*cl.Client).AdminSweep, renderSweep),
		simple("prune", "Drop transactions past retention", (*cl.Client).AdminPrune, renderPrune),
	)
	return cmd
}

func stringFromArgOrPrompt(args []string, idx int, label string) (string, error) {
	if len(args) > idx {
		if v := strings.TrimSpace(args[idx]); v != "" {
			return v, nil
		}
	}
	return promptRequired(label)
}

func int64FromArgOrPrompt(args []string, idx int, label string) (int64, error) {
	if len(args) > idx {
		v, err := strconv.ParseInt(strings.TrimSpace(args[idx]), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a whole number", strings.ToLower(label))
		}
		return v, nil
	}
	return promptInt64(label, 1)
}
