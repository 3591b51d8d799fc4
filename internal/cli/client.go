package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx reply from ledgerd. Reason is the stable code the
// server puts in its error envelope.
type APIError struct {
	Status    int
	Reason    string
	Message   string
	HoursLeft int
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

type Client struct {
	BaseURL    string
	Account    string
	AdminToken string
	HTTP       *http.Client
}

func NewClient(baseURL, account, adminToken string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Account:    strings.TrimSpace(account),
		AdminToken: strings.TrimSpace(adminToken),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Balance(ctx context.Context, account string) (map[string]any, error) {
	if account == "" || account == c.Account {
		return c.Do(ctx, http.MethodGet, "/v1/balance", nil)
	}
	return c.Do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(account)+"/balance", nil)
}

func (c *Client) Transfer(ctx context.Context, to string, amount int64) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/transfers", map[string]any{"to": to, "amount": amount})
}

func (c *Client) History(ctx context.Context, limit int) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/transactions?limit="+strconv.Itoa(limit), nil)
}

func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/stats", nil)
}

func (c *Client) Leaderboard(ctx context.Context, limit int) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/leaderboard?limit="+strconv.Itoa(limit), nil)
}

func (c *Client) ListBusinesses(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/businesses", nil)
}

func (c *Client) CreateBusiness(ctx context.Context, businessType string, investment int64) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/businesses", map[string]any{
		"type":       businessType,
		"investment": investment,
	})
}

func (c *Client) CollectIncome(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/businesses/collect", nil)
}

func (c *Client) UpgradeBusiness(ctx context.Context, businessID string) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/businesses/"+url.PathEscape(businessID)+"/upgrade", nil)
}

func (c *Client) ListInvestments(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/investments", nil)
}

func (c *Client) InvestmentTypes(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/investments/types", nil)
}

func (c *Client) CreateInvestment(ctx context.Context, investmentType string, amount int64) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/investments", map[string]any{
		"type":   investmentType,
		"amount": amount,
	})
}

func (c *Client) Market(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/market", nil)
}

func (c *Client) MarketItem(ctx context.Context, item string) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, "/v1/market/"+url.PathEscape(item), nil)
}

func (c *Client) Buy(ctx context.Context, item string, qty int64) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/market/"+url.PathEscape(item)+"/buy", map[string]any{"quantity": qty})
}

func (c *Client) Sell(ctx context.Context, item string, qty int64) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/market/"+url.PathEscape(item)+"/sell", map[string]any{"quantity": qty})
}

func (c *Client) Lottery(ctx context.Context, ticketPrice, prizePool int64) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/lottery", map[string]any{
		"ticket_price": ticketPrice,
		"prize_pool":   prizePool,
	})
}

func (c *Client) Daily(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/daily", nil)
}

// AdminBalance applies op (set, add or subtract) to account.
func (c *Client) AdminBalance(ctx context.Context, account, op string, amount int64) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/admin/accounts/"+url.PathEscape(account)+"/balance", map[string]any{
		"op":     op,
		"amount": amount,
	})
}

func (c *Client) AdminTick(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/admin/market/tick", nil)
}

func (c *Client) AdminSweep(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/admin/investments/sweep", nil)
}

func (c *Client) AdminPrune(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, http.MethodPost, "/v1/admin/transactions/prune", nil)
}

func (c *Client) Do(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	var out map[string]any
	var in any
	if body != nil {
		in = body
	}
	err := c.jsonRequest(ctx, method, path, in, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Account != "" {
		req.Header.Set("X-Account-ID", c.Account)
	}
	if c.AdminToken != "" && strings.HasPrefix(path, "/v1/admin/") {
		req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(status int, raw []byte) error {
	var env struct {
		Reason    string `json:"reason"`
		Error     string `json:"error"`
		HoursLeft int    `json:"hours_left"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Error == "" {
		return &APIError{Status: status, Message: strings.TrimSpace(string(raw))}
	}
	return &APIError{Status: status, Reason: env.Reason, Message: env.Error, HoursLeft: env.HoursLeft}
}
