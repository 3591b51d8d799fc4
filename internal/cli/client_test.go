package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinledger/internal/api"
	"coinledger/internal/config"
	"coinledger/internal/economy"
	"coinledger/internal/store"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ledger, err := economy.New(context.Background(), store.NewMemory(), nil, economy.Options{})
	require.NoError(t, err)
	srv := httptest.NewServer(api.New(config.Config{AdminToken: "root"}, nil, ledger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	admin := NewClient(srv.URL+"/", "", "root")
	alice := NewClient(srv.URL, "alice", "")

	out, err := admin.AdminBalance(ctx, "alice", "set", 300)
	require.NoError(t, err)
	assert.EqualValues(t, 300, out["balance"])

	out, err = alice.Transfer(ctx, "bob", 120)
	require.NoError(t, err)
	assert.EqualValues(t, 180, out["transfer"].(map[string]any)["from_balance"])

	out, err = alice.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 120, out["balance"])

	out, err = alice.History(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, out["transactions"], 2)

	out, err = alice.Market(ctx)
	require.NoError(t, err)
	assert.Len(t, out["items"], 8)
}

func TestClientSurfacesReason(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := NewClient(srv.URL, "carol", "")

	_, err := c.Transfer(ctx, "dave", 10)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "insufficient_funds", apiErr.Reason)

	_, err = c.Daily(ctx)
	require.NoError(t, err)
	_, err = c.Daily(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "daily_cooldown", apiErr.Reason)
	assert.Equal(t, 24, apiErr.HoursLeft)
}

func TestAdminTokenOnlySentToAdminRoutes(t *testing.T) {
	var sawAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = append(sawAuth, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice", "root")
	_, err := c.Stats(context.Background())
	require.NoError(t, err)
	_, err = c.AdminTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"", "Bearer root"}, sawAuth)
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "a", "").Stats(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestProfileRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	p, err := LoadProfile()
	require.NoError(t, err)
	assert.Empty(t, p.AccountID)

	require.NoError(t, SaveProfile(Profile{AccountID: "alice", APIBaseURL: "http://x"}))
	p, err = LoadProfile()
	require.NoError(t, err)
	assert.Equal(t, "alice", p.AccountID)

	require.NoError(t, ClearProfile())
	require.NoError(t, ClearProfile())
	p, err = LoadProfile()
	require.NoError(t, err)
	assert.Empty(t, p.AccountID)
}
