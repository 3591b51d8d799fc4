package economy

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedUsesBasePriceAndVolatility(t *testing.T) {
	r := &stubRandom{floats: []float64{0.9}}
	h := newHarness(t, Options{
		Random:  r,
		Catalog: []CatalogItem{{ItemID: "gem", BasePrice: 100, Volatility: 0.2}},
	})

	item, err := h.eng.GetMarketItem("GEM")
	require.NoError(t, err)
	assert.Equal(t, "Gem", item.Name)
	assert.Equal(t, int64(108), item.CurrentPrice)
	require.Len(t, item.History, 1)
	assert.Equal(t, int64(108), item.History[0].Price)
}

func TestTickMovesPrice(t *testing.T) {
	r := &stubRandom{}
	h := newHarness(t, Options{
		Random:  r,
		Catalog: []CatalogItem{{ItemID: "gem", BasePrice: 108, Volatility: 0.2}},
	})
	r.floats = []float64{0.0}

	res, err := h.eng.TickMarket(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Items)
	assert.Equal(t, int64(97), res.Prices["gem"])
	assert.Equal(t, h.clock.Now(), res.At)

	hist, err := h.eng.PriceHistory("gem")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, int64(108), hist[0].Price)
	assert.Equal(t, int64(97), hist[1].Price)
}

func TestPriceNeverDropsBelowOne(t *testing.T) {
	r := &stubRandom{}
	h := newHarness(t, Options{
		Random:  r,
		Catalog: []CatalogItem{{ItemID: "dust", BasePrice: 1, Volatility: 4}},
	})
	for range 5 {
		r.floats = []float64{0}
		res, err := h.eng.TickMarket(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Prices["dust"])
	}
}

func TestHistoryIsCapped(t *testing.T) {
	h := newHarness(t, Options{Random: rand.New(rand.NewSource(7))})
	ctx := context.Background()
	for range MaxPriceHistory + 50 {
		_, err := h.eng.TickMarket(ctx)
		require.NoError(t, err)
	}
	for _, listed := range h.eng.MarketPrices() {
		assert.Nil(t, listed.History)
		assert.GreaterOrEqual(t, listed.CurrentPrice, int64(1))

		item, err := h.eng.GetMarketItem(listed.ItemID)
		require.NoError(t, err)
		require.Len(t, item.History, MaxPriceHistory)
		assert.Equal(t, item.CurrentPrice, item.History[MaxPriceHistory-1].Price)
		for _, p := range item.History {
			assert.GreaterOrEqual(t, p.Price, int64(1))
		}
	}
}

func TestBuyFromMarket(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.fund(t, "u", 100)

	res, err := h.eng.BuyFromMarket(ctx, "u", "wood", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.UnitPrice)
	assert.Equal(t, int64(50), res.Total)
	assert.Equal(t, int64(50), res.Balance)

	rec := h.eng.GetTransactionHistory("u", 1)[0]
	assert.Equal(t, TxMarketBuy, rec.Type)
	assert.Equal(t, res.TransactionID, rec.ID)

	_, err = h.eng.BuyFromMarket(ctx, "u", "wood", 6)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	_, err = h.eng.BuyFromMarket(ctx, "u", "wood", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = h.eng.BuyFromMarket(ctx, "u", "wood", MaxTradeQuantity+1)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = h.eng.BuyFromMarket(ctx, "u", "unobtainium", 1)
	require.ErrorIs(t, err, ErrUnknownItem)
	assert.Equal(t, int64(50), h.eng.GetBalance("u"))
}

func TestSellToMarketPaysEightyPercent(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	res, err := h.eng.SellToMarket(ctx, "u", "iron", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.UnitPrice)
	assert.Equal(t, int64(120), res.Total)
	assert.Equal(t, int64(120), h.eng.GetBalance("u"))

	res, err = h.eng.SellToMarket(ctx, "u", "wheat", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.UnitPrice)

	_, err = h.eng.SellToMarket(ctx, "u", "iron", 1001)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestMarketPricesSorted(t *testing.T) {
	h := newHarness(t, Options{})
	items := h.eng.MarketPrices()
	require.Len(t, items, 8)
	assert.Equal(t, "diamond", items[0].ItemID)
	assert.Equal(t, "wood", items[7].ItemID)

	_, err := h.eng.PriceHistory("nope")
	require.ErrorIs(t, err, ErrUnknownItem)
}
