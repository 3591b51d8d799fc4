package economy

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"
)

const marketLockKey = "market"

// CatalogItem describes a tradable item before it has a price.
type CatalogItem struct {
	ItemID     string
	Name       string
	BasePrice  int64
	Volatility float64
}

func DefaultCatalog() []CatalogItem {
	return []CatalogItem{
		{"wood", "Wood", 10, 0.10},
		{"stone", "Stone", 15, 0.10},
		{"iron", "Iron", 50, 0.20},
		{"gold", "Gold", 200, 0.30},
		{"diamond", "Diamond", 1000, 0.40},
		{"fish", "Fish", 20, 0.15},
		{"wheat", "Wheat", 8, 0.10},
		{"oil", "Oil", 120, 0.35},
	}
}

// jitter returns price + u*scale*volatility with u uniform in [-0.5, 0.5),
// rounded and clamped to at least 1.
func jitter(price, scale int64, volatility, draw float64) int64 {
	next := math.Round(float64(price) + (draw-0.5)*float64(scale)*volatility)
	if next < 1 {
		return 1
	}
	return int64(next)
}

func appendHistory(h []PricePoint, p PricePoint) []PricePoint {
	h = append(slices.Clone(h), p)
	if over := len(h) - MaxPriceHistory; over > 0 {
		h = slices.Delete(h, 0, over)
	}
	return h
}

// seedMarket prices every catalog item the document does not track yet.
// Items already present keep their stored price and history.
func (e *Engine) seedMarket(ctx context.Context) error {
	seeded := 0
	err := e.commit(ctx, "seed_market", func(tx *docTx) error {
		for _, c := range e.catalog {
			id := normalizeKey(c.ItemID)
			if id == "" {
				continue
			}
			if _, ok := tx.doc.MarketItems[id]; ok {
				continue
			}
			name := c.Name
			if name == "" {
				name = strings.ToUpper(id[:1]) + id[1:]
			}
			base := max(c.BasePrice, 1)
			price := jitter(base, base, c.Volatility, e.nextFloat())
			tx.setMarketItem(MarketItem{
				ItemID:       id,
				Name:         name,
				BasePrice:    base,
				CurrentPrice: price,
				Volatility:   c.Volatility,
				History:      []PricePoint{{Price: price, Timestamp: tx.now}},
			})
			seeded++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if seeded > 0 {
		e.log.Info("market seeded", "items", seeded)
	}
	return nil
}

// TickMarket moves every price by up to half its volatility in either
// direction. The engine never calls it on its own.
func (e *Engine) TickMarket(ctx context.Context) (TickResult, error) {
	release, err := e.locks.Acquire(ctx, marketLockKey)
	if err != nil {
		return TickResult{}, err
	}
	defer release()

	out := TickResult{Prices: map[string]int64{}}
	err = e.commit(ctx, "market_tick", func(tx *docTx) error {
		ids := make([]string, 0, len(tx.doc.MarketItems))
		for id := range tx.doc.MarketItems {
			ids = append(ids, id)
		}
		// Sorted so a seeded Random produces the same walk every run.
		slices.Sort(ids)
		for _, id := range ids {
			item := tx.doc.MarketItems[id]
			item.CurrentPrice = jitter(item.CurrentPrice, item.CurrentPrice, item.Volatility, e.nextFloat())
			item.History = appendHistory(item.History, PricePoint{Price: item.CurrentPrice, Timestamp: tx.now})
			tx.setMarketItem(item)
			out.Prices[id] = item.CurrentPrice
		}
		out.Items = len(ids)
		out.At = tx.now
		return nil
	})
	if err != nil {
		return TickResult{}, err
	}
	e.log.Debug("market ticked", "items", out.Items)
	return out, nil
}

func validQuantity(qty int64) error {
	if qty < 1 || qty > MaxTradeQuantity {
		return ErrInvalidQuantity
	}
	return nil
}

// BuyFromMarket charges qty times the current price. Price and debit are
// read and applied in one commit, so a concurrent tick cannot slip between.
func (e *Engine) BuyFromMarket(ctx context.Context, accountID, itemID string, qty int64) (TradeResult, error) {
	var out TradeResult
	if err := validateAccount(accountID); err != nil {
		return out, err
	}
	if err := validQuantity(qty); err != nil {
		return out, err
	}
	id := normalizeKey(itemID)

	release, err := e.lockAccounts(ctx, accountID)
	if err != nil {
		return out, err
	}
	defer release()

	err = e.commit(ctx, "market_buy", func(tx *docTx) error {
		item, ok := tx.doc.MarketItems[id]
		if !ok {
			return ErrUnknownItem
		}
		total, err := checkedMul(qty, item.CurrentPrice)
		if err != nil {
			return err
		}
		if tx.balance(accountID) < total {
			return ErrInsufficientFunds
		}
		out.Balance = tx.debit(accountID, total)
		rec := tx.log(Transaction{
			Type:   TxMarketBuy,
			From:   accountID,
			Amount: total,
			Meta:   map[string]any{"item": id, "quantity": qty, "unit_price": item.CurrentPrice},
		})
		out.ItemID = id
		out.Quantity = qty
		out.UnitPrice = item.CurrentPrice
		out.Total = total
		out.TransactionID = rec.ID
		return nil
	})
	if err != nil {
		return TradeResult{}, err
	}
	return out, nil
}

// SellToMarket pays qty times 80% of the current price, floored per unit.
// Holdings are not tracked.
func (e *Engine) SellToMarket(ctx context.Context, accountID, itemID string, qty int64) (TradeResult, error) {
	var out TradeResult
	if err := validateAccount(accountID); err != nil {
		return out, err
	}
	if err := validQuantity(qty); err != nil {
		return out, err
	}
	id := normalizeKey(itemID)

	release, err := e.lockAccounts(ctx, accountID)
	if err != nil {
		return out, err
	}
	defer release()

	err = e.commit(ctx, "market_sell", func(tx *docTx) error {
		item, ok := tx.doc.MarketItems[id]
		if !ok {
			return ErrUnknownItem
		}
		unit := mulFloor(item.CurrentPrice, sellRatio)
		total, err := checkedMul(qty, unit)
		if err != nil {
			return err
		}
		if out.Balance, err = tx.credit(accountID, total); err != nil {
			return err
		}
		rec := tx.log(Transaction{
			Type:   TxMarketSell,
			To:     accountID,
			Amount: total,
			Meta:   map[string]any{"item": id, "quantity": qty, "unit_price": unit},
		})
		out.ItemID = id
		out.Quantity = qty
		out.UnitPrice = unit
		out.Total = total
		out.TransactionID = rec.ID
		return nil
	})
	if err != nil {
		return TradeResult{}, err
	}
	return out, nil
}

// MarketPrices lists every item without its history, ordered by id.
func (e *Engine) MarketPrices() []MarketItem {
	var out []MarketItem
	e.read(func(doc *Document) {
		out = make([]MarketItem, 0, len(doc.MarketItems))
		for _, item := range doc.MarketItems {
			item.History = nil
			out = append(out, item)
		}
	})
	slices.SortFunc(out, func(a, b MarketItem) int { return cmp.Compare(a.ItemID, b.ItemID) })
	return out
}

// GetMarketItem returns one item with its price history.
func (e *Engine) GetMarketItem(itemID string) (MarketItem, error) {
	id := normalizeKey(itemID)
	var (
		item MarketItem
		ok   bool
	)
	e.read(func(doc *Document) {
		item, ok = doc.MarketItems[id]
		item.History = slices.Clone(item.History)
	})
	if !ok {
		return MarketItem{}, ErrUnknownItem
	}
	return item, nil
}

func (e *Engine) PriceHistory(itemID string) ([]PricePoint, error) {
	item, err := e.GetMarketItem(itemID)
	if err != nil {
		return nil, err
	}
	return item.History, nil
}
