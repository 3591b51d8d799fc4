// Package economy is the virtual-economy ledger: balances, the transaction
// log, businesses, investments, the market and reward draws.
//
// The in-memory Document is the source of truth while the process runs. It
// is read from the store once in New and rewritten in full on every commit.
// A commit holds the document write lock across the mutation and the save,
// and undoes the mutation if the save fails, so what callers observe always
// matches what was last persisted.
//
// Per-account read-check-write sequences are serialized with the lock
// manager. Reads go through a TTL cache that commits invalidate.
package economy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"coinledger/internal/cache"
	"coinledger/internal/lock"
	"coinledger/internal/store"
)

// Random is the source of draws for the market and the lottery.
// *math/rand.Rand satisfies it.
type Random interface {
	Float64() float64
	Intn(n int) int
}

type Options struct {
	Clock           func() time.Time
	Random          Random
	MaxTransactions int
	Retention       time.Duration
	BalanceTTL      time.Duration
	SliceTTL        time.Duration
	Catalog         []CatalogItem
	MaxPrizePool    int64
	Cache           *cache.Cache
	Locks           *lock.Manager
}

type Engine struct {
	store store.Store
	log   *slog.Logger
	cache *cache.Cache
	locks *lock.Manager

	now        func() time.Time
	maxTx      int
	retention  time.Duration
	balanceTTL time.Duration
	sliceTTL   time.Duration
	catalog    []CatalogItem
	maxPool    int64

	mu  sync.RWMutex
	doc *Document

	randMu sync.Mutex
	rand   Random
}

// New loads the document from st, or starts from the empty shape when st has
// none, and seeds any catalog item the market does not track yet.
func New(ctx context.Context, st store.Store, logger *slog.Logger, opts Options) (*Engine, error) {
	if st == nil {
		panic("economy: nil store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:      st,
		log:        logger,
		now:        opts.Clock,
		maxTx:      opts.MaxTransactions,
		retention:  opts.Retention,
		balanceTTL: opts.BalanceTTL,
		sliceTTL:   opts.SliceTTL,
		catalog:    opts.Catalog,
		maxPool:    opts.MaxPrizePool,
		cache:      opts.Cache,
		locks:      opts.Locks,
		rand:       opts.Random,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.maxTx <= 0 {
		e.maxTx = DefaultMaxTransactions
	}
	if e.retention <= 0 {
		e.retention = DefaultRetention
	}
	if e.balanceTTL <= 0 {
		e.balanceTTL = DefaultBalanceTTL
	}
	if e.sliceTTL <= 0 {
		e.sliceTTL = DefaultSliceTTL
	}
	if e.maxPool <= 0 {
		e.maxPool = DefaultMaxPrizePool
	}
	if e.catalog == nil {
		e.catalog = DefaultCatalog()
	}
	if e.cache == nil {
		e.cache = cache.New(e.now)
	}
	if e.locks == nil {
		e.locks = lock.NewManager()
	}
	if e.rand == nil {
		e.rand = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}

	doc, err := loadDocument(ctx, st)
	if err != nil {
		return nil, err
	}
	e.doc = doc

	if err := e.seedMarket(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func loadDocument(ctx context.Context, st store.Store) (*Document, error) {
	raw, err := st.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.ensure()
	return &doc, nil
}

// commit runs fn against the document and persists the result. A business
// error from fn, or a failed save, undoes everything fn changed. The save is
// not cancelled with ctx: once a mutation is applied it either lands or is
// rolled back, never left half way.
func (e *Engine) commit(ctx context.Context, op string, fn func(tx *docTx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		panic("economy: commit on nil document")
	}

	tx := &docTx{doc: e.doc, now: e.now(), maxTx: e.maxTx}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if len(tx.undo) == 0 {
		return nil
	}

	raw, err := json.Marshal(e.doc)
	if err == nil {
		err = e.store.Save(context.WithoutCancel(ctx), raw)
	}
	if err != nil {
		tx.rollback()
		e.log.Error("persist failed, mutation rolled back", "op", op, "accounts", tx.accounts(), "err", err)
		return fmt.Errorf("%w: %s: %v", ErrPersistFailed, op, err)
	}

	e.cache.Delete(tx.invalidate...)
	for _, p := range uniqueStrings(tx.prefixes) {
		e.cache.DeletePrefix(p)
	}
	e.log.Debug("committed", "op", op, "records", len(tx.logged), "bytes", len(raw))
	return nil
}

// read runs fn under the document read lock.
func (e *Engine) read(fn func(doc *Document)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.doc == nil {
		panic("economy: read on nil document")
	}
	fn(e.doc)
}

// cached returns the cached value for key or computes it under the read lock
// and caches it. Commits invalidate under the write lock, so an entry stored
// here never predates the last committed write.
func cached[T any](e *Engine, key string, ttl time.Duration, compute func(doc *Document) T) T {
	if v, ok := e.cache.Get(key); ok {
		if out, ok := v.(T); ok {
			return out
		}
	}
	var out T
	e.read(func(doc *Document) {
		out = compute(doc)
		e.cache.Set(key, out, ttl)
	})
	return out
}

// lockAccounts serializes work on the given accounts.
func (e *Engine) lockAccounts(ctx context.Context, accountIDs ...string) (func(), error) {
	keys := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		keys = append(keys, lock.AccountKey(id))
	}
	return e.locks.AcquireMany(ctx, keys...)
}

func (e *Engine) nextFloat() float64 {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rand.Float64()
}

func (e *Engine) nextIntn(n int) int {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rand.Intn(n)
}

// Snapshot returns a deep copy of the document as JSON, for backups and
// inspection.
func (e *Engine) Snapshot() ([]byte, error) {
	var (
		raw []byte
		err error
	)
	e.read(func(doc *Document) { raw, err = json.Marshal(doc) })
	return raw, err
}

// SweepCache drops expired cache entries.
func (e *Engine) SweepCache() int {
	return e.cache.Sweep()
}

const leaderboardPrefix = "leaderboard:"

func balanceKey(accountID string) string    { return "balance:" + accountID }
func statsKey(accountID string) string      { return "stats:" + accountID }
func historyPrefix(accountID string) string { return "history:" + accountID + ":" }
func historyKey(accountID string, limit int) string {
	return fmt.Sprintf("%s%d", historyPrefix(accountID), limit)
}
func leaderboardKey(limit int) string { return fmt.Sprintf("%s%d", leaderboardPrefix, limit) }

// accounts lists the ids touched by the records logged so far.
func (tx *docTx) accounts() []string {
	var ids []string
	for _, rec := range tx.logged {
		if rec.From != "" {
			ids = append(ids, rec.From)
		}
		if rec.To != "" {
			ids = append(ids, rec.To)
		}
	}
	return uniqueStrings(ids)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
