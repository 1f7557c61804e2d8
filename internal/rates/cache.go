// Package rates holds the in-memory asset price cache used by the ledger
// for USD bookkeeping values. Prices are refreshed periodically from an
// upstream provider; readers never block on a refresh and fall back to a
// static table when no live entry exists.
package rates

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is the latest known price of one asset in USD.
type Entry struct {
	Price      decimal.Decimal
	Provider   string
	ObservedAt time.Time
}

// defaultRates backs conversions when no provider data has arrived yet,
// or when the upstream handed us garbage for an asset.
var defaultRates = map[string]decimal.Decimal{
	"BTC":  decimal.NewFromInt(60000),
	"ETH":  decimal.NewFromInt(2500),
	"LTC":  decimal.NewFromInt(80),
	"SOL":  decimal.NewFromInt(150),
	"TRX":  decimal.NewFromFloat(0.12),
	"XRP":  decimal.NewFromFloat(0.5),
	"DOGE": decimal.NewFromFloat(0.1),
	"USDT": decimal.NewFromInt(1),
	"USDC": decimal.NewFromInt(1),
}

const (
	// DefaultStaleAfter marks an entry stale for freshness-checked conversions.
	DefaultStaleAfter = 5 * time.Minute
	centsPerUSD       = 100
)

// Cache is the owned, injectable price cache. One periodic refresher
// writes it; any number of converters read it concurrently.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	provider   Provider
	staleAfter time.Duration
}

// NewCache creates a price cache backed by the given provider. The
// provider may be nil; conversions then use defaults until SetRate is
// called.
func NewCache(provider Provider, staleAfter time.Duration) *Cache {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Cache{
		entries:    make(map[string]Entry),
		provider:   provider,
		staleAfter: staleAfter,
	}
}

// Rate returns the current USD price for an asset. Falls back to the
// static table when no live entry exists; the second return reports
// whether any price (live or fallback) is known.
func (c *Cache) Rate(asset string) (decimal.Decimal, bool) {
	c.mu.RLock()
	entry, ok := c.entries[asset]
	c.mu.RUnlock()
	if ok {
		return entry.Price, true
	}
	price, ok := defaultRates[asset]
	return price, ok
}

// Live returns the full cache entry for an asset, if a live one exists.
func (c *Cache) Live(asset string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[asset]
	return entry, ok
}

// SetRate stores one asset's price. Zero, negative, or unset prices from
// upstream are logged and dropped; the previous entry (or fallback)
// keeps serving conversions.
func (c *Cache) SetRate(asset, provider string, price decimal.Decimal) {
	if price.IsZero() || price.IsNegative() {
		log.Printf("rates: dropping bad price for %s from %s: %s", asset, provider, price)
		return
	}
	c.mu.Lock()
	c.entries[asset] = Entry{Price: price, Provider: provider, ObservedAt: time.Now()}
	c.mu.Unlock()
}

// ReplaceAll swaps the whole table in one shot, filtering bad values.
func (c *Cache) ReplaceAll(provider string, prices map[string]decimal.Decimal) {
	now := time.Now()
	next := make(map[string]Entry, len(prices))
	for asset, price := range prices {
		if price.IsZero() || price.IsNegative() {
			log.Printf("rates: dropping bad price for %s from %s: %s", asset, provider, price)
			continue
		}
		next[asset] = Entry{Price: price, Provider: provider, ObservedAt: now}
	}
	c.mu.Lock()
	c.entries = next
	c.mu.Unlock()
}

// ToUSD converts an amount of an asset (in display units) to a USD
// decimal string. Empty, non-numeric, or negative input converts to "0";
// the result is always a finite non-negative decimal string.
func (c *Cache) ToUSD(asset, amount string) string {
	amt, ok := parseAmount(amount)
	if !ok {
		return "0"
	}
	price, ok := c.Rate(asset)
	if !ok {
		return "0"
	}
	return amt.Mul(price).String()
}

// FromUSD converts a USD amount to an amount of the asset, in display
// units. Same input rules as ToUSD.
func (c *Cache) FromUSD(asset, usd string) string {
	amt, ok := parseAmount(usd)
	if !ok {
		return "0"
	}
	price, ok := c.Rate(asset)
	if !ok || price.IsZero() {
		return "0"
	}
	return amt.DivRound(price, 18).String()
}

// ToCents converts an asset amount to whole USD cents, truncating.
func (c *Cache) ToCents(asset, amount string) int64 {
	usd, ok := parseAmount(c.ToUSD(asset, amount))
	if !ok {
		return 0
	}
	return usd.Mul(decimal.NewFromInt(centsPerUSD)).IntPart()
}

// ConvertFresh converts to USD after refreshing the cache if the asset's
// entry is stale or missing. A failed refresh degrades to the cached
// conversion rather than failing the call.
func (c *Cache) ConvertFresh(ctx context.Context, asset, amount string) (string, error) {
	if c.provider != nil && !c.isFresh(asset) {
		if err := c.Refresh(ctx); err != nil {
			log.Printf("rates: refresh for %s failed, serving cached rate: %v", asset, err)
		}
	}
	return c.ToUSD(asset, amount), nil
}

// Refresh pulls the latest prices from the provider once.
func (c *Cache) Refresh(ctx context.Context) error {
	if c.provider == nil {
		return nil
	}
	prices, err := c.provider.FetchRates(ctx)
	if err != nil {
		return err
	}
	for asset, price := range prices {
		c.SetRate(asset, c.provider.Name(), price)
	}
	return nil
}

// StartRefresher refreshes the cache on a fixed interval until ctx is
// cancelled. Intended to be run once from main.
func (c *Cache) StartRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				log.Printf("rates: periodic refresh failed: %v", err)
			}
		}
	}
}

func (c *Cache) isFresh(asset string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[asset]
	return ok && time.Since(entry.ObservedAt) < c.staleAfter
}

// parseAmount accepts only finite non-negative decimal strings.
func parseAmount(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}
