package rates

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider is an upstream price source. Implementations are expected to
// bound their own network calls with the given context.
type Provider interface {
	Name() string
	FetchRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// StaticProvider serves a fixed table; used in development and tests.
type StaticProvider struct {
	ProviderName string
	Rates        map[string]decimal.Decimal
}

func (p *StaticProvider) Name() string {
	if p.ProviderName == "" {
		return "static"
	}
	return p.ProviderName
}

func (p *StaticProvider) FetchRates(_ context.Context) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(p.Rates))
	for asset, price := range p.Rates {
		out[asset] = price
	}
	return out, nil
}
