package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// PriceQuote is a cached coin-to-fiat exchange rate. Rate is expressed as
// fiat units per whole coin; both currencies carry two-decimal sub-unit
// scales, so cents and coin sub-units convert without an extra scale factor.
// Quotes live only in memory and are safe to lose on restart.
type PriceQuote struct {
	Rate      *big.Rat  `json:"-"`
	RateText  string    `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
	Source    string    `json:"source"`
}

// Age returns how old the quote is relative to now.
func (q *PriceQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}

// FiatCentsToCoinSubunits converts a fiat amount into coin sub-units,
// rounding down so a swap never manufactures value.
func (q *PriceQuote) FiatCentsToCoinSubunits(cents int64) int64 {
	// floor(cents / rate) = floor(cents * denom / num)
	num := new(big.Int).Mul(big.NewInt(cents), q.Rate.Denom())
	return new(big.Int).Quo(num, q.Rate.Num()).Int64()
}

// CoinSubunitsToFiatCents converts coin sub-units into fiat cents,
// rounding down.
func (q *PriceQuote) CoinSubunitsToFiatCents(subunits int64) int64 {
	// floor(subunits * rate) = floor(subunits * num / denom)
	num := new(big.Int).Mul(big.NewInt(subunits), q.Rate.Num())
	return new(big.Int).Quo(num, q.Rate.Denom()).Int64()
}

// CashbackCents computes floor(fiat_equivalent * percent / 100) for a coin
// payment amount at this quote's rate.
func (q *PriceQuote) CashbackCents(amountSubunits, percent int64) int64 {
	fiatEquiv := q.CoinSubunitsToFiatCents(amountSubunits)
	return fiatEquiv * percent / 100
}

// ParseRate parses a positive decimal string ("0.0125") into an exact rational.
func ParseRate(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	rate, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("malformed rate %q", s)
	}
	if rate.Sign() <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %q", s)
	}
	return rate, nil
}
