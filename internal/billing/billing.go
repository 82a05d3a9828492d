package billing

import (
	"errors"
	"fmt"
	"math"
)

// Domain errors for the billing package.
var (
	// ErrInvalidInput is returned for negative consumption values.
	ErrInvalidInput = errors.New("billing: invalid input")

	// ErrInvalidConfig is returned when a tariff configuration fails
	// validation.
	ErrInvalidConfig = errors.New("billing: invalid config")
)

// Tier is one step of the progressive residential tariff.
type Tier struct {
	// LowerKWh is the first kWh of consumption billed at this tier.
	LowerKWh float64

	// UpperKWh is the last kWh billed at this tier. The final tier
	// is unbounded and holds +Inf.
	UpperKWh float64

	// PricePerKWh is the unit price in VND.
	PricePerKWh float64
}

// Capacity returns the kWh this tier can absorb.
func (t Tier) Capacity() float64 {
	if math.IsInf(t.UpperKWh, 1) {
		return math.Inf(1)
	}
	return t.UpperKWh - t.LowerKWh + 1
}

// Config is a complete tariff: ordered tiers plus the VAT rate applied
// to the pre-tax total.
type Config struct {
	Tiers []Tier
	VAT   float64
}

// Default EVN residential tariff breakpoints and prices.
var defaultBreakpoints = []float64{50, 100, 200, 300, 400}

// DefaultPrices are the per-tier unit prices in VND per kWh.
var DefaultPrices = []float64{1893, 1956, 2271, 2860, 3197, 3302}

// DefaultVAT is the applied value-added tax rate.
const DefaultVAT = 0.08

// DefaultConfig returns the stock six-tier tariff.
func DefaultConfig() Config {
	return ConfigFromPrices(DefaultPrices, DefaultVAT)
}

// ConfigFromPrices builds a tariff from per-tier prices over the stock
// breakpoints. The price slice must have one entry per tier.
func ConfigFromPrices(prices []float64, vat float64) Config {
	tiers := make([]Tier, len(prices))
	lower := 1.0
	for i, price := range prices {
		upper := math.Inf(1)
		if i < len(defaultBreakpoints) {
			upper = defaultBreakpoints[i]
		}
		tiers[i] = Tier{LowerKWh: lower, UpperKWh: upper, PricePerKWh: price}
		lower = upper + 1
	}
	return Config{Tiers: tiers, VAT: vat}
}

// Validate checks tier ordering, positive prices and a sane VAT rate.
func (c Config) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidConfig)
	}
	for i, tier := range c.Tiers {
		if tier.PricePerKWh <= 0 {
			return fmt.Errorf("%w: tier %d price %v", ErrInvalidConfig, i+1, tier.PricePerKWh)
		}
		if !math.IsInf(tier.UpperKWh, 1) && tier.UpperKWh < tier.LowerKWh {
			return fmt.Errorf("%w: tier %d upper %v below lower %v", ErrInvalidConfig, i+1, tier.UpperKWh, tier.LowerKWh)
		}
		if i > 0 && tier.LowerKWh != c.Tiers[i-1].UpperKWh+1 {
			return fmt.Errorf("%w: tier %d not contiguous", ErrInvalidConfig, i+1)
		}
	}
	last := c.Tiers[len(c.Tiers)-1]
	if !math.IsInf(last.UpperKWh, 1) {
		return fmt.Errorf("%w: final tier must be unbounded", ErrInvalidConfig)
	}
	if c.VAT < 0 || c.VAT >= 1 {
		return fmt.Errorf("%w: vat rate %v", ErrInvalidConfig, c.VAT)
	}
	return nil
}

// Prices returns the per-tier unit prices in tier order.
func (c Config) Prices() []float64 {
	prices := make([]float64, len(c.Tiers))
	for i, tier := range c.Tiers {
		prices[i] = tier.PricePerKWh
	}
	return prices
}

// LineItem is one tier's contribution to a bill.
type LineItem struct {
	Tier        int
	KWh         float64
	PricePerKWh float64
	AmountVND   float64
}

// Bill is the result of a tariff computation.
type Bill struct {
	KWh       float64
	Items     []LineItem
	Subtotal  float64
	VATAmount float64
	TotalVND  float64
}

// Compute bills a consumption figure through the progressive tariff:
// each tier absorbs up to its capacity before the remainder carries to
// the next, then VAT applies to the pre-tax sum.
//
// The computation is pure; the same input always yields the same bill.
func (c Config) Compute(kwh float64) (Bill, error) {
	if kwh < 0 {
		return Bill{}, fmt.Errorf("%w: consumption %v kWh", ErrInvalidInput, kwh)
	}

	bill := Bill{KWh: kwh}
	remaining := kwh

	for i, tier := range c.Tiers {
		if remaining <= 0 {
			break
		}
		billed := remaining
		if capacity := tier.Capacity(); billed > capacity {
			billed = capacity
		}
		amount := billed * tier.PricePerKWh
		bill.Items = append(bill.Items, LineItem{
			Tier:        i + 1,
			KWh:         billed,
			PricePerKWh: tier.PricePerKWh,
			AmountVND:   amount,
		})
		bill.Subtotal += amount
		remaining -= billed
	}

	bill.VATAmount = bill.Subtotal * c.VAT
	bill.TotalVND = bill.Subtotal + bill.VATAmount
	return bill, nil
}

// EstimateMonthly projects a constant power draw over a 30-day month
// and bills the resulting consumption.
func (c Config) EstimateMonthly(powerWatts float64, hoursPerDay float64) (Bill, error) {
	if powerWatts < 0 || hoursPerDay < 0 || hoursPerDay > 24 {
		return Bill{}, fmt.Errorf("%w: %v W for %v h/day", ErrInvalidInput, powerWatts, hoursPerDay)
	}
	kwh := powerWatts / 1000 * hoursPerDay * 30
	return c.Compute(kwh)
}
