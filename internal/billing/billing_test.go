package billing

import (
	"errors"
	"math"
	"testing"
)

func TestComputeZero(t *testing.T) {
	bill, err := DefaultConfig().Compute(0)
	if err != nil {
		t.Fatalf("Compute(0) error = %v", err)
	}
	if bill.Subtotal != 0 || bill.TotalVND != 0 || len(bill.Items) != 0 {
		t.Errorf("Compute(0) = %+v, want empty bill", bill)
	}
}

func TestComputeNegative(t *testing.T) {
	if _, err := DefaultConfig().Compute(-1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Compute(-1) error = %v, want ErrInvalidInput", err)
	}
}

func TestComputeTierBoundaries(t *testing.T) {
	tests := []struct {
		kwh          float64
		wantSubtotal float64
		wantTiers    int
	}{
		// Tier 1 holds exactly 50 kWh at 1893 VND.
		{50, 50 * 1893, 1},
		// The 51st kWh spills into tier 2 at 1956 VND.
		{51, 50*1893 + 1*1956, 2},
		// 100 kWh fills tiers 1 and 2 completely.
		{100, 50*1893 + 50*1956, 2},
		// 250 kWh reaches halfway into tier 4.
		{250, 50*1893 + 50*1956 + 100*2271 + 50*2860, 4},
		// 500 kWh reaches the unbounded final tier.
		{500, 50*1893 + 50*1956 + 100*2271 + 100*2860 + 100*3197 + 100*3302, 6},
	}

	cfg := DefaultConfig()
	for _, tt := range tests {
		bill, err := cfg.Compute(tt.kwh)
		if err != nil {
			t.Fatalf("Compute(%v) error = %v", tt.kwh, err)
		}
		if bill.Subtotal != tt.wantSubtotal {
			t.Errorf("Compute(%v) subtotal = %v, want %v", tt.kwh, bill.Subtotal, tt.wantSubtotal)
		}
		if len(bill.Items) != tt.wantTiers {
			t.Errorf("Compute(%v) tiers = %d, want %d", tt.kwh, len(bill.Items), tt.wantTiers)
		}
		wantTotal := tt.wantSubtotal * 1.08
		if math.Abs(bill.TotalVND-wantTotal) > 1e-6 {
			t.Errorf("Compute(%v) total = %v, want %v", tt.kwh, bill.TotalVND, wantTotal)
		}
	}
}

func TestComputeIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	first, err := cfg.Compute(237.5)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	second, err := cfg.Compute(237.5)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if first.TotalVND != second.TotalVND || first.Subtotal != second.Subtotal {
		t.Errorf("repeated Compute diverged: %v vs %v", first, second)
	}
}

func TestEstimateMonthly(t *testing.T) {
	// 1000 W for 10 h/day over 30 days is 300 kWh.
	bill, err := DefaultConfig().EstimateMonthly(1000, 10)
	if err != nil {
		t.Fatalf("EstimateMonthly() error = %v", err)
	}
	if bill.KWh != 300 {
		t.Errorf("KWh = %v, want 300", bill.KWh)
	}
	wantSubtotal := 50*1893.0 + 50*1956 + 100*2271 + 100*2860
	if bill.Subtotal != wantSubtotal {
		t.Errorf("Subtotal = %v, want %v", bill.Subtotal, wantSubtotal)
	}
}

func TestEstimateMonthlyRejections(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := cfg.EstimateMonthly(-1, 10); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative power error = %v, want ErrInvalidInput", err)
	}
	if _, err := cfg.EstimateMonthly(100, 25); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("hours > 24 error = %v, want ErrInvalidInput", err)
	}
}

func TestConfigFromPrices(t *testing.T) {
	cfg := ConfigFromPrices([]float64{2000, 2100, 2400, 3000, 3300, 3500}, 0.08)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if got := cfg.Tiers[0].Capacity(); got != 50 {
		t.Errorf("tier 1 capacity = %v, want 50", got)
	}
	if got := cfg.Tiers[2].Capacity(); got != 100 {
		t.Errorf("tier 3 capacity = %v, want 100", got)
	}
	if !math.IsInf(cfg.Tiers[5].Capacity(), 1) {
		t.Error("final tier capacity should be unbounded")
	}

	prices := cfg.Prices()
	if len(prices) != 6 || prices[0] != 2000 || prices[5] != 3500 {
		t.Errorf("Prices() = %v", prices)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no tiers", func(c *Config) { c.Tiers = nil }},
		{"zero price", func(c *Config) { c.Tiers[1].PricePerKWh = 0 }},
		{"negative price", func(c *Config) { c.Tiers[0].PricePerKWh = -10 }},
		{"gap between tiers", func(c *Config) { c.Tiers[2].LowerKWh = 150 }},
		{"bounded final tier", func(c *Config) { c.Tiers[5].UpperKWh = 1000 }},
		{"vat out of range", func(c *Config) { c.VAT = 1.5 }},
		{"negative vat", func(c *Config) { c.VAT = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
