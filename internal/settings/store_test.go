package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nvqhuy/homewatt/internal/billing"
	"github.com/nvqhuy/homewatt/internal/infrastructure/database"
	"github.com/nvqhuy/homewatt/internal/threshold"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "settings.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestLoadDefaultsWhenEmpty(t *testing.T) {
	store := testStore(t)

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Thresholds.WarningWatts != threshold.DefaultWarningWatts {
		t.Errorf("WarningWatts = %v, want %v", got.Thresholds.WarningWatts, threshold.DefaultWarningWatts)
	}
	if got.VAT != billing.DefaultVAT {
		t.Errorf("VAT = %v, want %v", got.VAT, billing.DefaultVAT)
	}
	if len(got.TierPrices) != 6 {
		t.Errorf("TierPrices len = %d, want 6", len(got.TierPrices))
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	in := Settings{
		Thresholds: threshold.Config{
			WarningWatts:     600,
			CriticalWatts:    1200,
			RoomCeilingWatts: 900,
		},
		TierPrices: []float64{2000, 2100, 2400, 3000, 3300, 3500},
		VAT:        0.1,
	}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Thresholds != in.Thresholds {
		t.Errorf("Thresholds = %+v, want %+v", got.Thresholds, in.Thresholds)
	}
	if got.VAT != in.VAT {
		t.Errorf("VAT = %v, want %v", got.VAT, in.VAT)
	}
	for i := range in.TierPrices {
		if got.TierPrices[i] != in.TierPrices[i] {
			t.Errorf("TierPrices[%d] = %v, want %v", i, got.TierPrices[i], in.TierPrices[i])
		}
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first := Defaults()
	first.Thresholds.WarningWatts = 550
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}

	second := Defaults()
	second.Thresholds.WarningWatts = 650
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Thresholds.WarningWatts != 650 {
		t.Errorf("WarningWatts = %v, want 650 (latest save)", got.Thresholds.WarningWatts)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	bad := Defaults()
	bad.Thresholds.CriticalWatts = bad.Thresholds.WarningWatts - 1
	if err := store.Save(ctx, bad); !errors.Is(err, threshold.ErrInvalidConfig) {
		t.Errorf("Save() error = %v, want ErrInvalidConfig", err)
	}

	// Nothing must have been written.
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Thresholds.CriticalWatts != threshold.DefaultCriticalWatts {
		t.Errorf("invalid save leaked into store: %+v", got.Thresholds)
	}

	badPrices := Defaults()
	badPrices.TierPrices = []float64{1893, -1, 2271, 2860, 3197, 3302}
	if err := store.Save(ctx, badPrices); !errors.Is(err, billing.ErrInvalidConfig) {
		t.Errorf("Save() error = %v, want billing.ErrInvalidConfig", err)
	}
}

func TestDefaultsValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Errorf("Defaults().Validate() error = %v", err)
	}
}
