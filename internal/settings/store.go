package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nvqhuy/homewatt/internal/billing"
	"github.com/nvqhuy/homewatt/internal/infrastructure/database"
	"github.com/nvqhuy/homewatt/internal/threshold"
)

// Domain errors for the settings package.
var (
	// ErrPersist is returned when settings cannot be written to the
	// database. The in-memory configuration is already validated and
	// applied when this surfaces; callers report it without rolling
	// back.
	ErrPersist = errors.New("settings: persist failed")

	// ErrLoad is returned when the settings row cannot be read.
	ErrLoad = errors.New("settings: load failed")
)

// Settings is the persisted, user-editable configuration as one unit.
type Settings struct {
	Thresholds threshold.Config
	TierPrices []float64
	VAT        float64
}

// Defaults returns the stock settings used when no row exists yet.
func Defaults() Settings {
	return Settings{
		Thresholds: threshold.DefaultConfig(),
		TierPrices: billing.DefaultPrices,
		VAT:        billing.DefaultVAT,
	}
}

// Validate checks the settings before they are applied or persisted.
func (s Settings) Validate() error {
	if err := s.Thresholds.Validate(); err != nil {
		return err
	}
	return billing.ConfigFromPrices(s.TierPrices, s.VAT).Validate()
}

// BillingConfig builds the tariff these settings describe.
func (s Settings) BillingConfig() billing.Config {
	return billing.ConfigFromPrices(s.TierPrices, s.VAT)
}

// Store persists settings in a single-row SQLite table.
type Store struct {
	db *database.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS settings (
    id              INTEGER PRIMARY KEY CHECK (id = 1),
    warning_watts   REAL NOT NULL,
    critical_watts  REAL NOT NULL,
    room_ceiling    REAL NOT NULL DEFAULT 0,
    tier_prices     TEXT NOT NULL,
    vat             REAL NOT NULL
);`

// NewStore creates the settings table if needed and returns the store.
func NewStore(ctx context.Context, db *database.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("%w: creating schema: %w", ErrPersist, err)
	}
	return &Store{db: db}, nil
}

// Load reads the persisted settings, falling back to defaults when no
// row has been saved yet.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT warning_watts, critical_watts, room_ceiling, tier_prices, vat
		FROM settings WHERE id = 1`)

	var (
		out        Settings
		pricesJSON string
	)
	err := row.Scan(
		&out.Thresholds.WarningWatts,
		&out.Thresholds.CriticalWatts,
		&out.Thresholds.RoomCeilingWatts,
		&pricesJSON,
		&out.VAT,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	if err := json.Unmarshal([]byte(pricesJSON), &out.TierPrices); err != nil {
		return Settings{}, fmt.Errorf("%w: decoding tier prices: %w", ErrLoad, err)
	}

	// A row that fails validation (schema edits by hand, partial
	// writes) falls back to defaults rather than poisoning startup.
	if err := out.Validate(); err != nil {
		return Defaults(), nil
	}
	return out, nil
}

// Save validates and persists the settings wholesale.
func (s *Store) Save(ctx context.Context, in Settings) error {
	if err := in.Validate(); err != nil {
		return err
	}

	pricesJSON, err := json.Marshal(in.TierPrices)
	if err != nil {
		return fmt.Errorf("%w: encoding tier prices: %w", ErrPersist, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, warning_watts, critical_watts, room_ceiling, tier_prices, vat)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			warning_watts = excluded.warning_watts,
			critical_watts = excluded.critical_watts,
			room_ceiling = excluded.room_ceiling,
			tier_prices = excluded.tier_prices,
			vat = excluded.vat`,
		in.Thresholds.WarningWatts,
		in.Thresholds.CriticalWatts,
		in.Thresholds.RoomCeilingWatts,
		string(pricesJSON),
		in.VAT,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
