package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvqhuy/homewatt/internal/adapter"
	"github.com/nvqhuy/homewatt/internal/billing"
	"github.com/nvqhuy/homewatt/internal/settings"
	"github.com/nvqhuy/homewatt/internal/threshold"
	"github.com/nvqhuy/homewatt/internal/topology"
)

// ChangeListener receives effective state changes: one call per
// transition of a device's on flag, never for no-op writes.
type ChangeListener func(ref topology.DeviceRef, state DeviceState)

// CloudReporter is the outbound cloud surface the engine publishes to.
// All methods are best-effort; failures are logged, never fatal.
type CloudReporter interface {
	PublishDeviceState(ref topology.DeviceRef, on bool, powerWatts float64, origin adapter.Origin) error
	PublishRoomPower(roomID string, powerWatts float64) error
	PublishTotals(powerWatts, energyKWh, monthlyCostVND float64) error
	PublishThresholds(warningWatts, criticalWatts float64) error
	PublishTierPrices(prices []float64) error
	PublishVAT(rate float64) error
	PublishAlert(level, message, roomID string, powerWatts float64) (string, error)
}

// Recorder receives time-series samples. The InfluxDB client satisfies
// it; a nil Recorder disables recording.
type Recorder interface {
	WriteDevicePower(roomID, deviceID string, on bool, powerWatts float64)
	WriteRoomPower(roomID string, powerWatts float64)
	WriteTotalPower(powerWatts, estimatedMonthlyCost float64)
}

// SettingsStore persists user-editable configuration.
type SettingsStore interface {
	Save(ctx context.Context, s settings.Settings) error
}

// Options tunes the engine's background loops.
type Options struct {
	// PollInterval is the fieldbus reconcile period.
	PollInterval time.Duration

	// ReportInterval is the totals/recording period.
	ReportInterval time.Duration

	// CommandRetries bounds the asynchronous cloud publish attempts
	// after a successful local command.
	CommandRetries int

	// EstimateHoursPerDay feeds the monthly bill projection.
	EstimateHoursPerDay float64

	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.ReportInterval <= 0 {
		o.ReportInterval = 10 * time.Second
	}
	if o.CommandRetries <= 0 {
		o.CommandRetries = 3
	}
	if o.EstimateHoursPerDay <= 0 {
		o.EstimateHoursPerDay = 24
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
}

// Engine reconciles device state across the fieldbus, the cloud and
// local commands into one cache, and derives power aggregates from it.
//
// The engine is the sole mutator of the cache. Commands run on the
// caller's goroutine; reconciliation runs in background loops started
// by Run.
type Engine struct {
	reg      *topology.Registry
	fieldbus adapter.Backend
	poller   adapter.Poller
	streamer adapter.Streamer
	cloud    CloudReporter
	recorder Recorder
	store    SettingsStore
	opts     Options
	logger   *slog.Logger

	cache *cache

	billingCfg   atomic.Pointer[billing.Config]
	thresholdCfg atomic.Pointer[threshold.Config]

	listenersMu sync.RWMutex
	listeners   []ChangeListener

	// energyWh accumulates consumed energy across report intervals.
	energyMu sync.Mutex
	energyWh float64
	lastTick time.Time

	lastAlertLevel atomic.Int32
}

// New wires an engine over its collaborators. The fieldbus backend is
// required; poller, streamer, cloud reporter, recorder and store may
// be nil and the matching loop or sink is skipped.
func New(reg *topology.Registry, fb adapter.Backend, opts Options) *Engine {
	opts.applyDefaults()

	e := &Engine{
		reg:      reg,
		fieldbus: fb,
		opts:     opts,
		logger:   opts.Logger,
		cache:    newCache(reg),
	}
	if p, ok := fb.(adapter.Poller); ok {
		e.poller = p
	}

	initialBilling := billing.DefaultConfig()
	initialThreshold := threshold.DefaultConfig()
	e.billingCfg.Store(&initialBilling)
	e.thresholdCfg.Store(&initialThreshold)
	return e
}

// SetStreamer attaches the cloud change stream consumed by Run.
func (e *Engine) SetStreamer(s adapter.Streamer) { e.streamer = s }

// SetCloudReporter attaches the outbound cloud surface.
func (e *Engine) SetCloudReporter(c CloudReporter) { e.cloud = c }

// SetRecorder attaches the time-series sink.
func (e *Engine) SetRecorder(r Recorder) { e.recorder = r }

// SetSettingsStore attaches the settings persistence collaborator.
func (e *Engine) SetSettingsStore(s SettingsStore) { e.store = s }

// ApplySettings swaps the billing and threshold configuration without
// persisting. Used at startup with the loaded settings.
func (e *Engine) ApplySettings(s settings.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	bc := s.BillingConfig()
	tc := s.Thresholds
	e.billingCfg.Store(&bc)
	e.thresholdCfg.Store(&tc)
	return nil
}

// UpdateSettings validates, applies and persists new settings.
//
// Validation failures reject the whole update before anything changes.
// A persistence failure after the in-memory swap is reported but does
// not roll the swap back: the applied configuration is already valid.
func (e *Engine) UpdateSettings(ctx context.Context, s settings.Settings) error {
	if err := e.ApplySettings(s); err != nil {
		return err
	}

	e.publishSettings(s)

	if e.store == nil {
		return nil
	}
	if err := e.store.Save(ctx, s); err != nil {
		e.logger.Error("settings persist failed", "error", err)
		return err
	}
	return nil
}

func (e *Engine) publishSettings(s settings.Settings) {
	if e.cloud == nil {
		return
	}
	if err := e.cloud.PublishThresholds(s.Thresholds.WarningWatts, s.Thresholds.CriticalWatts); err != nil {
		e.logger.Warn("publishing thresholds failed", "error", err)
	}
	if err := e.cloud.PublishTierPrices(s.TierPrices); err != nil {
		e.logger.Warn("publishing tier prices failed", "error", err)
	}
	if err := e.cloud.PublishVAT(s.VAT); err != nil {
		e.logger.Warn("publishing vat failed", "error", err)
	}
}

// SetDevice commands a device to the given state.
//
// The fieldbus write is synchronous and confirmed before the cache is
// updated and the new state returned; the cloud mirror is published
// asynchronously with bounded retries. On any returned error the cache
// is unmodified.
func (e *Engine) SetDevice(ctx context.Context, roomID, deviceID string, on bool) (DeviceState, error) {
	ref, err := e.reg.Ref(roomID, deviceID)
	if err != nil {
		return DeviceState{}, fmt.Errorf("%w: %s/%s", ErrUnknownDevice, roomID, deviceID)
	}

	if err := e.fieldbus.WriteState(ctx, ref, on); err != nil {
		return DeviceState{}, mapAdapterError(ref, err)
	}

	res := e.cache.entries[ref.Key()].apply(on, adapter.OriginLocal, false, time.Now())
	if res.changed {
		e.notify(ref, res.newState)
	}

	go e.mirrorToCloud(ref, res.newState)

	return res.newState, nil
}

// ToggleDevice flips a device based on its cached state.
//
// The read and the write are not atomic: a remote change landing
// between them can make the toggle a no-op relative to the state the
// caller observed. That race is accepted; last writer wins.
func (e *Engine) ToggleDevice(ctx context.Context, roomID, deviceID string) (DeviceState, error) {
	current, err := e.GetDeviceState(roomID, deviceID)
	if err != nil {
		return DeviceState{}, err
	}
	return e.SetDevice(ctx, roomID, deviceID, !current.On)
}

// GetDeviceState returns the cached state without touching a backend.
func (e *Engine) GetDeviceState(roomID, deviceID string) (DeviceState, error) {
	ref, err := e.reg.Ref(roomID, deviceID)
	if err != nil {
		return DeviceState{}, fmt.Errorf("%w: %s/%s", ErrUnknownDevice, roomID, deviceID)
	}
	ent, _ := e.cache.get(ref.Key())
	return ent.snapshot(), nil
}

// ApplyRemoteEvent folds one backend observation into the cache.
// Poll results, stream deliveries and initial-load replays all land
// here, in arrival order.
func (e *Engine) ApplyRemoteEvent(ev adapter.Event) {
	ent, ok := e.cache.get(ev.Ref.Key())
	if !ok {
		e.logger.Warn("event for unknown device", "ref", ev.Ref.String())
		return
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	res := ent.apply(ev.On, ev.Origin, ev.InitialLoad, at)
	if !res.applied {
		return
	}
	if res.changed {
		e.notify(ev.Ref, res.newState)
	}

	// A cloud-initiated change must reach the hardware too.
	if ev.Origin == adapter.OriginCloud && !ev.InitialLoad && res.changed {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.fieldbus.WriteState(ctx, ev.Ref, ev.On); err != nil {
			e.logger.Warn("forwarding cloud command to fieldbus failed",
				"ref", ev.Ref.String(), "error", err)
		}
	}
}

// RegisterChangeListener adds a callback invoked once per effective
// state change. A panicking listener is isolated and logged; delivery
// to the remaining listeners continues.
func (e *Engine) RegisterChangeListener(l ChangeListener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, l)
}

// notify delivers a change to all listeners on the mutating goroutine,
// after the cache write, so a listener's own read observes the change.
func (e *Engine) notify(ref topology.DeviceRef, state DeviceState) {
	e.listenersMu.RLock()
	listeners := make([]ChangeListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.listenersMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("change listener panicked",
						"ref", ref.String(), "panic", r)
				}
			}()
			l(ref, state)
		}()
	}
}

// mirrorToCloud publishes a device state with bounded retries.
func (e *Engine) mirrorToCloud(ref topology.DeviceRef, state DeviceState) {
	if e.cloud == nil {
		return
	}
	var err error
	for attempt := 1; attempt <= e.opts.CommandRetries; attempt++ {
		err = e.cloud.PublishDeviceState(ref, state.On, state.PowerWatts, state.Origin)
		if err == nil {
			return
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	e.logger.Warn("cloud mirror failed after retries",
		"ref", ref.String(), "attempts", e.opts.CommandRetries, "error", err)
}

// RoomPower sums rated power over the room's devices cached as on.
func (e *Engine) RoomPower(roomID string) (float64, error) {
	room, err := e.reg.Room(roomID)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownDevice, roomID)
	}
	var watts float64
	for _, dev := range room.Devices {
		ent, _ := e.cache.get(roomID + "/" + dev.ID)
		if st := ent.snapshot(); st.On {
			watts += st.PowerWatts
		}
	}
	return watts, nil
}

// TotalPower sums RoomPower over all rooms.
func (e *Engine) TotalPower() float64 {
	var total float64
	for _, room := range e.reg.Rooms() {
		watts, _ := e.RoomPower(room.ID)
		total += watts
	}
	return total
}

// RoomPowers returns the per-room draw for threshold evaluation.
func (e *Engine) RoomPowers() map[string]float64 {
	out := make(map[string]float64)
	for _, room := range e.reg.Rooms() {
		watts, _ := e.RoomPower(room.ID)
		out[room.ID] = watts
	}
	return out
}

// ComputeBill runs the current tariff over a consumption figure.
func (e *Engine) ComputeBill(kwh float64) (billing.Bill, error) {
	return e.billingCfg.Load().Compute(kwh)
}

// EstimateMonthly projects the current total draw into a monthly bill.
func (e *Engine) EstimateMonthly() (billing.Bill, error) {
	return e.billingCfg.Load().EstimateMonthly(e.TotalPower(), e.opts.EstimateHoursPerDay)
}

// EvaluateThresholds classifies the current draw.
func (e *Engine) EvaluateThresholds() threshold.Result {
	return e.thresholdCfg.Load().Evaluate(e.TotalPower(), e.RoomPowers())
}

// BillingConfig returns the active tariff.
func (e *Engine) BillingConfig() billing.Config {
	return *e.billingCfg.Load()
}

// ThresholdConfig returns the active thresholds.
func (e *Engine) ThresholdConfig() threshold.Config {
	return *e.thresholdCfg.Load()
}

// mapAdapterError translates adapter failures into command errors.
func mapAdapterError(ref topology.DeviceRef, err error) error {
	switch {
	case errors.Is(err, adapter.ErrTimeout):
		return fmt.Errorf("%w: %s: %w", ErrTimeout, ref.Key(), err)
	case errors.Is(err, adapter.ErrUnknownDevice):
		return fmt.Errorf("%w: %s: %w", ErrUnknownDevice, ref.Key(), err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrBackendUnreachable, ref.Key(), err)
	}
}
