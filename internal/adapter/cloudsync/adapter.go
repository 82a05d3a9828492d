package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvqhuy/homewatt/internal/adapter"
	"github.com/nvqhuy/homewatt/internal/infrastructure/mqtt"
	"github.com/nvqhuy/homewatt/internal/topology"
)

// streamBuffer bounds the in-flight event channel. When full, the
// broker handler blocks until the reconcile loop catches up.
const streamBuffer = 64

// broker is the subset of the MQTT client the adapter uses.
// *mqtt.Client satisfies it; tests substitute a fake.
type broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
	SetOnDisconnect(callback func(err error))
}

// Adapter bridges the cloud MQTT namespace to backend events.
//
// Incoming control messages and retained state replays are delivered
// through StreamChanges. Outgoing state, totals, settings and alerts
// are published with the configured QoS; device state is retained so
// a reconnecting subscriber receives the last known snapshot.
type Adapter struct {
	client broker
	reg    *topology.Registry
	topics mqtt.Topics
	qos    byte
	logger *slog.Logger

	streamMu sync.Mutex
	stream   *streamState
}

// streamState is one StreamChanges lifetime.
type streamState struct {
	ch     chan adapter.Event
	mu     sync.Mutex
	closed bool
}

// push delivers an event unless the stream has ended.
func (s *streamState) push(ev adapter.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch <- ev
}

// end delivers an optional terminal error and closes the channel.
func (s *streamState) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		s.ch <- adapter.Event{Err: err, At: time.Now()}
	}
	s.closed = true
	close(s.ch)
}

// New creates a cloud adapter over a connected MQTT client.
func New(client broker, reg *topology.Registry, qos byte, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	a := &Adapter{
		client: client,
		reg:    reg,
		qos:    qos,
		logger: logger,
	}
	client.SetOnDisconnect(a.handleDisconnect)
	return a
}

// handleDisconnect terminates the active stream so the reconcile loop
// restarts it. The restart re-subscribes and replays retained state,
// which downstream applies only to entries no source has written.
func (a *Adapter) handleDisconnect(err error) {
	a.streamMu.Lock()
	stream := a.stream
	a.stream = nil
	a.streamMu.Unlock()

	if stream != nil {
		stream.end(fmt.Errorf("%w: %v", adapter.ErrDisconnected, err))
	}
}

// StreamChanges subscribes to the control and device state namespaces
// and delivers observations until the context is cancelled or the
// connection drops. Only one stream is active at a time; starting a
// new one ends the previous.
func (a *Adapter) StreamChanges(ctx context.Context) (<-chan adapter.Event, error) {
	if !a.client.IsConnected() {
		return nil, adapter.ErrNotConnected
	}

	stream := &streamState{ch: make(chan adapter.Event, streamBuffer)}

	a.streamMu.Lock()
	prev := a.stream
	a.stream = stream
	a.streamMu.Unlock()
	if prev != nil {
		prev.end(nil)
	}

	if err := a.client.Subscribe(a.topics.AllControl(), a.qos, a.handleControl(stream)); err != nil {
		return nil, fmt.Errorf("subscribing to control topics: %w", err)
	}
	if err := a.client.Subscribe(a.topics.AllDeviceStates(), a.qos, a.handleStateReplay(stream)); err != nil {
		a.client.Unsubscribe(a.topics.AllControl())
		return nil, fmt.Errorf("subscribing to state topics: %w", err)
	}

	go func() {
		<-ctx.Done()
		a.client.Unsubscribe(a.topics.AllControl())
		a.client.Unsubscribe(a.topics.AllDeviceStates())

		a.streamMu.Lock()
		if a.stream == stream {
			a.stream = nil
		}
		a.streamMu.Unlock()
		stream.end(nil)
	}()

	return stream.ch, nil
}

// handleControl turns a remote command message into a live cloud event.
func (a *Adapter) handleControl(stream *streamState) mqtt.MessageHandler {
	return func(topic string, payload []byte, retained bool) error {
		// Retained control messages are stale commands from a previous
		// session; acting on them would re-toggle devices on every
		// restart.
		if retained {
			return nil
		}

		roomID, deviceID, ok := mqtt.ParseControl(topic)
		if !ok {
			return fmt.Errorf("unparseable control topic %q", topic)
		}
		ref, err := a.reg.Ref(roomID, deviceID)
		if err != nil {
			a.logger.Warn("control for unknown device", "topic", topic)
			return nil
		}

		var cmd controlPayload
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("decoding control payload: %w", err)
		}

		stream.push(adapter.Event{
			Ref:    ref,
			On:     cmd.On,
			Origin: adapter.OriginCloud,
			At:     time.Now(),
		})
		return nil
	}
}

// handleStateReplay turns retained state snapshots into initial-load
// events. Live deliveries on the state namespace are this process's
// own publishes echoed back, and are ignored.
func (a *Adapter) handleStateReplay(stream *streamState) mqtt.MessageHandler {
	return func(topic string, payload []byte, retained bool) error {
		if !retained {
			return nil
		}

		roomID, deviceID, ok := mqtt.ParseDeviceState(topic)
		if !ok {
			return fmt.Errorf("unparseable state topic %q", topic)
		}
		ref, err := a.reg.Ref(roomID, deviceID)
		if err != nil {
			a.logger.Warn("retained state for unknown device", "topic", topic)
			return nil
		}

		var st statePayload
		if err := json.Unmarshal(payload, &st); err != nil {
			return fmt.Errorf("decoding state payload: %w", err)
		}

		stream.push(adapter.Event{
			Ref:         ref,
			On:          st.On,
			Origin:      adapter.OriginCloud,
			InitialLoad: true,
			At:          time.Now(),
		})
		return nil
	}
}

// PublishDeviceState mirrors a device state to the cloud. The message
// is retained so late subscribers see the last snapshot.
func (a *Adapter) PublishDeviceState(ref topology.DeviceRef, on bool, powerWatts float64, origin adapter.Origin) error {
	payload, err := json.Marshal(statePayload{
		On:         on,
		PowerWatts: powerWatts,
		Origin:     origin.String(),
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("encoding state payload: %w", err)
	}
	return a.client.Publish(a.topics.DeviceState(ref.RoomID, ref.DeviceID), payload, a.qos, true)
}

// PublishRoomPower mirrors a room's aggregate draw to the cloud.
func (a *Adapter) PublishRoomPower(roomID string, powerWatts float64) error {
	payload, err := json.Marshal(roomPowerPayload{
		PowerWatts: powerWatts,
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("encoding room power payload: %w", err)
	}
	return a.client.Publish(a.topics.RoomPower(roomID), payload, a.qos, true)
}

// PublishTotals mirrors site totals and the current bill estimate.
// Each figure goes to its own topic so dashboards can subscribe to
// just the one they display.
func (a *Adapter) PublishTotals(powerWatts, energyKWh, monthlyCostVND float64) error {
	now := time.Now()
	payload, err := json.Marshal(totalsPayload{
		PowerWatts:     powerWatts,
		EnergyKWh:      energyKWh,
		MonthlyCostVND: monthlyCostVND,
		UpdatedAt:      now,
	})
	if err != nil {
		return fmt.Errorf("encoding totals payload: %w", err)
	}
	if err := a.client.Publish(a.topics.TotalPower(), payload, a.qos, true); err != nil {
		return err
	}

	energy, err := json.Marshal(map[string]any{"energy_kwh": energyKWh, "updated_at": now})
	if err != nil {
		return fmt.Errorf("encoding energy payload: %w", err)
	}
	if err := a.client.Publish(a.topics.TotalEnergy(), energy, a.qos, true); err != nil {
		return err
	}

	cost, err := json.Marshal(map[string]any{"monthly_cost_vnd": monthlyCostVND, "updated_at": now})
	if err != nil {
		return fmt.Errorf("encoding cost payload: %w", err)
	}
	return a.client.Publish(a.topics.TotalMonthlyCost(), cost, a.qos, true)
}

// PublishThresholds mirrors the persisted power thresholds.
func (a *Adapter) PublishThresholds(warningWatts, criticalWatts float64) error {
	payload, err := json.Marshal(thresholdsPayload{
		WarningWatts:  warningWatts,
		CriticalWatts: criticalWatts,
	})
	if err != nil {
		return fmt.Errorf("encoding thresholds payload: %w", err)
	}
	return a.client.Publish(a.topics.SettingsThresholds(), payload, a.qos, true)
}

// PublishTierPrices mirrors the persisted electricity tier prices.
func (a *Adapter) PublishTierPrices(prices []float64) error {
	payload, err := json.Marshal(tierPricesPayload{Prices: prices})
	if err != nil {
		return fmt.Errorf("encoding tier prices payload: %w", err)
	}
	return a.client.Publish(a.topics.SettingsTierPrices(), payload, a.qos, true)
}

// PublishVAT mirrors the persisted VAT rate.
func (a *Adapter) PublishVAT(rate float64) error {
	payload, err := json.Marshal(vatPayload{Rate: rate})
	if err != nil {
		return fmt.Errorf("encoding vat payload: %w", err)
	}
	return a.client.Publish(a.topics.SettingsVAT(), payload, a.qos, true)
}

// PublishAlert announces a threshold breach. Alerts get a fresh UUID
// and are not retained; a subscriber that missed one has missed it.
func (a *Adapter) PublishAlert(level, message, roomID string, powerWatts float64) (string, error) {
	id := uuid.New().String()
	payload, err := json.Marshal(alertPayload{
		ID:         id,
		Level:      level,
		Message:    message,
		RoomID:     roomID,
		PowerWatts: powerWatts,
		At:         time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding alert payload: %w", err)
	}
	if err := a.client.Publish(a.topics.Alert(id), payload, a.qos, false); err != nil {
		return "", err
	}
	return id, nil
}

// Connected reports broker reachability.
func (a *Adapter) Connected() bool {
	return a.client.IsConnected()
}
