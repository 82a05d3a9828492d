package engine

import (
	"context"
	"sync"
	"time"

	"github.com/nvqhuy/homewatt/internal/adapter"
)

// Stream restart backoff bounds.
const (
	streamBackoffInitial = 1 * time.Second
	streamBackoffMax     = 60 * time.Second
)

// Run starts the reconcile loops and blocks until ctx is cancelled:
// a periodic fieldbus poll, the cloud change stream consumer and the
// totals reporter. Loops whose collaborator is absent are skipped.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup

	if e.poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.pollLoop(ctx)
		}()
	}
	if e.streamer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.streamLoop(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.reportLoop(ctx)
	}()

	wg.Wait()
}

// pollLoop reconciles the cache against the fieldbus at a fixed
// period. A failed poll marks the affected entries stale instead of
// discarding them.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	e.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, e.opts.PollInterval)
	defer cancel()

	events, err := e.poller.PollAll(pollCtx)
	if err != nil {
		e.logger.Warn("fieldbus poll failed", "error", err, "partial", len(events))
	}
	polled := make(map[string]bool, len(events))
	for _, ev := range events {
		polled[ev.Ref.Key()] = true
		ent, ok := e.cache.get(ev.Ref.Key())
		if !ok {
			continue
		}
		// Only a differing value is a remote change. An unchanged read
		// must not relabel the entry's origin; it still confirms the
		// entry is current.
		if st := ent.snapshot(); st.On == ev.On {
			ent.clearStale()
			continue
		}
		e.ApplyRemoteEvent(ev)
	}
	if err == nil {
		return
	}

	// Entries the failed poll did not cover keep their last value but
	// are flagged so consumers can show them as last-known.
	for key, ent := range e.cache.entries {
		if !polled[key] {
			ent.markStale()
		}
	}
}

// streamLoop consumes the cloud change stream, restarting it with
// capped exponential backoff after a failure. Initial-load replays on
// each (re)start are gated by origin inside the cache apply, so a
// restart never rolls back fresher state.
func (e *Engine) streamLoop(ctx context.Context) {
	backoff := streamBackoffInitial

	for {
		if ctx.Err() != nil {
			return
		}

		ch, err := e.streamer.StreamChanges(ctx)
		if err != nil {
			e.logger.Warn("cloud stream start failed", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > streamBackoffMax {
				backoff = streamBackoffMax
			}
			continue
		}

		e.logger.Info("cloud stream established")
		backoff = streamBackoffInitial

		for ev := range ch {
			if ev.Err != nil {
				e.logger.Warn("cloud stream terminated", "error", ev.Err)
				break
			}
			e.ApplyRemoteEvent(ev)
		}

		// Cloud-written entries are last-known until the stream is back.
		e.cache.markStaleByOrigin(adapter.OriginCloud)

		// A stream that dies right after establishing would otherwise
		// restart in a tight loop.
		select {
		case <-ctx.Done():
			return
		case <-time.After(streamBackoffInitial):
		}
	}
}

// reportLoop periodically derives aggregates from the cache: per-room
// and total power to the cloud and the recorder, accumulated energy,
// the monthly bill estimate and the threshold alert level.
func (e *Engine) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(e.opts.ReportInterval)
	defer ticker.Stop()

	e.energyMu.Lock()
	e.lastTick = time.Now()
	e.energyMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.reportOnce(now)
		}
	}
}

func (e *Engine) reportOnce(now time.Time) {
	total := e.TotalPower()
	rooms := e.RoomPowers()

	energyKWh := e.accumulateEnergy(total, now)

	var costVND float64
	if bill, err := e.EstimateMonthly(); err == nil {
		costVND = bill.TotalVND
	}

	if e.cloud != nil {
		for roomID, watts := range rooms {
			if err := e.cloud.PublishRoomPower(roomID, watts); err != nil {
				e.logger.Warn("publishing room power failed", "room", roomID, "error", err)
			}
		}
		if err := e.cloud.PublishTotals(total, energyKWh, costVND); err != nil {
			e.logger.Warn("publishing totals failed", "error", err)
		}
	}

	if e.recorder != nil {
		for _, room := range e.reg.Rooms() {
			for _, dev := range room.Devices {
				ent, _ := e.cache.get(room.ID + "/" + dev.ID)
				st := ent.snapshot()
				e.recorder.WriteDevicePower(room.ID, dev.ID, st.On, st.PowerWatts)
			}
			e.recorder.WriteRoomPower(room.ID, rooms[room.ID])
		}
		e.recorder.WriteTotalPower(total, costVND)
	}

	e.reportAlert(total, rooms)
}

// accumulateEnergy integrates draw over the elapsed interval.
func (e *Engine) accumulateEnergy(totalWatts float64, now time.Time) float64 {
	e.energyMu.Lock()
	defer e.energyMu.Unlock()

	if !e.lastTick.IsZero() {
		hours := now.Sub(e.lastTick).Hours()
		if hours > 0 {
			e.energyWh += totalWatts * hours
		}
	}
	e.lastTick = now
	return e.energyWh / 1000
}

// EnergyKWh returns the energy accumulated since start.
func (e *Engine) EnergyKWh() float64 {
	e.energyMu.Lock()
	defer e.energyMu.Unlock()
	return e.energyWh / 1000
}

// reportAlert publishes a threshold alert on level transitions only,
// so a sustained breach does not flood the alert topic.
func (e *Engine) reportAlert(total float64, rooms map[string]float64) {
	res := e.thresholdCfg.Load().Evaluate(total, rooms)

	prev := e.lastAlertLevel.Swap(int32(res.Level))
	if int32(res.Level) == prev {
		return
	}
	e.logger.Info("threshold level changed",
		"level", res.Level.String(), "total_watts", total)

	if e.cloud == nil || res.Message == "" {
		return
	}
	roomID := ""
	if len(res.OverageRooms) > 0 {
		roomID = res.OverageRooms[0]
	}
	if _, err := e.cloud.PublishAlert(res.Level.String(), res.Message, roomID, total); err != nil {
		e.logger.Warn("publishing alert failed", "error", err)
	}
}
