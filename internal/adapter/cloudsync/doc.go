// Package cloudsync maps the cloud MQTT namespace onto backend events.
//
// Remote commands arrive on homewatt/control/{room}/{device} and are
// delivered live. Device state is published retained under
// homewatt/rooms/{room}/devices/{device}/state, so subscribing replays
// the broker's last snapshot of every device; those replays are marked
// as initial-load events and the reconcile loop applies them only to
// cache entries no other source has written yet. Site totals, settings
// and alerts each have their own topic under the homewatt/ prefix.
//
// The adapter is deliberately not an adapter.Backend: a broker has no
// point read or confirmed point write, only publishes and retained
// replays. Retained state publishes stand in for writes and the
// subscription replay stands in for reads, so the surface here is
// Streamer plus the publish methods.
package cloudsync
