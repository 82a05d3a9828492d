// Package adapter defines the backend contract shared by the fieldbus
// and cloud sync implementations, plus an in-memory Simulator used
// when no hardware is available.
//
// A Backend reads and writes individual device states. A Poller reads
// the whole population in one pass. A Streamer delivers
// backend-initiated changes over a channel, with InitialLoad marking
// replayed snapshots delivered during stream establishment.
package adapter
