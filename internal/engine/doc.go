// Package engine reconciles device state from three sources into one
// cache and derives the power figures everything else consumes.
//
// Sources and their precedence are deliberately simple: observations
// apply in arrival order and the last writer wins, regardless of
// origin. The one exception is initial-load replays delivered when the
// cloud stream (re)connects; those apply only to entries no source has
// written yet, so a stale snapshot can never overwrite live state.
//
// The engine is the sole mutator of the cache. Local commands write
// the fieldbus synchronously and mirror to the cloud asynchronously
// with bounded retries; cloud commands are forwarded to the fieldbus
// from the stream consumer; fieldbus polls correct drift both ways.
// Cache reads never block on I/O.
package engine
