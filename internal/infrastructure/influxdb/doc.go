// Package influxdb provides time-series sample forwarding for HomeWatt Core.
//
// The engine's reporter hands current power figures to this client; the
// client batches them and writes asynchronously. Historical retention,
// downsampling and queries are the InfluxDB server's job — this process
// keeps no series of its own.
//
// The integration is optional and controlled by the influxdb.enabled
// config flag. When disabled, Connect returns ErrDisabled and callers
// simply skip the recorder wiring.
package influxdb
