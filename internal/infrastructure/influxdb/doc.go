// Package influxdb records event bridge telemetry in InfluxDB v2.
//
// Telemetry is optional. When enabled, the dashboard writes:
//
//	bridge_state    tag state            field value=1, connected=bool
//	bridge_events   tags topic, event    field count=1
//	bridge_dropped  tag topic            field count=1, reason=string
//
// Writes are non-blocking and batched by the InfluxDB client; write errors
// arrive asynchronously through SetOnError.
//
// # Configuration
//
//	influxdb:
//	  enabled: true
//	  url: "http://localhost:8086"
//	  token: "${NMOSDASH_INFLUXDB_TOKEN}"
//	  org: "nmos"
//	  bucket: "dashboard"
//	  batch_size: 100
//	  flush_interval: 10   # seconds
package influxdb
