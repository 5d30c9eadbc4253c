// Package influxdb provides InfluxDB connectivity for hub telemetry.
//
// It wraps the official influxdb-client-go v2 library. The hub bridge
// writes two measurements through it: nobo_temperature (component
// readings) and nobo_zone (set points and effective status).
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePointWithTime("nobo_temperature",
//	    map[string]string{"serial": "186170024143"},
//	    map[string]interface{}{"celsius": 21.5}, time.Now())
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval).
// Batch errors are delivered to the SetOnError callback wrapped in
// ErrWriteFailed; connection and health check errors are returned directly.
package influxdb
