// Package influxdb writes catalog statistics and greenhouse telemetry to
// InfluxDB v2.
//
// Two processes use it. The catalog records a catalog_sweep point and a
// catalog_records point after every reaper sweep. The data adaptor writes every
// measurement it receives over MQTT to greenhouse_measurements, tagged by
// greenhouse, device and measure.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // optional: run without statistics
//	}
//	defer client.Close()
//
//	client.WriteMeasurement("3", "12", "temperature", "Cel", 21.5, time.Now())
package influxdb
