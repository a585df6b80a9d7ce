package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	// MeasurementGreenhouse holds sensor readings forwarded by the data adaptor.
	MeasurementGreenhouse = "greenhouse_measurements"

	// MeasurementSweep holds one point per reaper sweep.
	MeasurementSweep = "catalog_sweep"

	// MeasurementRecords holds the record count of every collection after a sweep.
	MeasurementRecords = "catalog_records"
)

// WriteMeasurement records one sensor reading.
//
//	client.WriteMeasurement("3", "12", "temperature", "Cel", 21.5, ts)
func (c *Client) WriteMeasurement(greenhouse, deviceID, measure, unit string, value float64, ts time.Time) {
	c.write(measurementPoint(greenhouse, deviceID, measure, unit, value, ts))
}

// WriteSweep records the outcome of one reaper sweep: how many records each
// collection lost and how many singleton slots were cleared.
func (c *Client) WriteSweep(removed map[string]int, slotsCleared int, duration time.Duration, ts time.Time) {
	c.write(sweepPoint(removed, slotsCleared, duration, ts))
}

// WriteRecordCounts records the size of every collection.
func (c *Client) WriteRecordCounts(counts map[string]int, ts time.Time) {
	c.write(recordsPoint(counts, ts))
}

// WritePoint writes a custom point.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	c.write(write.NewPoint(measurement, tags, fields, ts))
}

func (c *Client) write(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func measurementPoint(greenhouse, deviceID, measure, unit string, value float64, ts time.Time) *write.Point {
	tags := map[string]string{
		"greenhouse": greenhouse,
		"device_id":  deviceID,
		"measure":    measure,
	}
	if unit != "" {
		tags["unit"] = unit
	}
	return write.NewPoint(MeasurementGreenhouse, tags, map[string]interface{}{"value": value}, ts)
}

func sweepPoint(removed map[string]int, slotsCleared int, duration time.Duration, ts time.Time) *write.Point {
	total := 0
	fields := map[string]interface{}{
		"slots_cleared": slotsCleared,
		"duration_ms":   duration.Milliseconds(),
	}
	for collection, n := range removed {
		fields["removed_"+collection] = n
		total += n
	}
	fields["removed_total"] = total
	return write.NewPoint(MeasurementSweep, nil, fields, ts)
}

func recordsPoint(counts map[string]int, ts time.Time) *write.Point {
	fields := make(map[string]interface{}, len(counts))
	for collection, n := range counts {
		fields[collection] = n
	}
	return write.NewPoint(MeasurementRecords, nil, fields, ts)
}
