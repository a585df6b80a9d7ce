package main

import (
	"fmt"
	"time"

	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/mqtt"
	"github.com/nerrad567/greenhouse-catalog/internal/peer"
)

// measurementWriter is the part of the InfluxDB client the adaptor writes to.
type measurementWriter interface {
	WriteMeasurement(greenhouse, deviceID, measure, unit string, value float64, ts time.Time)
}

// forwarder turns broker messages into InfluxDB points.
type forwarder struct {
	sink measurementWriter
}

// handle implements mqtt.MessageHandler. The measure in the topic is
// authoritative; a reading naming a different measure is rejected.
func (f forwarder) handle(topic string, payload []byte) error {
	greenhouse, deviceID, measure, ok := mqtt.ParseMeasurement(topic)
	if !ok {
		return fmt.Errorf("not a measurement topic: %q", topic)
	}
	r, err := peer.ParseReading(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}
	if r.Name != measure {
		return fmt.Errorf("%s: reading names %q", topic, r.Name)
	}
	f.sink.WriteMeasurement(greenhouse, deviceID, measure, r.Unit, r.Value, r.Timestamp())
	return nil
}
