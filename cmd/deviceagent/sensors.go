package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/mqtt"
	"github.com/nerrad567/greenhouse-catalog/internal/peer"
)

// sensor is a stand-in for one physical sensor. It draws uniform readings
// between min and max.
type sensor struct {
	measure string
	unit    string
	min     float64
	max     float64
}

var knownSensors = map[string]sensor{
	"temperature":   {measure: "temperature", unit: "Cel", min: 12, max: 35},
	"humidity":      {measure: "humidity", unit: "%RH", min: 30, max: 95},
	"soil_moisture": {measure: "soil_moisture", unit: "%", min: 10, max: 60},
	"light":         {measure: "light", unit: "lx", min: 0, max: 60000},
	"co2":           {measure: "co2", unit: "ppm", min: 380, max: 1500},
}

// sensorsFor maps the record's resources to sensors. Unknown resources get
// a unitless 0-100 sensor.
func sensorsFor(resources any) []sensor {
	var names []string
	switch v := resources.(type) {
	case []string:
		names = v
	case []any:
		for _, r := range v {
			names = append(names, fmt.Sprint(r))
		}
	case string:
		names = []string{v}
	}

	out := make([]sensor, 0, len(names))
	for _, name := range names {
		if s, ok := knownSensors[name]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, sensor{measure: name, min: 0, max: 100})
	}
	return out
}

// sample returns one reading rounded to one decimal.
func (s sensor) sample(rng *rand.Rand) float64 {
	v := s.min + rng.Float64()*(s.max-s.min)
	return math.Round(v*10) / 10
}

// publisher is the part of the MQTT client the agent publishes through.
type publisher interface {
	PublishDefault(topic string, payload []byte) error
}

// publishAll sends one reading per sensor and returns how many went out.
func publishAll(pub publisher, greenhouse, deviceID string, sensors []sensor, rng *rand.Rand, now time.Time) (int, error) {
	topics := mqtt.Topics{}
	sent := 0
	for _, s := range sensors {
		payload, err := peer.NewReading(s.measure, s.unit, s.sample(rng), now).Encode()
		if err != nil {
			return sent, fmt.Errorf("encoding %s: %w", s.measure, err)
		}
		if err := pub.PublishDefault(topics.Measurement(greenhouse, deviceID, s.measure), payload); err != nil {
			return sent, fmt.Errorf("publishing %s: %w", s.measure, err)
		}
		sent++
	}
	return sent, nil
}
