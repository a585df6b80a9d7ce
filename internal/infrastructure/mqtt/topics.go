package mqtt

import (
	"fmt"
	"strings"
)

// Topic roots. Measurements and status live under separate depths so a
// measurement subscriber never receives status traffic.
const (
	// TopicPrefix is the base for all greenhouse traffic.
	TopicPrefix = "greenhouse"

	// TopicPrefixStatus is the base for per-process online/offline status.
	TopicPrefixStatus = "greenhouse/status"
)

// measurementTopicLevels is greenhouse/{greenhouse}/{device}/{measure}.
const measurementTopicLevels = 4

// Topics provides builders for greenhouse MQTT topics.
//
//	topics := mqtt.Topics{}
//	topic := topics.Measurement("3", "12", "temperature")
//	// Returns: "greenhouse/3/12/temperature"
type Topics struct{}

// Measurement returns the topic a device agent publishes one measure on.
//
// Example: greenhouse/3/12/temperature
func (Topics) Measurement(greenhouse, deviceID, measure string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefix, greenhouse, deviceID, measure)
}

// AllMeasurements returns a pattern matching every measurement topic.
//
// Pattern: greenhouse/+/+/+
func (Topics) AllMeasurements() string {
	return TopicPrefix + "/+/+/+"
}

// GreenhouseMeasurements returns a pattern matching one greenhouse's measurements.
//
// Pattern: greenhouse/3/+/+
func (Topics) GreenhouseMeasurements(greenhouse string) string {
	return fmt.Sprintf("%s/%s/+/+", TopicPrefix, greenhouse)
}

// Status returns the retained status topic of one process.
//
// Example: greenhouse/status/catalog
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixStatus, clientID)
}

// AllStatus returns a pattern matching every process status topic.
//
// Pattern: greenhouse/status/+
func (Topics) AllStatus() string {
	return TopicPrefixStatus + "/+"
}

// ParseMeasurement splits a measurement topic into its parts.
// ok is false for anything that is not greenhouse/{gh}/{device}/{measure}.
func ParseMeasurement(topic string) (greenhouse, deviceID, measure string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != measurementTopicLevels || parts[0] != TopicPrefix {
		return "", "", "", false
	}
	if parts[1] == "status" {
		return "", "", "", false
	}
	for _, p := range parts[1:] {
		if p == "" {
			return "", "", "", false
		}
	}
	return parts[1], parts[2], parts[3], true
}
