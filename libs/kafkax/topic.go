package kafkax

import "strings"

// Topic prefixes an event type with an optional environment prefix
// ("staging." + "scheduling.appointment.reserved.v1").
func Topic(prefix, eventType string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return eventType
	}
	return strings.TrimSuffix(prefix, ".") + "." + eventType
}

// SplitBrokers parses a KAFKA_BROKERS style list.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
