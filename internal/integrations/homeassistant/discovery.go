package homeassistant

import (
	"fmt"
	"strings"

	"faceid-kiosk/internal/integrations/mqtt"

	log "github.com/sirupsen/logrus"
)

// Konstanten für Home Assistant MQTT Discovery
const (
	// Standard-Präfix von Home Assistant
	DefaultDiscoveryPrefix = "homeassistant"

	// Component-Typ für Sensoren
	ComponentSensor = "sensor"
)

// SensorConfig repräsentiert die MQTT-Discovery-Konfiguration für einen Sensor in Home Assistant
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	ValueTemplate       string  `json:"value_template,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device repräsentiert die Geräteinformationen für Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// Broker ist der Teil des MQTT-Clients, den die Discovery braucht
type Broker interface {
	Topic(suffix string) string
	PublishMessage(topic string, payload interface{}, retain bool) error
}

// DiscoveryManager meldet die Kiosk-Sensoren bei Home Assistant an
type DiscoveryManager struct {
	broker  Broker
	prefix  string
	nodeID  string
	version string
}

// NewDiscoveryManager erstellt einen neuen Manager für Home Assistant Discovery.
// nodeID ist typischerweise die MQTT-Client-ID.
func NewDiscoveryManager(broker Broker, prefix, nodeID, version string) *DiscoveryManager {
	if prefix == "" {
		prefix = DefaultDiscoveryPrefix
	}
	return &DiscoveryManager{
		broker:  broker,
		prefix:  strings.TrimSuffix(prefix, "/"),
		nodeID:  sanitizeID(nodeID),
		version: version,
	}
}

// Sensors liefert die Discovery-Konfigurationen, indiziert nach Objekt-ID
func (dm *DiscoveryManager) Sensors() map[string]SensorConfig {
	device := &Device{
		Identifiers:  []string{dm.nodeID},
		Name:         "FaceID Kiosk",
		Manufacturer: "faceid-kiosk",
		Model:        "Registration and recognition kiosk",
		SWVersion:    dm.version,
	}
	availability := dm.broker.Topic(mqtt.TopicStatus)

	return map[string]SensorConfig{
		"last_recognition": {
			Name:                "Last recognition",
			UniqueID:            dm.nodeID + "_last_recognition",
			StateTopic:          dm.broker.Topic(mqtt.TopicRecognition),
			JSONAttributesTopic: dm.broker.Topic(mqtt.TopicRecognition),
			ValueTemplate:       "{{ value_json.name if value_json.outcome == 'matched' else value_json.outcome }}",
			Icon:                "mdi:face-recognition",
			AvailabilityTopic:   availability,
			PayloadAvailable:    mqtt.StatusOnline,
			PayloadNotAvailable: mqtt.StatusOffline,
			Device:              device,
		},
		"last_registration": {
			Name:                "Last registration",
			UniqueID:            dm.nodeID + "_last_registration",
			StateTopic:          dm.broker.Topic(mqtt.TopicRegistration),
			JSONAttributesTopic: dm.broker.Topic(mqtt.TopicRegistration),
			ValueTemplate:       "{{ value_json.name }}",
			Icon:                "mdi:account-plus",
			AvailabilityTopic:   availability,
			PayloadAvailable:    mqtt.StatusOnline,
			PayloadNotAvailable: mqtt.StatusOffline,
			Device:              device,
		},
	}
}

// ConfigTopic liefert das Discovery-Topic eines Sensors
func (dm *DiscoveryManager) ConfigTopic(objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", dm.prefix, ComponentSensor, dm.nodeID, objectID)
}

// RegisterSensors veröffentlicht alle Sensor-Konfigurationen (retained)
func (dm *DiscoveryManager) RegisterSensors() error {
	for objectID, sensor := range dm.Sensors() {
		topic := dm.ConfigTopic(objectID)
		log.Infof("Registering Home Assistant sensor %s", objectID)
		if err := dm.broker.PublishMessage(topic, sensor, true); err != nil {
			return fmt.Errorf("failed to publish discovery configuration: %w", err)
		}
	}
	return nil
}

// Home Assistant erlaubt in Node-IDs nur [a-zA-Z0-9_-]
func sanitizeID(id string) string {
	if id == "" {
		return "faceid_kiosk"
	}
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
