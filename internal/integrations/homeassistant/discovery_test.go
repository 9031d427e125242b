package homeassistant

import (
	"errors"
	"testing"

	"faceid-kiosk/internal/integrations/mqtt"
)

type published struct {
	topic   string
	payload interface{}
	retain  bool
}

type fakeBroker struct {
	msgs []published
	err  error
}

func (f *fakeBroker) Topic(suffix string) string { return "faceid/" + suffix }

func (f *fakeBroker) PublishMessage(topic string, payload interface{}, retain bool) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{topic, payload, retain})
	return nil
}

func TestRegisterSensors(t *testing.T) {
	broker := &fakeBroker{}
	dm := NewDiscoveryManager(broker, "", "kiosk.lobby", "1.0.0")

	if err := dm.RegisterSensors(); err != nil {
		t.Fatalf("RegisterSensors: %v", err)
	}
	if len(broker.msgs) != 2 {
		t.Fatalf("Expected 2 discovery messages, got %d", len(broker.msgs))
	}

	byTopic := make(map[string]SensorConfig)
	for _, m := range broker.msgs {
		if !m.retain {
			t.Errorf("Discovery message on %s is not retained", m.topic)
		}
		byTopic[m.topic] = m.payload.(SensorConfig)
	}

	sensor, ok := byTopic["homeassistant/sensor/kiosk_lobby/last_recognition/config"]
	if !ok {
		t.Fatalf("Missing recognition sensor, got topics %v", byTopic)
	}
	if sensor.StateTopic != "faceid/"+mqtt.TopicRecognition {
		t.Errorf("Unexpected state topic %q", sensor.StateTopic)
	}
	if sensor.AvailabilityTopic != "faceid/"+mqtt.TopicStatus {
		t.Errorf("Unexpected availability topic %q", sensor.AvailabilityTopic)
	}
	if sensor.Device == nil || sensor.Device.SWVersion != "1.0.0" {
		t.Errorf("Unexpected device %+v", sensor.Device)
	}
	if _, ok := byTopic["homeassistant/sensor/kiosk_lobby/last_registration/config"]; !ok {
		t.Error("Missing registration sensor")
	}
}

func TestRegisterSensorsError(t *testing.T) {
	dm := NewDiscoveryManager(&fakeBroker{err: errors.New("not connected")}, "ha/", "", "")
	if err := dm.RegisterSensors(); err == nil {
		t.Fatal("Expected error")
	}
	if got := dm.ConfigTopic("x"); got != "ha/sensor/faceid_kiosk/x/config" {
		t.Errorf("Unexpected config topic %q", got)
	}
}
