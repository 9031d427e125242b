package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"faceid-kiosk/config"
	"faceid-kiosk/internal/kiosk"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Topic-Suffixe unterhalb des konfigurierten Präfixes
const (
	TopicStatus       = "status"
	TopicRegistration = "registration"
	TopicRecognition  = "recognition"
	TopicCommand      = "command"
)

// Payloads des Status-Topics
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// MessageHandler verarbeitet eingehende MQTT-Nachrichten
type MessageHandler interface {
	HandleMessage(topic string, payload []byte)
}

// Client veröffentlicht Kiosk-Ereignisse und nimmt Kommandos entgegen
type Client struct {
	config config.MQTTConfig
	client mqtt.Client

	mu       sync.RWMutex
	handlers []MessageHandler
}

// NewClient erstellt einen neuen MQTT-Client
func NewClient(cfg config.MQTTConfig) *Client {
	return &Client{
		config:   cfg,
		handlers: make([]MessageHandler, 0),
	}
}

// Topic baut den vollständigen Topic-Namen aus Präfix und Suffix
func (c *Client) Topic(suffix string) string {
	prefix := strings.TrimSuffix(c.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return prefix + "/" + suffix
}

// RegisterHandler registriert einen Handler für Kommandos
func (c *Client) RegisterHandler(handler MessageHandler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, handler)
	c.mu.Unlock()
	log.Debug("Registered new MQTT message handler")
}

// Start verbindet den Client mit dem Broker
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.Info("MQTT client is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()

	brokerURL := fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.config.ClientID)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	// Broker meldet "offline", wenn der Kiosk verschwindet
	opts.SetWill(c.Topic(TopicStatus), StatusOffline, 1, true)

	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetConnectionLostHandler(c.connectionLostHandler)

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	c.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to connect to MQTT broker: %v", token.Error())
		return token.Error()
	}

	log.Info("MQTT client connected successfully")
	return nil
}

// Stop meldet den Kiosk ab und trennt die Verbindung
func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		if err := c.PublishMessage(c.Topic(TopicStatus), StatusOffline, true); err != nil {
			log.WithError(err).Warn("Failed to publish offline status")
		}
		c.client.Disconnect(250)
		log.Info("MQTT client disconnected")
	}
}

// IsConnected prüft, ob der Client verbunden ist
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

func (c *Client) onConnectHandler(client mqtt.Client) {
	log.Infof("Connected to MQTT broker at %s:%d", c.config.Broker, c.config.Port)

	if token := client.Publish(c.Topic(TopicStatus), 1, true, StatusOnline); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to publish online status: %v", token.Error())
	}

	topic := c.Topic(TopicCommand) + "/#"
	log.Infof("Subscribing to MQTT topic: %s", topic)
	if token := client.Subscribe(topic, 1, c.messageHandler); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to subscribe to topic %s: %v", topic, token.Error())
	}
}

func (c *Client) connectionLostHandler(client mqtt.Client, err error) {
	log.Errorf("MQTT connection lost: %v", err)
}

func (c *Client) messageHandler(client mqtt.Client, msg mqtt.Message) {
	c.dispatch(msg.Topic(), msg.Payload())
}

// dispatch leitet eine Nachricht an alle Handler weiter
func (c *Client) dispatch(topic string, payload []byte) {
	log.Debugf("Received MQTT message on topic: %s", topic)

	c.mu.RLock()
	handlers := append([]MessageHandler(nil), c.handlers...)
	c.mu.RUnlock()

	for _, handler := range handlers {
		go handler.HandleMessage(topic, payload)
	}
}

// PublishMessage veröffentlicht eine Nachricht an ein MQTT-Topic
func (c *Client) PublishMessage(topic string, payload interface{}, retain bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	payloadBytes, err := encodePayload(payload)
	if err != nil {
		return err
	}

	token := c.client.Publish(topic, 1, retain, payloadBytes)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, token.Error())
	}

	log.Debugf("Published message to topic: %s", topic)
	return nil
}

func encodePayload(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return []byte(fmt.Sprintf("%v", p)), nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload to JSON: %w", err)
		}
		return b, nil
	}
}

// PublishRegistration meldet eine erfolgreiche Registrierung.
func (c *Client) PublishRegistration(ev kiosk.RegistrationEvent) error {
	if !c.config.Enabled {
		return nil
	}
	return c.PublishMessage(c.Topic(TopicRegistration), ev, c.config.Retain)
}

// PublishRecognition meldet das Ergebnis einer Erkennung.
func (c *Client) PublishRecognition(ev kiosk.RecognitionEvent) error {
	if !c.config.Enabled {
		return nil
	}
	return c.PublishMessage(c.Topic(TopicRecognition), ev, c.config.Retain)
}
