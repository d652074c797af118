package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"queue-watch-go/internal/config"
	"queue-watch-go/internal/core/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Client publishes queue counts to an MQTT broker for home-automation and
// signage consumers. It is publish-only.
type Client struct {
	config config.MQTTConfig
	client mqtt.Client
}

// CountMessage is the payload published for each successful capture.
type CountMessage struct {
	CaptureID   uint      `json:"capture_id"`
	CameraID    int       `json:"camera_id"`
	PeopleCount int       `json:"people_count"`
	CapturedAt  time.Time `json:"captured_at"`
}

// NewClient creates a new MQTT client.
func NewClient(cfg config.MQTTConfig) *Client {
	return &Client{config: cfg}
}

// Start connects to the broker. Disabled configuration is a no-op.
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.Info("MQTT publisher is disabled in configuration")
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

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Errorf("MQTT connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Infof("Connected to MQTT broker at %s", brokerURL)
	})

	c.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Stop disconnects from the broker.
func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		c.client.Disconnect(250)
	}
}

// IsConnected reports whether the client currently holds a connection.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// PublishCount publishes the latest count as a retained message, so late
// subscribers immediately see the current queue length.
func (c *Client) PublishCount(capture *models.Capture) error {
	if c == nil || !c.config.Enabled {
		return nil
	}
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}
	if capture.Status != models.StatusOK || capture.PeopleCount == nil {
		return nil
	}

	payload, err := json.Marshal(CountMessage{
		CaptureID:   capture.ID,
		CameraID:    capture.CameraID,
		PeopleCount: *capture.PeopleCount,
		CapturedAt:  capture.CapturedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal count message: %w", err)
	}

	token := c.client.Publish(c.config.Topic, 1, true, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", c.config.Topic, token.Error())
	}

	log.Debugf("Published count to topic %s", c.config.Topic)
	return nil
}
