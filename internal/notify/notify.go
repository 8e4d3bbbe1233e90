// Package notify publishes a vehicle's current alert set after it changes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Publisher delivers alert snapshots for a single vehicle.
type Publisher interface {
	PublishAlerts(ctx context.Context, vehicleCode string, alerts []models.AlertEntry) error
}

// Noop discards every snapshot.
type Noop struct{}

func (Noop) PublishAlerts(context.Context, string, []models.AlertEntry) error { return nil }

// Message is the payload sent on the vehicle's alert topic. An empty
// Alerts list means the vehicle has nothing due.
type Message struct {
	VehicleCode string              `json:"vehicle_code"`
	GeneratedAt time.Time           `json:"generated_at"`
	Alerts      []models.AlertEntry `json:"alerts"`
}

// Topic returns the alert topic for a vehicle under prefix.
func Topic(prefix, vehicleCode string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + vehicleCode + "/alerts"
}

type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes retained QoS 1 messages so late subscribers see
// the latest snapshot.
type MQTTPublisher struct {
	client  client
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewMQTTPublisher connects to broker and returns a publisher.
func NewMQTTPublisher(broker, clientID, prefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	c := mqtt.NewClient(opts)
	t := c.Connect()
	if !t.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timeout", broker)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", broker, err)
	}
	log.WithFields(log.Fields{"broker": broker, "prefix": prefix}).Info("Connected to MQTT broker")
	return newMQTTPublisher(c, prefix), nil
}

func newMQTTPublisher(c client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: c, prefix: prefix, timeout: 5 * time.Second, now: time.Now}
}

// PublishAlerts sends the snapshot and waits for the broker ack or ctx.
func (p *MQTTPublisher) PublishAlerts(ctx context.Context, vehicleCode string, alerts []models.AlertEntry) error {
	if alerts == nil {
		alerts = []models.AlertEntry{}
	}
	payload, err := json.Marshal(Message{VehicleCode: vehicleCode, GeneratedAt: p.now().UTC(), Alerts: alerts})
	if err != nil {
		return fmt.Errorf("encode alerts: %w", err)
	}

	topic := Topic(p.prefix, vehicleCode)
	t := p.client.Publish(topic, 1, true, payload)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !t.WaitTimeout(timeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
