package obsweb

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig says where and how to publish estimates over MQTT.
type MQTTConfig struct {
	Broker   string
	Port     int
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Timeout  time.Duration
}

// DefaultMQTTConfig publishes to a local broker.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:  "localhost",
		Port:    1883,
		Topic:   "fwobserver/estimate",
		QoS:     0,
		Timeout: 10 * time.Second,
	}
}

// MQTTPublisher publishes each estimate record as JSON to a topic.
type MQTTPublisher struct {
	config MQTTConfig
	client mqtt.Client
}

// NewMQTTPublisher connects to the broker in config.
func NewMQTTPublisher(config MQTTConfig) (*MQTTPublisher, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultMQTTConfig().Timeout
	}
	opts := mqtt.NewClientOptions()
	brokerURL := fmt.Sprintf("tcp://%s:%d", config.Broker, config.Port)
	opts.AddBroker(brokerURL)

	clientID := config.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("fwobserver-%d", time.Now().Unix())
	}
	opts.SetClientID(clientID)

	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(config.Timeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("ObsWeb: MQTT connection lost: %v (will auto-reconnect)\n", err)
	}

	p := &MQTTPublisher{config: config, client: mqtt.NewClient(opts)}

	log.Printf("ObsWeb: MQTT connecting to %s as %s\n", brokerURL, clientID)
	token := p.client.Connect()
	if !token.WaitTimeout(config.Timeout) {
		return nil, fmt.Errorf("MQTT connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connect failed: %w", err)
	}
	return p, nil
}

// Publish sends d to the configured topic without waiting for delivery.
func (p *MQTTPublisher) Publish(d *EstimateData) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	p.client.Publish(p.config.Topic, p.config.QoS, false, payload)
	return nil
}

// Close disconnects from the broker, allowing a second for in-flight messages.
func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(1000)
	}
	return nil
}
