package messaging

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	kafkago "github.com/segmentio/kafka-go"

	"kitchenedge/config"
)

// Client is the unified messaging client (MQTT, Kafka, NATS or AMQP).
type Client struct {
	mu       sync.RWMutex
	cfg      *config.MessagingConfig
	clientID string
	backend  string

	mqttConn mqtt.Client

	kafkaW       *kafkago.Writer
	kafkaReaders []*kafkago.Reader

	natsConn *nats.Conn

	amqpConn *amqp.Connection
	amqpCh   *amqp.Channel
}

// NewClient creates a messaging client based on config.
func NewClient(cfg *config.MessagingConfig, clientID string) *Client {
	return &Client{
		cfg:      cfg,
		clientID: clientID,
		backend:  cfg.Backend,
	}
}

// Backend returns the configured backend name.
func (c *Client) Backend() string { return c.backend }

// Connect establishes the messaging connection.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.backend {
	case "mqtt":
		return c.connectMQTT()
	case "kafka":
		return c.connectKafka()
	case "nats":
		return c.connectNATS()
	case "amqp":
		return c.connectAMQP()
	default:
		return fmt.Errorf("unknown messaging backend: %s", c.backend)
	}
}

func (c *Client) connectMQTT() error {
	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.MQTT.Broker, c.cfg.MQTT.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.mqttConn = client
	return nil
}

func (c *Client) connectKafka() error {
	if len(c.cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}
	c.kafkaW = &kafkago.Writer{
		Addr:         kafkago.TCP(c.cfg.Kafka.Brokers...),
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return nil
}

func (c *Client) connectNATS() error {
	conn, err := nats.Connect(c.cfg.NATS.URL,
		nats.Name(c.clientID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(5*time.Second),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	c.natsConn = conn
	return nil
}

func (c *Client) connectAMQP() error {
	conn, err := amqp.Dial(c.cfg.AMQP.URL)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(c.cfg.AMQP.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqp declare exchange %s: %w", c.cfg.AMQP.Exchange, err)
	}
	c.amqpConn = conn
	c.amqpCh = ch
	return nil
}

// Publish sends a message to the given topic.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.backend {
	case "mqtt":
		if c.mqttConn == nil || !c.mqttConn.IsConnected() {
			return fmt.Errorf("mqtt not connected")
		}
		token := c.mqttConn.Publish(topic, 1, false, payload)
		token.Wait()
		return token.Error()
	case "kafka":
		if c.kafkaW == nil {
			return fmt.Errorf("kafka writer not initialized")
		}
		return c.kafkaW.WriteMessages(context.Background(), kafkago.Message{
			Topic: topic,
			Value: payload,
		})
	case "nats":
		if c.natsConn == nil {
			return fmt.Errorf("nats not connected")
		}
		return c.natsConn.Publish(topic, payload)
	case "amqp":
		if c.amqpCh == nil {
			return fmt.Errorf("amqp not connected")
		}
		return c.amqpCh.PublishWithContext(context.Background(), c.cfg.AMQP.Exchange, topic, false, false, amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now().UTC(),
			Body:        payload,
		})
	default:
		return fmt.Errorf("unknown backend: %s", c.backend)
	}
}

// PublishEnvelope encodes and publishes a protocol envelope to the given topic.
func (c *Client) PublishEnvelope(topic string, env interface{ Encode() ([]byte, error) }) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return c.Publish(topic, data)
}

// Subscribe registers a handler for messages on topic.
func (c *Client) Subscribe(topic string, handler func(payload []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.backend {
	case "mqtt":
		if c.mqttConn == nil {
			return fmt.Errorf("mqtt not connected")
		}
		token := c.mqttConn.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			handler(msg.Payload())
		})
		token.Wait()
		return token.Error()
	case "kafka":
		r := kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: c.cfg.Kafka.Brokers,
			Topic:   topic,
			GroupID: c.clientID,
		})
		c.kafkaReaders = append(c.kafkaReaders, r)
		go func() {
			for {
				msg, err := r.ReadMessage(context.Background())
				if err != nil {
					log.Printf("kafka read %s: %v", topic, err)
					return
				}
				handler(msg.Value)
			}
		}()
		return nil
	case "nats":
		if c.natsConn == nil {
			return fmt.Errorf("nats not connected")
		}
		_, err := c.natsConn.Subscribe(topic, func(msg *nats.Msg) {
			handler(msg.Data)
		})
		return err
	case "amqp":
		return c.subscribeAMQP(topic, handler)
	default:
		return fmt.Errorf("unknown backend: %s", c.backend)
	}
}

func (c *Client) subscribeAMQP(topic string, handler func([]byte)) error {
	if c.amqpCh == nil {
		return fmt.Errorf("amqp not connected")
	}
	q, err := c.amqpCh.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("amqp declare queue: %w", err)
	}
	if err := c.amqpCh.QueueBind(q.Name, topic, c.cfg.AMQP.Exchange, false, nil); err != nil {
		return fmt.Errorf("amqp bind %s: %w", topic, err)
	}
	deliveries, err := c.amqpCh.Consume(q.Name, c.clientID+"-"+topic, true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}
	go func() {
		for d := range deliveries {
			handler(d.Body)
		}
		log.Printf("amqp: consumer for %s closed", topic)
	}()
	return nil
}

// IsConnected returns whether the messaging client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.backend {
	case "mqtt":
		return c.mqttConn != nil && c.mqttConn.IsConnected()
	case "kafka":
		return c.kafkaW != nil
	case "nats":
		return c.natsConn != nil && c.natsConn.IsConnected()
	case "amqp":
		return c.amqpConn != nil && !c.amqpConn.IsClosed()
	default:
		return false
	}
}

// Close shuts down the messaging connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mqttConn != nil {
		c.mqttConn.Disconnect(1000)
		c.mqttConn = nil
	}
	if c.kafkaW != nil {
		c.kafkaW.Close()
		c.kafkaW = nil
	}
	for _, r := range c.kafkaReaders {
		r.Close()
	}
	c.kafkaReaders = nil
	if c.natsConn != nil {
		c.natsConn.Drain()
		c.natsConn = nil
	}
	if c.amqpCh != nil {
		c.amqpCh.Close()
		c.amqpCh = nil
	}
	if c.amqpConn != nil {
		c.amqpConn.Close()
		c.amqpConn = nil
	}
}
