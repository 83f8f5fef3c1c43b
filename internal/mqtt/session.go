// Package mqtt exposes lights on an MQTT broker: retained state topics,
// command topics, and a bridge availability topic with a last-will.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const connectTimeout = 10 * time.Second

// Config describes the broker connection.
type Config struct {
	Broker      string
	Port        int
	TLS         bool
	Username    string
	Password    string
	TopicPrefix string
}

// Session wraps the paho client with refcounted subscriptions that are
// restored after a reconnect.
type Session struct {
	client mqtt.Client
	prefix string

	mu     sync.Mutex
	subs   map[string]map[int]func([]byte)
	nextID int
}

// Dial connects to the broker. The availability topic flips to offline
// via last-will when the session drops.
func Dial(cfg Config) (*Session, error) {
	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker, cfg.Port))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID("aidotbridge-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(availabilityTopic(cfg.TopicPrefix), "offline", 0, true)

	s := &Session{prefix: cfg.TopicPrefix, subs: make(map[string]map[int]func([]byte))}
	opts.SetDefaultPublishHandler(s.dispatch)
	opts.OnConnect = func(_ mqtt.Client) {
		s.resubscribeAll()
		s.publishAvailability("online")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	s.client = client
	return s, nil
}

// Prefix returns the configured topic prefix.
func (s *Session) Prefix() string { return s.prefix }

func (s *Session) Subscribe(topic string, cb func([]byte)) (func(), error) {
	s.mu.Lock()
	if s.subs[topic] == nil {
		s.subs[topic] = make(map[int]func([]byte))
	}
	id := s.nextID
	s.nextID++
	s.subs[topic][id] = cb
	needSubscribe := len(s.subs[topic]) == 1
	s.mu.Unlock()

	if needSubscribe {
		if token := s.client.Subscribe(topic, 0, nil); token.Wait() && token.Error() != nil {
			return nil, token.Error()
		}
	}

	return func() {
		s.mu.Lock()
		callbacks := s.subs[topic]
		if callbacks == nil {
			s.mu.Unlock()
			return
		}
		delete(callbacks, id)
		shouldUnsub := len(callbacks) == 0
		if shouldUnsub {
			delete(s.subs, topic)
		}
		s.mu.Unlock()
		if shouldUnsub {
			_ = s.client.Unsubscribe(topic).Wait()
		}
	}, nil
}

// PublishRetained publishes a retained message.
func (s *Session) PublishRetained(topic string, payload []byte) error {
	if token := s.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (s *Session) Close() {
	s.publishAvailability("offline")
	s.client.Disconnect(250)
}

func (s *Session) publishAvailability(state string) {
	_ = s.client.Publish(availabilityTopic(s.prefix), 0, true, state).Wait()
}

func (s *Session) dispatch(_ mqtt.Client, msg mqtt.Message) {
	s.mu.Lock()
	callbacks := s.subs[msg.Topic()]
	list := make([]func([]byte), 0, len(callbacks))
	for _, cb := range callbacks {
		list = append(list, cb)
	}
	s.mu.Unlock()
	for _, cb := range list {
		cb(msg.Payload())
	}
}

func (s *Session) resubscribeAll() {
	s.mu.Lock()
	topics := make([]string, 0, len(s.subs))
	for topic := range s.subs {
		topics = append(topics, topic)
	}
	s.mu.Unlock()
	for _, topic := range topics {
		_ = s.client.Subscribe(topic, 0, nil).Wait()
	}
}

func availabilityTopic(prefix string) string {
	return prefix + "/bridge/availability"
}
