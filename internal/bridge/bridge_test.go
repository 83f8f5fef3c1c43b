package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"aidotbridge/aidot"
	"aidotbridge/internal/bootstrap"
	"aidotbridge/internal/config"
	"aidotbridge/internal/sim"
)

func strPtr(s string) *string { return &s }

func testPayload() *bootstrap.Payload {
	return &bootstrap.Payload{
		SchemaVersion: 1,
		LoginInfo:     aidot.LoginInfo{"accessToken": "t"},
		Devices: []aidot.Device{
			{
				ID: "lamp-1", Name: "Desk lamp", Type: aidot.DeviceTypeLight,
				ProductID: "prod-cct", AESKey: []*string{strPtr("key-1")},
			},
			{
				ID: "strip-1", Name: "TV strip", Type: aidot.DeviceTypeLight,
				ProductID: "prod-rgbw", AESKey: []*string{strPtr("key-2")},
			},
			{
				// No product record exists for this one.
				ID: "orphan-1", Name: "Orphan", Type: aidot.DeviceTypeLight,
				ProductID: "prod-missing", AESKey: []*string{strPtr("key-3")},
			},
			{
				// Missing AES key, unusable even with a product.
				ID: "keyless-1", Name: "Keyless", Type: aidot.DeviceTypeLight,
				ProductID: "prod-cct", AESKey: []*string{nil},
			},
		},
		Products: []aidot.Product{
			{ID: "prod-cct", ServiceModules: []aidot.ServiceModule{
				{Identity: "control.light.cct"},
				{Identity: "control.light.dimming"},
			}},
			{ID: "prod-rgbw", ServiceModules: []aidot.ServiceModule{
				{Identity: "control.light.rgbw"},
			}},
		},
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return cfg
}

func newTestBridge(t *testing.T, cfg *config.Config, broker Broker) (*Bridge, *sim.Client) {
	t.Helper()
	client, err := sim.NewClient(nil)
	if err != nil {
		t.Fatalf("sim client: %v", err)
	}
	b, err := New(Options{
		Config:  cfg,
		Payload: testPayload(),
		Client:  client,
		Broker:  broker,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	t.Cleanup(b.Close)
	return b, client
}

func TestBridgeBuildsUsableLightsOnly(t *testing.T) {
	b, client := newTestBridge(t, testConfig(), nil)

	got := b.Lights()
	if len(got) != 3 {
		t.Fatalf("expected 3 lights, got %d", len(got))
	}
	if got[0].ID() != "lamp-1" || got[1].ID() != "strip-1" || got[2].ID() != "orphan-1" {
		t.Fatalf("lights: %s, %s, %s", got[0].ID(), got[1].ID(), got[2].ID())
	}

	// Capabilities come from the cross-referenced product record.
	if !got[0].Supports("color_temp") || got[0].Supports("rgbw") {
		t.Fatalf("lamp modes: %v", got[0].SupportedColorModes())
	}
	if !got[1].Supports("rgbw") {
		t.Fatalf("strip modes: %v", got[1].SupportedColorModes())
	}

	// A device without a product record stays usable, it just carries no
	// capability flags and falls back to plain on/off.
	orphan := got[2]
	if orphan.Supports("rgbw") || orphan.Supports("color_temp") || !orphan.Supports("onoff") {
		t.Fatalf("orphan modes: %v", orphan.SupportedColorModes())
	}

	if client.Device("keyless-1") != nil {
		t.Fatalf("keyless device got a client")
	}
	if !client.Discovering() {
		t.Fatalf("discovery not started")
	}
}

func TestBridgeAppliesManualIPOverrides(t *testing.T) {
	cfg := testConfig()
	cfg.ManualIPs = map[string]string{
		"lamp-1":  "192.168.1.50", // known device, applied
		"strip-1": "",             // empty value, skipped
		"ghost-1": "192.168.1.99", // not in the device list, ignored
	}

	_, client := newTestBridge(t, cfg, nil)

	if ip, manual := client.Device("lamp-1").IPAddress(); ip != "192.168.1.50" || !manual {
		t.Fatalf("lamp ip = %q manual=%v", ip, manual)
	}
	if ip, manual := client.Device("strip-1").IPAddress(); ip != "" || manual {
		t.Fatalf("strip ip = %q manual=%v", ip, manual)
	}
	if client.Device("ghost-1") != nil {
		t.Fatalf("override created a client for an unknown device")
	}
}

type fakeBroker struct {
	mu        sync.Mutex
	subs      map[string]func([]byte)
	published map[string][]byte
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		subs:      make(map[string]func([]byte)),
		published: make(map[string][]byte),
	}
}

func (f *fakeBroker) Subscribe(topic string, cb func([]byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = cb
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, topic)
	}, nil
}

func (f *fakeBroker) PublishRetained(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = payload
	return nil
}

func (f *fakeBroker) lastPublished(topic string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[topic]
}

func TestBridgePublishesStatusToMQTT(t *testing.T) {
	broker := newFakeBroker()
	b, client := newTestBridge(t, testConfig(), broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	waitState := func(check func([]byte) bool) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for {
			if data := broker.lastPublished("aidot/lamp-1/state"); data != nil && check(data) {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("state never published")
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	// Login publishes the initial snapshot; let it land first so the
	// scripted push cannot be overtaken by it.
	waitState(func([]byte) bool { return true })

	client.Device("lamp-1").PushStatus(aidot.Status{Online: true, On: true, Dimming: 77})

	waitState(func(data []byte) bool {
		var payload struct {
			On         bool `json:"on"`
			Brightness int  `json:"brightness"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return payload.On && payload.Brightness == 77
	})

	cancel()
	b.Wait()
}
