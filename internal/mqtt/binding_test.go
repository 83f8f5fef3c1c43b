package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"aidotbridge/aidot"
	"aidotbridge/internal/lights"
	"aidotbridge/internal/sim"
)

type fakeBroker struct {
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
	f.subs[topic] = cb
	return func() { delete(f.subs, topic) }, nil
}

func (f *fakeBroker) PublishRetained(topic string, payload []byte) error {
	f.published[topic] = payload
	return nil
}

func rgbwLight(t *testing.T) (*sim.DeviceClient, *lights.Light) {
	t.Helper()
	client, err := sim.NewClient(nil)
	if err != nil {
		t.Fatalf("sim client: %v", err)
	}
	device := aidot.Device{
		ID:   "dev-1",
		Name: "Strip",
		Type: aidot.DeviceTypeLight,
		Product: &aidot.Product{
			ID: "prod-a",
			ServiceModules: []aidot.ServiceModule{
				{Identity: "control.light.rgbw"},
				{Identity: "control.light.cct"},
				{Identity: "control.light.dimming"},
			},
		},
	}
	dc := client.DeviceClient(device)
	if err := dc.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	return client.Device("dev-1"), lights.New(dc)
}

func TestBindingPublishState(t *testing.T) {
	_, light := rgbwLight(t)
	broker := newFakeBroker()

	binding, err := Bind(broker, "aidot", light, zerolog.Nop())
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer binding.Close()

	status := aidot.Status{
		Online:  true,
		On:      true,
		Dimming: 128,
		CCT:     3500,
		RGBW:    aidot.RGBW{255, 10, 0, 80},
	}
	if err := binding.PublishState(status); err != nil {
		t.Fatalf("publish: %v", err)
	}

	data, ok := broker.published["aidot/dev-1/state"]
	if !ok {
		t.Fatalf("state topic not published, got %v", broker.published)
	}

	var payload StatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if !payload.Online || !payload.On || payload.Brightness != 128 {
		t.Fatalf("payload: %+v", payload)
	}
	if payload.ColorMode != string(lights.ModeRGBW) {
		t.Fatalf("color mode: %s", payload.ColorMode)
	}
	if payload.RGBW == nil || payload.RGBW[0] != 255 || payload.RGBW[3] != 80 {
		t.Fatalf("rgbw: %+v", payload.RGBW)
	}
}

func TestBindingHandlesSetCommand(t *testing.T) {
	device, light := rgbwLight(t)
	broker := newFakeBroker()

	binding, err := Bind(broker, "aidot", light, zerolog.Nop())
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer binding.Close()

	cb, ok := broker.subs["aidot/dev-1/set"]
	if !ok {
		t.Fatalf("set topic not subscribed")
	}

	cb([]byte(`{"on":true,"brightness":200,"color_temp":4000}`))

	deadline := time.Now().Add(2 * time.Second)
	for {
		status := device.Status()
		if status.On && status.Dimming == 200 && status.CCT == 4000 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("command not applied, status %+v", status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cb([]byte(`{"on":false}`))
	deadline = time.Now().Add(2 * time.Second)
	for {
		if !device.Status().On {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("off command not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
