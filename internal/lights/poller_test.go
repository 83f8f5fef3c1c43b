package lights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"aidotbridge/aidot"
	"aidotbridge/internal/sim"
)

func simLight(t *testing.T) (*sim.Client, *sim.DeviceClient, *Light) {
	t.Helper()
	client, err := sim.NewClient(nil)
	if err != nil {
		t.Fatalf("sim client: %v", err)
	}
	device := aidot.Device{
		ID:   "dev-1",
		Name: "Test light",
		Type: aidot.DeviceTypeLight,
		Product: &aidot.Product{
			ID:             "prod-a",
			ServiceModules: []aidot.ServiceModule{{Identity: "control.light.dimming"}},
		},
	}
	dc := client.DeviceClient(device)
	return client, client.Device("dev-1"), New(dc)
}

func waitStatus(t *testing.T, ch <-chan aidot.Status) aidot.Status {
	t.Helper()
	select {
	case status := <-ch:
		return status
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for status update")
		return aidot.Status{}
	}
}

func TestPollerDeliversUpdates(t *testing.T) {
	_, device, light := simLight(t)

	updates := make(chan aidot.Status, 8)
	sink := func(_ *Light, status aidot.Status) { updates <- status }
	poller := NewPoller(light, 10*time.Millisecond, sink, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	// Login publishes the initial snapshot.
	waitStatus(t, updates)

	device.PushStatus(aidot.Status{Online: true, On: true, Dimming: 42})
	got := waitStatus(t, updates)
	if !got.On || got.Dimming != 42 {
		t.Fatalf("unexpected status: %+v", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not stop on cancel")
	}
}

func TestPollerReloginsOnExpiredSession(t *testing.T) {
	_, device, light := simLight(t)

	updates := make(chan aidot.Status, 8)
	sink := func(_ *Light, status aidot.Status) { updates <- status }
	poller := NewPoller(light, 10*time.Millisecond, sink, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	waitStatus(t, updates)

	// Expire the session: the next read fails with ErrNotLoggedIn, the
	// poller re-authenticates and keeps going.
	device.ExpireSession()
	// Login pushes a snapshot, proving the loop survived.
	waitStatus(t, updates)

	if !device.LoggedIn() {
		t.Fatalf("poller did not re-login")
	}

	device.PushStatus(aidot.Status{Online: true, On: true})
	got := waitStatus(t, updates)
	if !got.On {
		t.Fatalf("unexpected status after re-login: %+v", got)
	}
}

func TestPollerPausesOnGenericFailure(t *testing.T) {
	_, device, light := simLight(t)

	updates := make(chan aidot.Status, 8)
	sink := func(_ *Light, status aidot.Status) { updates <- status }
	poller := NewPoller(light, 20*time.Millisecond, sink, zerolog.Nop())

	var failures int
	poller.OnFailure(func() { failures++ })

	// Inject before the first read: the loop hits the failure, pauses,
	// and only then drains the login snapshot.
	device.FailNextRead(errors.New("socket reset"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	start := time.Now()
	go poller.Run(ctx)

	got := waitStatus(t, updates)
	if !got.Online {
		t.Fatalf("unexpected status after failure: %+v", got)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("poller did not pause after failure (elapsed %s)", elapsed)
	}
	if failures != 1 {
		t.Fatalf("failures = %d, want 1", failures)
	}

	// And the loop is still alive.
	device.PushStatus(aidot.Status{Online: true, On: true, Dimming: 10})
	got = waitStatus(t, updates)
	if got.Dimming != 10 {
		t.Fatalf("unexpected status: %+v", got)
	}
}
