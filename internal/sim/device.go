package sim

import (
	"context"
	"sync"

	"aidotbridge/aidot"
)

// DeviceClient simulates one light. Status updates are pushed through an
// internal channel so ReadStatus blocks like the real client does.
type DeviceClient struct {
	info aidot.DeviceInfo

	mu       sync.Mutex
	status   aidot.Status
	loggedIn bool
	ip       string
	manualIP bool
	closed   bool

	nextReadErr error
	updates     chan aidot.Status
	sessionGone chan struct{}
}

func newDeviceClient(device aidot.Device) *DeviceClient {
	return &DeviceClient{
		info:        infoFromRecord(device),
		updates:     make(chan aidot.Status, 16),
		sessionGone: make(chan struct{}),
	}
}

func (d *DeviceClient) Info() aidot.DeviceInfo { return d.info }

func (d *DeviceClient) Status() aidot.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *DeviceClient) Login(_ context.Context) error {
	d.mu.Lock()
	d.loggedIn = true
	d.sessionGone = make(chan struct{})
	d.status.Online = true
	snapshot := d.status
	d.mu.Unlock()
	// A fresh session reports current state right away.
	d.push(snapshot)
	return nil
}

func (d *DeviceClient) ReadStatus(ctx context.Context) (aidot.Status, error) {
	d.mu.Lock()
	if err := d.nextReadErr; err != nil {
		d.nextReadErr = nil
		d.mu.Unlock()
		return aidot.Status{}, err
	}
	if !d.loggedIn {
		d.mu.Unlock()
		return aidot.Status{}, aidot.ErrNotLoggedIn
	}
	sessionGone := d.sessionGone
	d.mu.Unlock()

	select {
	case <-ctx.Done():
		return aidot.Status{}, ctx.Err()
	case <-sessionGone:
		return aidot.Status{}, aidot.ErrNotLoggedIn
	case status, ok := <-d.updates:
		if !ok {
			return aidot.Status{}, context.Canceled
		}
		d.mu.Lock()
		d.status = status
		d.mu.Unlock()
		return status, nil
	}
}

func (d *DeviceClient) TurnOn(_ context.Context) error {
	d.mutate(func(s *aidot.Status) { s.On = true })
	return nil
}

func (d *DeviceClient) TurnOff(_ context.Context) error {
	d.mutate(func(s *aidot.Status) { s.On = false })
	return nil
}

func (d *DeviceClient) SetDimming(_ context.Context, dimming int) error {
	if dimming < 0 {
		dimming = 0
	}
	if dimming > 255 {
		dimming = 255
	}
	d.mutate(func(s *aidot.Status) { s.Dimming = dimming })
	return nil
}

func (d *DeviceClient) SetCCT(_ context.Context, kelvin int) error {
	if d.info.CCTMin > 0 && kelvin < d.info.CCTMin {
		kelvin = d.info.CCTMin
	}
	if d.info.CCTMax > 0 && kelvin > d.info.CCTMax {
		kelvin = d.info.CCTMax
	}
	d.mutate(func(s *aidot.Status) { s.CCT = kelvin })
	return nil
}

func (d *DeviceClient) SetRGBW(_ context.Context, color aidot.RGBW) error {
	d.mutate(func(s *aidot.Status) { s.RGBW = color })
	return nil
}

func (d *DeviceClient) UpdateIPAddress(ip string, manual bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.manualIP && !manual {
		return
	}
	d.ip = ip
	d.manualIP = manual
}

// IPAddress returns the effective address and whether it was pinned
// manually. Test hook.
func (d *DeviceClient) IPAddress() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ip, d.manualIP
}

// ExpireSession drops the session: a blocked ReadStatus wakes with
// ErrNotLoggedIn, as does the next call. Test hook.
func (d *DeviceClient) ExpireSession() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loggedIn {
		return
	}
	d.loggedIn = false
	close(d.sessionGone)
}

// LoggedIn reports whether a session is established. Test hook.
func (d *DeviceClient) LoggedIn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loggedIn
}

// FailNextRead injects an error returned by the next ReadStatus call.
// Test hook.
func (d *DeviceClient) FailNextRead(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextReadErr = err
}

// PushStatus makes the device report a status as if it changed on its own.
func (d *DeviceClient) PushStatus(status aidot.Status) {
	d.push(status)
}

func (d *DeviceClient) mutate(apply func(*aidot.Status)) {
	d.mu.Lock()
	apply(&d.status)
	d.status.Online = true
	snapshot := d.status
	d.mu.Unlock()
	d.push(snapshot)
}

func (d *DeviceClient) push(status aidot.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.updates <- status:
	default:
		// Slow reader: drop the oldest update to keep the latest.
		select {
		case <-d.updates:
		default:
		}
		select {
		case d.updates <- status:
		default:
		}
	}
}

func (d *DeviceClient) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.updates)
}
