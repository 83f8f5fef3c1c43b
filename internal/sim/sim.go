// Package sim is an in-memory stand-in for a real AiDot device client.
// It implements the aidot contract with scripted devices so the daemon can
// run without hardware and tests can drive the glue deterministically.
package sim

import (
	"strings"
	"sync"

	"aidotbridge/aidot"
)

const (
	defaultCCTMin = 2700
	defaultCCTMax = 6500
)

// Client implements aidot.Client over simulated devices.
type Client struct {
	mu          sync.Mutex
	devices     map[string]*DeviceClient
	discovering bool
	closed      bool
}

// NewClient builds a simulated account client. The login payload is
// accepted as-is, matching the opaque pass-through contract.
func NewClient(_ aidot.LoginInfo) (*Client, error) {
	return &Client{devices: make(map[string]*DeviceClient)}, nil
}

func (c *Client) DeviceClient(device aidot.Device) aidot.DeviceClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dc, ok := c.devices[device.ID]; ok {
		return dc
	}
	dc := newDeviceClient(device)
	c.devices[device.ID] = dc
	return dc
}

// Device returns the simulated device client for test scripting, nil when
// the bridge never asked for it.
func (c *Client) Device(id string) *DeviceClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devices[id]
}

func (c *Client) StartDiscover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discovering = true
}

// Discovering reports whether StartDiscover was called.
func (c *Client) Discovering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discovering
}

func (c *Client) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, dc := range c.devices {
		dc.close()
	}
	return nil
}

// infoFromRecord derives the static device description the way a real
// client would: capability flags come from the product service modules.
func infoFromRecord(device aidot.Device) aidot.DeviceInfo {
	info := aidot.DeviceInfo{
		DevID:           device.ID,
		Name:            device.Name,
		Mac:             device.Mac,
		ModelID:         device.ModelID,
		HardwareVersion: device.HardwareVersion,
	}
	if device.Product != nil {
		for _, module := range device.Product.ServiceModules {
			switch {
			case strings.HasSuffix(module.Identity, ".rgbw"):
				info.EnableRGBW = true
			case strings.HasSuffix(module.Identity, ".cct"):
				info.EnableCCT = true
			case strings.HasSuffix(module.Identity, ".dimming"):
				info.EnableDimming = true
			}
		}
	}
	if info.EnableCCT {
		info.CCTMin = defaultCCTMin
		info.CCTMax = defaultCCTMax
	}
	return info
}
