package aidot

// DeviceTypeLight marks device records this daemon can expose as lights.
const DeviceTypeLight = "light"

// Device is a device record as delivered by the vendor account export.
// Fields the daemon does not interpret stay close to the wire names.
type Device struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	ProductID       string    `json:"productId"`
	Mac             string    `json:"mac,omitempty"`
	ModelID         string    `json:"modelId,omitempty"`
	HardwareVersion string    `json:"hardwareVersion,omitempty"`
	AESKey          []*string `json:"aesKey,omitempty"`
	Product         *Product  `json:"product,omitempty"`
}

// HasAESKey reports whether the record carries a usable session key. The
// vendor delivers aesKey as an array whose first element may be null.
func (d Device) HasAESKey() bool {
	return len(d.AESKey) > 0 && d.AESKey[0] != nil
}

// Product is a product catalogue record cross-referenced onto devices.
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	ServiceModules []ServiceModule `json:"serviceModules,omitempty"`
}

// ServiceModule names one capability of a product (e.g. control.light.rgbw).
type ServiceModule struct {
	Identity string `json:"identity"`
}

// MergeProducts attaches product records to devices by product id. Devices
// without a matching product are left untouched.
func MergeProducts(devices []Device, products []Product) {
	for pi := range products {
		for di := range devices {
			if devices[di].ProductID == products[pi].ID {
				devices[di].Product = &products[pi]
			}
		}
	}
}

// UsableLights filters device records down to lights the daemon can drive:
// light-typed records that carry a session key.
func UsableLights(devices []Device) []Device {
	var out []Device
	for _, d := range devices {
		if d.Type != DeviceTypeLight {
			continue
		}
		if !d.HasAESKey() {
			continue
		}
		out = append(out, d)
	}
	return out
}
