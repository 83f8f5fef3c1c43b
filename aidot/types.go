package aidot

import "strings"

// DeviceInfo is the static description a device client exposes once it has
// a device record.
type DeviceInfo struct {
	DevID           string
	Name            string
	Mac             string
	ModelID         string
	HardwareVersion string

	EnableRGBW    bool
	EnableCCT     bool
	EnableDimming bool

	// CCTMin/CCTMax bound the supported color temperature in Kelvin.
	// Zero when the device has no tunable white channel.
	CCTMin int
	CCTMax int
}

// Manufacturer is the model id up to the first dot.
func (i DeviceInfo) Manufacturer() string {
	manufacturer, _, _ := strings.Cut(i.ModelID, ".")
	return manufacturer
}

// Model is the model id after the first dot, empty when there is none.
func (i DeviceInfo) Model() string {
	_, model, _ := strings.Cut(i.ModelID, ".")
	return model
}

// RGBW is a red/green/blue/white color tuple, each channel 0..255.
type RGBW [4]uint8

// Status is a point-in-time device status snapshot.
type Status struct {
	Online  bool
	On      bool
	Dimming int // brightness 0..255
	CCT     int // color temperature in Kelvin, 0 when not set
	RGBW    RGBW
}
