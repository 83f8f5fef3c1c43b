// Package lights adapts aidot device clients into controllable light
// entities: capability-derived color modes, status properties, and the
// per-device status polling loop.
package lights

import (
	"context"

	"aidotbridge/aidot"
)

// ColorMode identifies how a light is currently being controlled.
type ColorMode string

const (
	ModeOnOff      ColorMode = "onoff"
	ModeBrightness ColorMode = "brightness"
	ModeColorTemp  ColorMode = "color_temp"
	ModeRGBW       ColorMode = "rgbw"
)

// Light is one controllable light backed by a device client.
type Light struct {
	client    aidot.DeviceClient
	info      aidot.DeviceInfo
	supported map[ColorMode]bool
	mode      ColorMode
}

// New builds a Light from its device client. Color modes derive from the
// device capability flags: RGBW and tunable white stand alone; plain
// on/off lights gain a brightness mode only when they can dim.
func New(client aidot.DeviceClient) *Light {
	info := client.Info()

	supported := make(map[ColorMode]bool)
	if info.EnableRGBW {
		supported[ModeRGBW] = true
	}
	if info.EnableCCT {
		supported[ModeColorTemp] = true
	}
	if len(supported) == 0 {
		supported[ModeOnOff] = true
		if info.EnableDimming {
			supported[ModeBrightness] = true
		}
	}

	var mode ColorMode
	switch {
	case supported[ModeRGBW]:
		mode = ModeRGBW
	case supported[ModeColorTemp]:
		mode = ModeColorTemp
	case supported[ModeBrightness]:
		mode = ModeBrightness
	default:
		mode = ModeOnOff
	}

	return &Light{client: client, info: info, supported: supported, mode: mode}
}

func (l *Light) ID() string   { return l.info.DevID }
func (l *Light) Name() string { return l.info.Name }

func (l *Light) Info() aidot.DeviceInfo { return l.info }

// ColorMode returns the active color mode, picked by precedence
// RGBW > color temperature > brightness > on/off.
func (l *Light) ColorMode() ColorMode { return l.mode }

// SupportedColorModes lists the supported modes in precedence order.
func (l *Light) SupportedColorModes() []ColorMode {
	var out []ColorMode
	for _, mode := range []ColorMode{ModeRGBW, ModeColorTemp, ModeBrightness, ModeOnOff} {
		if l.supported[mode] {
			out = append(out, mode)
		}
	}
	return out
}

// Supports reports whether the light supports the given color mode.
func (l *Light) Supports(mode ColorMode) bool { return l.supported[mode] }

// Status returns the last known device status snapshot.
func (l *Light) Status() aidot.Status { return l.client.Status() }

// Available reports whether the device is reachable.
func (l *Light) Available() bool { return l.client.Status().Online }

func (l *Light) IsOn() bool { return l.client.Status().On }

// Brightness is the current brightness, 0..255.
func (l *Light) Brightness() int { return l.client.Status().Dimming }

// ColorTempKelvin is the current color temperature in Kelvin.
func (l *Light) ColorTempKelvin() int { return l.client.Status().CCT }

// MinColorTempKelvin is the warmest supported color temperature.
func (l *Light) MinColorTempKelvin() int { return l.info.CCTMin }

// MaxColorTempKelvin is the coldest supported color temperature.
func (l *Light) MaxColorTempKelvin() int { return l.info.CCTMax }

func (l *Light) RGBW() aidot.RGBW { return l.client.Status().RGBW }

// TurnOnOptions carries the optional attributes applied with a turn-on.
type TurnOnOptions struct {
	Brightness      *int
	ColorTempKelvin *int
	RGBW            *aidot.RGBW
}

// TurnOn switches the light on (skipped when already on) and then applies
// each provided attribute in turn.
func (l *Light) TurnOn(ctx context.Context, opts TurnOnOptions) error {
	if !l.IsOn() {
		if err := l.client.TurnOn(ctx); err != nil {
			return err
		}
	}
	if opts.Brightness != nil {
		if err := l.client.SetDimming(ctx, *opts.Brightness); err != nil {
			return err
		}
	}
	if opts.ColorTempKelvin != nil {
		if err := l.client.SetCCT(ctx, *opts.ColorTempKelvin); err != nil {
			return err
		}
	}
	if opts.RGBW != nil {
		if err := l.client.SetRGBW(ctx, *opts.RGBW); err != nil {
			return err
		}
	}
	return nil
}

func (l *Light) TurnOff(ctx context.Context) error {
	return l.client.TurnOff(ctx)
}

// Client exposes the underlying device client for the poller.
func (l *Light) Client() aidot.DeviceClient { return l.client }
