package lights

import (
	"context"
	"encoding/json"
	"fmt"

	"aidotbridge/aidot"
)

// Command is a requested state change, arriving over MQTT or HTTP.
// Absent fields leave the attribute untouched.
type Command struct {
	On              *bool       `json:"on"`
	Brightness      *int        `json:"brightness"`
	ColorTempKelvin *int        `json:"color_temp"`
	RGBW            *aidot.RGBW `json:"rgbw"`
}

// DecodeCommand parses a JSON command and rejects empty ones.
func DecodeCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if cmd.On == nil && cmd.Brightness == nil && cmd.ColorTempKelvin == nil && cmd.RGBW == nil {
		return Command{}, fmt.Errorf("empty command")
	}
	return cmd, nil
}

// Apply maps a command onto light operations. An explicit off wins over
// any attributes; everything else implies turning the light on first.
func (l *Light) Apply(ctx context.Context, cmd Command) error {
	if cmd.On != nil && !*cmd.On {
		return l.TurnOff(ctx)
	}
	return l.TurnOn(ctx, TurnOnOptions{
		Brightness:      cmd.Brightness,
		ColorTempKelvin: cmd.ColorTempKelvin,
		RGBW:            cmd.RGBW,
	})
}
