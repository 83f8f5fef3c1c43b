package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"aidotbridge/aidot"
	"aidotbridge/internal/lights"
)

const commandTimeout = 10 * time.Second

// broker is the slice of Session the binding needs; tests swap in fakes.
type broker interface {
	Subscribe(topic string, cb func([]byte)) (func(), error)
	PublishRetained(topic string, payload []byte) error
}

// StatePayload is the retained state document per light.
type StatePayload struct {
	Online          bool        `json:"online"`
	On              bool        `json:"on"`
	Brightness      int         `json:"brightness"`
	ColorTempKelvin int         `json:"color_temp,omitempty"`
	RGBW            *aidot.RGBW `json:"rgbw,omitempty"`
	ColorMode       string      `json:"color_mode"`
}

// Binding wires one light onto its state and set topics.
type Binding struct {
	session     broker
	light       *lights.Light
	stateTopic  string
	logger      zerolog.Logger
	unsubscribe func()
}

// Bind subscribes the light's command topic and returns the binding.
func Bind(session broker, prefix string, light *lights.Light, logger zerolog.Logger) (*Binding, error) {
	b := &Binding{
		session:    session,
		light:      light,
		stateTopic: fmt.Sprintf("%s/%s/state", prefix, light.ID()),
		logger:     logger.With().Str("device", light.ID()).Logger(),
	}

	setTopic := fmt.Sprintf("%s/%s/set", prefix, light.ID())
	unsubscribe, err := session.Subscribe(setTopic, b.handleCommand)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", setTopic, err)
	}
	b.unsubscribe = unsubscribe
	return b, nil
}

// PublishState publishes the retained state document for a status update.
func (b *Binding) PublishState(status aidot.Status) error {
	payload := StatePayload{
		Online:     status.Online,
		On:         status.On,
		Brightness: status.Dimming,
		ColorMode:  string(b.light.ColorMode()),
	}
	if b.light.Supports(lights.ModeColorTemp) {
		payload.ColorTempKelvin = status.CCT
	}
	if b.light.Supports(lights.ModeRGBW) {
		rgbw := status.RGBW
		payload.RGBW = &rgbw
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.session.PublishRetained(b.stateTopic, data)
}

func (b *Binding) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}

func (b *Binding) handleCommand(payload []byte) {
	cmd, err := lights.DecodeCommand(payload)
	if err != nil {
		b.logger.Warn().Err(err).Msg("bad set payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := b.light.Apply(ctx, cmd); err != nil {
		b.logger.Error().Err(err).Msg("set command failed")
	}
}
