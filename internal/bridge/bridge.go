// Package bridge assembles the daemon: it cross-references the bootstrap
// device and product lists, opens the backend client, applies manual IP
// overrides, and runs one status poller per usable light, fanning updates
// out to MQTT and the history ledger.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"aidotbridge/aidot"
	"aidotbridge/internal/backends"
	"aidotbridge/internal/bootstrap"
	"aidotbridge/internal/config"
	"aidotbridge/internal/ledger"
	"aidotbridge/internal/lights"
	"aidotbridge/internal/mqtt"
)

const recordTimeout = 5 * time.Second

// Broker is the MQTT surface the bridge publishes through. Nil disables
// MQTT entirely.
type Broker interface {
	Subscribe(topic string, cb func([]byte)) (func(), error)
	PublishRetained(topic string, payload []byte) error
}

// Options carries everything New needs. Client overrides the backend
// lookup, which tests use to inject a scripted client.
type Options struct {
	Config  *config.Config
	Payload *bootstrap.Payload
	Client  aidot.Client
	Broker  Broker
	Ledger  *ledger.Ledger
	Logger  zerolog.Logger
}

// Bridge owns the backend client and the per-light machinery.
type Bridge struct {
	client    aidot.Client
	lights    []*lights.Light
	collector *lights.Collector
	pollers   []*lights.Poller
	bindings  []*mqtt.Binding

	ledger *ledger.Ledger
	logger zerolog.Logger

	wg sync.WaitGroup
}

// New builds the bridge from a loaded config and bootstrap payload.
//
// Records that are not lights or lack a usable AES key are skipped; a
// missing product record only costs the device its capability flags.
// Manual IP overrides apply solely to devices that actually appear in the
// bootstrap device list.
func New(opts Options) (*Bridge, error) {
	cfg := opts.Config
	payload := opts.Payload

	aidot.MergeProducts(payload.Devices, payload.Products)
	usable := aidot.UsableLights(payload.Devices)

	client := opts.Client
	if client == nil {
		var err error
		client, err = backends.Open(cfg.Backend, payload.LoginInfo)
		if err != nil {
			return nil, fmt.Errorf("open backend: %w", err)
		}
	}

	b := &Bridge{
		client: client,
		ledger: opts.Ledger,
		logger: opts.Logger,
	}

	for _, device := range usable {
		dc := client.DeviceClient(device)
		if ip, ok := cfg.ManualIPs[device.ID]; ok && ip != "" {
			b.logger.Info().Str("device", device.ID).Str("ip", ip).Msg("pinning manual IP")
			dc.UpdateIPAddress(ip, true)
		}
		light := lights.New(dc)
		b.lights = append(b.lights, light)

		var binding *mqtt.Binding
		if opts.Broker != nil {
			var err error
			binding, err = mqtt.Bind(opts.Broker, cfg.MQTT.TopicPrefix, light, opts.Logger)
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("bind %s: %w", light.ID(), err)
			}
			b.bindings = append(b.bindings, binding)
		}

		poller := lights.NewPoller(light, cfg.Poll.RetryDelay.Std(), b.sinkFor(binding), opts.Logger)
		b.pollers = append(b.pollers, poller)
	}

	b.collector = lights.NewCollector(b.lights)
	for i, poller := range b.pollers {
		poller.OnFailure(b.collector.FailureCounter(b.lights[i].ID()))
	}

	client.StartDiscover()
	return b, nil
}

// Lights returns the usable lights in bootstrap order.
func (b *Bridge) Lights() []*lights.Light { return b.lights }

// Collector is the Prometheus collector covering every light.
func (b *Bridge) Collector() *lights.Collector { return b.collector }

// Start launches one poller goroutine per light.
func (b *Bridge) Start(ctx context.Context) {
	for _, poller := range b.pollers {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			poller.Run(ctx)
		}()
	}
}

// Wait blocks until every poller has returned.
func (b *Bridge) Wait() { b.wg.Wait() }

// Close unsubscribes the MQTT bindings and releases the backend client.
// Cancel the Start context and Wait before calling.
func (b *Bridge) Close() {
	for _, binding := range b.bindings {
		binding.Close()
	}
	if err := b.client.Cleanup(); err != nil {
		b.logger.Warn().Err(err).Msg("backend cleanup failed")
	}
}

func (b *Bridge) sinkFor(binding *mqtt.Binding) lights.StateSink {
	return func(light *lights.Light, status aidot.Status) {
		if binding != nil {
			if err := binding.PublishState(status); err != nil {
				b.logger.Warn().Err(err).Str("device", light.ID()).Msg("state publish failed")
			}
		}
		if b.ledger != nil {
			ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			if err := b.ledger.Record(ctx, light.ID(), status); err != nil {
				b.logger.Warn().Err(err).Str("device", light.ID()).Msg("ledger record failed")
			}
			cancel()
		}
	}
}
