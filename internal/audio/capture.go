package audio

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/errors"
	"github.com/erikh/hoover/internal/logging"
)

// rawChannelCapacity bounds the queue between the device callback and the
// pipeline goroutine. The callback never blocks: when the queue is full the
// buffer is dropped.
const rawChannelCapacity = 64

// Capture manages microphone input through malgo. Raw device buffers are
// forwarded as float32 copies on a bounded channel.
type Capture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	raw        chan []float32
	sampleRate uint32
	channels   uint32

	dropped atomic.Uint64
	closed  sync.Once
	log     *slog.Logger
}

// NewCapture opens the configured input device (or the system default) at its
// native sample rate and channel count and installs the data callback.
// Call Start to begin delivery.
func NewCapture(cfg *conf.AudioConfig) (*Capture, error) {
	log := logging.ForService("audio-capture")

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudio).
			Context("operation", "init_context").
			Build()
	}

	c := &Capture{
		ctx: ctx,
		raw: make(chan []float32, rawChannelCapacity),
		log: log,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 0 // native
	deviceConfig.SampleRate = 0       // native
	deviceConfig.Alsa.NoMMap = 1

	if cfg.Device != "" {
		info, err := findDevice(ctx, cfg.Device)
		if err != nil {
			_ = ctx.Uninit()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: c.onAudioData,
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudio).
			Context("operation", "init_device").
			Context("device", cfg.Device).
			Build()
	}

	c.device = device
	c.sampleRate = device.SampleRate()
	c.channels = device.CaptureChannels()

	log.Info("capture device ready",
		"sample_rate", c.sampleRate,
		"channels", c.channels)

	return c, nil
}

// findDevice resolves a capture device by name.
func findDevice(ctx *malgo.AllocatedContext, name string) (*malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudio).
			Context("operation", "enumerate_devices").
			Build()
	}

	for i := range infos {
		if infos[i].Name() == name {
			return &infos[i], nil
		}
	}

	return nil, errors.Newf("input device not found: %s", name).
		Component("audio").
		Category(errors.CategoryAudio).
		Build()
}

// onAudioData runs on the device's realtime thread. It must never block:
// the buffer copy is handed off with a non-blocking send and dropped when the
// consumer is behind.
func (c *Capture) onAudioData(_, pInputSamples []byte, _ uint32) {
	samples := bytesToFloat32(pInputSamples)
	if len(samples) == 0 {
		return
	}

	select {
	case c.raw <- samples:
	default:
		n := c.dropped.Add(1)
		if n%100 == 1 {
			c.log.Debug("raw audio queue full, dropping buffer", "dropped_total", n)
		}
	}
}

// Start begins audio delivery.
func (c *Capture) Start() error {
	if err := c.device.Start(); err != nil {
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryAudio).
			Context("operation", "start_device").
			Build()
	}
	return nil
}

// Pause stops audio delivery without releasing the device.
func (c *Capture) Pause() error {
	if err := c.device.Stop(); err != nil {
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryAudio).
			Context("operation", "stop_device").
			Build()
	}
	return nil
}

// Close releases the device and closes the raw channel, which lets the
// pipeline goroutine flush and exit.
func (c *Capture) Close() {
	c.closed.Do(func() {
		if c.device != nil {
			_ = c.device.Stop()
			c.device.Uninit()
			c.device = nil
		}
		if c.ctx != nil {
			_ = c.ctx.Uninit()
			c.ctx.Free()
			c.ctx = nil
		}
		close(c.raw)
	})
}

// Raw returns the channel of raw interleaved device buffers.
func (c *Capture) Raw() <-chan []float32 {
	return c.raw
}

// SampleRate returns the native device rate.
func (c *Capture) SampleRate() uint32 {
	return c.sampleRate
}

// Channels returns the native device channel count.
func (c *Capture) Channels() uint32 {
	return c.channels
}

// Dropped returns the number of raw buffers dropped at the callback.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// bytesToFloat32 copies a little-endian f32 byte buffer into a fresh slice.
func bytesToFloat32(data []byte) []float32 {
	n := len(data) / 4
	samples := make([]float32, n)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
