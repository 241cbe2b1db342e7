package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Capture streams 16-bit PCM from the default microphone. Frames are
// delivered on the callback supplied to Start; the device is always
// released before Start returns an error or Stop returns.
type Capture struct {
	ctx        *malgo.AllocatedContext
	sampleRate uint32
	channels   uint32

	mu        sync.Mutex
	device    *malgo.Device
	recording bool
}

// NewCapture initializes the audio backend. Call Close when done.
func NewCapture(sampleRate, channels int) (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	return &Capture{
		ctx:        ctx,
		sampleRate: uint32(sampleRate),
		channels:   uint32(channels),
	}, nil
}

// Start opens the capture device and invokes onFrame with each raw PCM
// buffer until Stop. Only one capture may run at a time.
func (c *Capture) Start(onFrame func(pcm []byte)) error {
	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return fmt.Errorf("capture already running")
	}
	c.recording = true
	c.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = c.channels
	deviceCfg.SampleRate = c.sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSample []byte, frameCount uint32) {
			if len(pSample) == 0 {
				return
			}
			pcm := make([]byte, len(pSample))
			copy(pcm, pSample)
			onFrame(pcm)
		},
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		c.setStopped()
		return fmt.Errorf("initializing capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		c.setStopped()
		return fmt.Errorf("starting capture device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.mu.Unlock()
	return nil
}

// Stop releases the capture device. Safe to call when not recording.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.recording = false
}

// Recording reports whether a capture is active.
func (c *Capture) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Close releases the device and the audio backend.
func (c *Capture) Close() error {
	c.Stop()
	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}
	return nil
}

func (c *Capture) setStopped() {
	c.mu.Lock()
	c.recording = false
	c.mu.Unlock()
}
