package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// MalgoCapturer implements the Capturer interface using malgo
type MalgoCapturer struct {
	config       CaptureConfig
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext
	chunks       chan Chunk
	errs         chan error
	running      bool
	mu           sync.RWMutex
	stopChan     chan struct{}
}

// NewMalgoCapturer creates a new malgo-based audio capturer
func NewMalgoCapturer(config CaptureConfig) (*MalgoCapturer, error) {
	bufSize := config.ChunkBufferSize
	if bufSize <= 0 {
		bufSize = 10
	}
	return &MalgoCapturer{
		config:   config,
		chunks:   make(chan Chunk, bufSize),
		errs:     make(chan error, 10),
		stopChan: make(chan struct{}),
	}, nil
}

// Start acquires the capture device and begins capture.
// On failure every partially acquired resource is released before the
// error is returned, so a caller may retry with a fresh capturer.
func (m *MalgoCapturer) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("capturer is already running")
	}
	m.running = true
	m.mu.Unlock()

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return fmt.Errorf("failed to initialize audio backend: %w", classifyAcquireError(err))
	}
	m.malgoContext = malgoCtx

	deviceID, err := m.resolveDeviceID()
	if err != nil {
		m.malgoContext.Uninit()
		m.malgoContext.Free()
		m.malgoContext = nil
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}

	// EchoCancellation and NoiseSuppression are accepted in the config
	// but not forwarded to the backend; the device runs with its defaults
	// for both.
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = m.config.Channels
	deviceConfig.SampleRate = m.config.SampleRate
	deviceConfig.PeriodSizeInFrames = m.config.BufferFrames
	if deviceID != nil {
		deviceConfig.Capture.DeviceID = deviceID.Pointer()
	}

	// Data callback - called by the device thread when audio is available
	var callbacks malgo.DeviceCallbacks
	callbacks.Data = func(pOutputSample, pInputSamples []byte, framecount uint32) {
		// Copy the input samples to avoid data races
		dataCopy := make([]byte, len(pInputSamples))
		copy(dataCopy, pInputSamples)

		chunk := Chunk{
			Data:      dataCopy,
			Timestamp: time.Now(),
			Frames:    framecount,
		}

		// Non-blocking send so the device thread never stalls
		select {
		case m.chunks <- chunk:
		default:
			select {
			case m.errs <- fmt.Errorf("chunk buffer overflow, dropping frames"):
			default:
			}
		}
	}

	device, err := malgo.InitDevice(m.malgoContext.Context, deviceConfig, callbacks)
	if err != nil {
		m.malgoContext.Uninit()
		m.malgoContext.Free()
		m.malgoContext = nil
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return fmt.Errorf("failed to initialize capture device: %w", classifyAcquireError(err))
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		m.malgoContext.Uninit()
		m.malgoContext.Free()
		m.device = nil
		m.malgoContext = nil
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return fmt.Errorf("failed to start capture device: %w", classifyAcquireError(err))
	}

	// Context monitoring goroutine. Not part of the teardown wait: it
	// calls Stop itself on cancellation and touches no channels.
	go func() {
		select {
		case <-ctx.Done():
			m.Stop()
		case <-m.stopChan:
		}
	}()

	return nil
}

// Stop stops capture and releases the device. Releasing happens on every
// exit path; the chunks channel is closed only after the device is fully
// torn down so no trailing chunk is lost.
func (m *MalgoCapturer) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)

	var stopErr error
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			stopErr = fmt.Errorf("failed to stop device: %w", err)
		}
		m.device.Uninit()
		m.device = nil
	}

	if m.malgoContext != nil {
		m.malgoContext.Uninit()
		m.malgoContext.Free()
		m.malgoContext = nil
	}

	close(m.chunks)
	close(m.errs)

	return stopErr
}

// Chunks returns the channel on which captured chunks arrive
func (m *MalgoCapturer) Chunks() <-chan Chunk {
	return m.chunks
}

// Errors returns a channel that receives capture errors
func (m *MalgoCapturer) Errors() <-chan error {
	return m.errs
}

// IsRunning returns true if capture is currently active
func (m *MalgoCapturer) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// resolveDeviceID matches the configured device selector against the
// enumerated capture devices. An empty selector means the backend
// default; a selector with no match fails the acquisition.
func (m *MalgoCapturer) resolveDeviceID() (*malgo.DeviceID, error) {
	if m.config.DeviceID == "" {
		return nil, nil
	}

	infos, err := m.malgoContext.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	for i := range infos {
		if matchDeviceName(infos[i].Name(), m.config.DeviceID) {
			id := infos[i].ID
			return &id, nil
		}
	}

	return nil, fmt.Errorf("%w: no capture device matches %q", ErrDeviceUnavailable, m.config.DeviceID)
}

// classifyAcquireError maps backend errors onto the capture taxonomy.
// malgo does not expose typed errors, so this goes by message.
func classifyAcquireError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %s", ErrDeviceUnavailable, err)
}
