package player

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/shikkhasathi/voicecore/internal/audio"
	"github.com/shikkhasathi/voicecore/internal/levels"
)

// OpenMalgoElement is the default ElementFactory: it resolves the
// source, decodes the WAV payload and opens a malgo playback device.
// The whole payload is decoded up front, which doubles as the
// buffered-enough-to-play-through signal.
func OpenMalgoElement(ctx context.Context, src Source, tap *levels.Analyzer) (Element, error) {
	data, err := resolveSource(ctx, src)
	if err != nil {
		return nil, err
	}

	pcm, sampleRate, channels, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode source: %w", err)
	}

	e := &malgoElement{
		pcm:        pcm,
		sampleRate: sampleRate,
		channels:   channels,
		rate:       1,
		volume:     1,
		tap:        tap,
	}
	if err := e.openDevice(); err != nil {
		return nil, err
	}
	return e, nil
}

// resolveSource fetches URL sources and passes blobs through
func resolveSource(ctx context.Context, src Source) ([]byte, error) {
	if src.URL == "" {
		return src.Data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch source: status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read source body: %w", err)
	}
	return data, nil
}

// malgoElement plays decoded PCM through a malgo playback device.
// Rate changes are implemented as a fractional frame stride in the
// device callback; volume is applied per sample.
type malgoElement struct {
	pcm        []byte
	sampleRate int
	channels   int
	tap        *levels.Analyzer

	mu       sync.Mutex
	cursor   float64 // playback position in frames
	rate     float64
	volume   float64
	playing  bool
	closed   bool
	device   *malgo.Device
	malgoCtx *malgo.AllocatedContext
}

func (e *malgoElement) openDevice() error {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize audio backend: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(e.channels)
	deviceConfig.SampleRate = uint32(e.sampleRate)

	var callbacks malgo.DeviceCallbacks
	callbacks.Data = func(pOutputSample, pInputSamples []byte, framecount uint32) {
		e.fill(pOutputSample, framecount)
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	e.malgoCtx = malgoCtx
	e.device = device
	return nil
}

// fill writes the next framecount frames into the device buffer,
// applying volume and the rate stride, and feeds the analysis tap.
// Past the end of the payload it writes silence.
func (e *malgoElement) fill(out []byte, framecount uint32) {
	e.mu.Lock()
	cursor := e.cursor
	rate := e.rate
	volume := e.volume
	e.mu.Unlock()

	bytesPerFrame := 2 * e.channels
	totalFrames := float64(len(e.pcm) / bytesPerFrame)

	for f := uint32(0); f < framecount; f++ {
		frameIdx := int(cursor)
		outOff := int(f) * bytesPerFrame

		if cursor >= totalFrames {
			for b := 0; b < bytesPerFrame; b++ {
				out[outOff+b] = 0
			}
			continue
		}

		srcOff := frameIdx * bytesPerFrame
		for ch := 0; ch < e.channels; ch++ {
			s := float64(int16(e.pcm[srcOff+ch*2])|int16(e.pcm[srcOff+ch*2+1])<<8) * volume
			if s > 32767 {
				s = 32767
			}
			if s < -32768 {
				s = -32768
			}
			v := int16(s)
			out[outOff+ch*2] = byte(v)
			out[outOff+ch*2+1] = byte(uint16(v) >> 8)
		}
		cursor += rate
	}

	if cursor > totalFrames {
		cursor = totalFrames
	}

	e.mu.Lock()
	e.cursor = cursor
	e.mu.Unlock()

	if e.tap != nil {
		e.tap.Feed(out)
	}
}

func (e *malgoElement) Play() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("element is closed")
	}
	if e.playing {
		e.mu.Unlock()
		return nil
	}
	e.playing = true
	device := e.device
	e.mu.Unlock()

	if err := device.Start(); err != nil {
		e.mu.Lock()
		e.playing = false
		e.mu.Unlock()
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (e *malgoElement) Pause() error {
	e.mu.Lock()
	if e.closed || !e.playing {
		e.mu.Unlock()
		return nil
	}
	e.playing = false
	device := e.device
	e.mu.Unlock()

	if err := device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return nil
}

func (e *malgoElement) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor = seconds * float64(e.sampleRate)
	return nil
}

func (e *malgoElement) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor / float64(e.sampleRate)
}

func (e *malgoElement) Duration() float64 {
	bytesPerFrame := 2 * e.channels
	return float64(len(e.pcm)/bytesPerFrame) / float64(e.sampleRate)
}

func (e *malgoElement) SetRate(rate float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = rate
	return nil
}

func (e *malgoElement) SetVolume(volume float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = volume
	return nil
}

// Close releases the playback device. Idempotent.
func (e *malgoElement) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.playing = false
	device := e.device
	malgoCtx := e.malgoCtx
	e.device = nil
	e.malgoCtx = nil
	e.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	if malgoCtx != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
	}
	return nil
}
