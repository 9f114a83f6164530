package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shikkhasathi/voicecore/internal/audio"
	"github.com/shikkhasathi/voicecore/internal/format"
)

// fakeCapturer scripts chunk delivery without touching real devices
type fakeCapturer struct {
	mu       sync.Mutex
	running  bool
	chunks   chan audio.Chunk
	errs     chan error
	startErr error
}

func newFakeCapturer() *fakeCapturer {
	return &fakeCapturer{
		chunks: make(chan audio.Chunk, 64),
		errs:   make(chan error, 4),
	}
}

func (f *fakeCapturer) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
	return nil
}

func (f *fakeCapturer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return nil
	}
	f.running = false
	close(f.chunks)
	close(f.errs)
	return nil
}

func (f *fakeCapturer) Chunks() <-chan audio.Chunk { return f.chunks }
func (f *fakeCapturer) Errors() <-chan error       { return f.errs }

func (f *fakeCapturer) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeCapturer) deliver(data []byte) {
	f.chunks <- audio.Chunk{Data: data, Timestamp: time.Now(), Frames: uint32(len(data) / 2)}
}

func newTestSession(fake *fakeCapturer, opts ...Option) *Session {
	base := []Option{
		WithCapturerFactory(func(audio.CaptureConfig) (audio.Capturer, error) {
			return fake, nil
		}),
	}
	return NewSession(audio.DefaultCaptureConfig(), append(base, opts...)...)
}

func waitForChunks(t *testing.T, s *Session, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		s.mu.Lock()
		got := len(s.chunks)
		s.mu.Unlock()
		if got >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d chunks, have %d", n, got)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestStartStopLifecycle(t *testing.T) {
	fake := newFakeCapturer()
	s := newTestSession(fake)

	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRecording, s.State())
	assert.Equal(t, format.WAV, s.Format())

	fake.deliver(make([]byte, 10))
	waitForChunks(t, s, 1)

	payload, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 10, payload.Len())
}

func TestChunkOrderingPreserved(t *testing.T) {
	fake := newFakeCapturer()
	s := newTestSession(fake)
	require.NoError(t, s.Start(context.Background()))

	// Scenario: chunks of 10, 20 and 15 bytes, each filled with a
	// distinct value so concatenation order is observable
	sizes := []int{10, 20, 15}
	var want []byte
	for i, size := range sizes {
		chunk := make([]byte, size)
		for j := range chunk {
			chunk[j] = byte(i + 1)
		}
		want = append(want, chunk...)
		fake.deliver(chunk)
	}
	waitForChunks(t, s, len(sizes))

	payload, err := s.Stop()
	require.NoError(t, err)

	assert.Equal(t, 45, payload.Len())
	assert.Equal(t, want, payload.Bytes())
	assert.Equal(t, format.WAV, payload.MIMEType())
}

func TestTrailingChunkNotDropped(t *testing.T) {
	fake := newFakeCapturer()
	s := newTestSession(fake)
	require.NoError(t, s.Start(context.Background()))

	// Queue chunks without giving the drain loop time to run; Stop must
	// still incorporate everything delivered before it
	for i := 0; i < 20; i++ {
		fake.deliver(make([]byte, 8))
	}

	payload, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, 160, payload.Len())
}

func TestStopWithZeroChunks(t *testing.T) {
	fake := newFakeCapturer()
	s := newTestSession(fake)
	require.NoError(t, s.Start(context.Background()))

	payload, err := s.Stop()
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, 0, payload.Len())
	assert.Equal(t, time.Duration(0), payload.Duration())
	assert.Equal(t, format.WAV, payload.MIMEType())
}

func TestStartWhileRecording(t *testing.T) {
	fake := newFakeCapturer()
	s := newTestSession(fake)
	require.NoError(t, s.Start(context.Background()))

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRecording)

	_, err = s.Stop()
	require.NoError(t, err)
}

func TestStopWhileIdle(t *testing.T) {
	s := newTestSession(newFakeCapturer())

	payload, err := s.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.Nil(t, payload)
	assert.Equal(t, StateIdle, s.State())
}

func TestStartAfterFailureIsSafe(t *testing.T) {
	failing := newFakeCapturer()
	failing.startErr = audio.ErrDeviceUnavailable

	working := newFakeCapturer()
	attempt := 0
	s := NewSession(audio.DefaultCaptureConfig(),
		WithCapturerFactory(func(audio.CaptureConfig) (audio.Capturer, error) {
			attempt++
			if attempt == 1 {
				return failing, nil
			}
			return working, nil
		}),
	)

	err := s.Start(context.Background())
	require.ErrorIs(t, err, audio.ErrDeviceUnavailable)
	assert.Equal(t, StateError, s.State())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRecording, s.State())

	_, err = s.Stop()
	require.NoError(t, err)
}

func TestSessionReuse(t *testing.T) {
	first := newFakeCapturer()
	second := newFakeCapturer()
	capturers := []*fakeCapturer{first, second}
	i := 0
	s := NewSession(audio.DefaultCaptureConfig(),
		WithCapturerFactory(func(audio.CaptureConfig) (audio.Capturer, error) {
			c := capturers[i]
			i++
			return c, nil
		}),
	)

	require.NoError(t, s.Start(context.Background()))
	first.deliver(make([]byte, 4))
	waitForChunks(t, s, 1)
	payload, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, 4, payload.Len())

	// Accumulated chunks from the first recording must not leak into
	// the second
	require.NoError(t, s.Start(context.Background()))
	payload, err = s.Stop()
	require.NoError(t, err)
	assert.Equal(t, 0, payload.Len())
}

func TestCleanupFromAnyState(t *testing.T) {
	fake := newFakeCapturer()
	s := newTestSession(fake)

	// Idle cleanup is a no-op
	s.Cleanup()
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Start(context.Background()))
	s.Cleanup()
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, fake.IsRunning())

	// Repeated cleanup stays safe
	s.Cleanup()
}

func TestGainApplied(t *testing.T) {
	fake := newFakeCapturer()
	s := newTestSession(fake, WithGain(2))
	require.NoError(t, s.Start(context.Background()))

	// One sample with value 100, little-endian
	fake.deliver([]byte{100, 0})
	waitForChunks(t, s, 1)

	payload, err := s.Stop()
	require.NoError(t, err)
	got := int16(payload.Bytes()[0]) | int16(payload.Bytes()[1])<<8
	assert.Equal(t, int16(200), got)
}

func TestApplyGainClamps(t *testing.T) {
	// Near-max sample must clamp rather than wrap
	pcm := []byte{0xFF, 0x7F} // 32767
	applyGain(pcm, 4)
	got := int16(pcm[0]) | int16(pcm[1])<<8
	assert.Equal(t, int16(32767), got)

	pcm = []byte{0x00, 0x80} // -32768
	applyGain(pcm, 4)
	got = int16(pcm[0]) | int16(pcm[1])<<8
	assert.Equal(t, int16(-32768), got)
}
