package levels

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sinePCM builds 16-bit little-endian PCM of a sine at the given
// amplitude in [0,1]
func sinePCM(samples int, amplitude float64) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * 32767 * math.Sin(2*math.Pi*float64(i)/32))
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(uint16(v) >> 8)
	}
	return pcm
}

func TestComputeLevelBounds(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		{0},              // odd length, no complete sample
		sinePCM(1024, 0), // silence
		sinePCM(1024, 0.5),
		sinePCM(1024, 1),
		sinePCM(7, 1), // tiny non-power-of-two window
	}

	for _, pcm := range inputs {
		level := ComputeLevel(pcm)
		assert.GreaterOrEqual(t, level, float64(0))
		assert.LessOrEqual(t, level, float64(1))
	}
}

func TestComputeLevelEmptyIsZero(t *testing.T) {
	assert.Equal(t, float64(0), ComputeLevel(nil))
	assert.Equal(t, float64(0), ComputeLevel([]byte{}))
}

func TestComputeLevelOrdering(t *testing.T) {
	silence := ComputeLevel(sinePCM(1024, 0))
	quiet := ComputeLevel(sinePCM(1024, 0.1))
	loud := ComputeLevel(sinePCM(1024, 0.9))

	assert.Equal(t, float64(0), silence)
	assert.Greater(t, quiet, silence)
	assert.Greater(t, loud, quiet)
}

func TestAnalyzerAttachDetach(t *testing.T) {
	a := NewAnalyzer()
	a.Feed(sinePCM(1024, 0.8))

	samples := a.Attach()
	require.NotNil(t, samples)

	// Wait for at least one poll tick
	select {
	case s := <-samples:
		assert.Greater(t, float64(s), float64(0))
		assert.LessOrEqual(t, float64(s), float64(1))
	case <-time.After(time.Second):
		t.Fatal("no level sample produced")
	}

	assert.Greater(t, a.Level(), float64(0))

	a.Detach()
	assert.Equal(t, float64(0), a.Level(), "level resets once detached")

	// The sample stream ends on detach
	for range samples {
	}
}

func TestAnalyzerRestartable(t *testing.T) {
	a := NewAnalyzer()
	a.Feed(sinePCM(1024, 0.5))

	first := a.Attach()
	a.Detach()
	for range first {
	}

	second := a.Attach()
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("no sample after re-attach")
	}
	a.Detach()
}

func TestAnalyzerDetachIdempotent(t *testing.T) {
	a := NewAnalyzer()
	a.Detach() // never attached
	a.Attach()
	a.Detach()
	a.Detach()
}

func TestAnalyzerAttachTwiceReturnsSameStream(t *testing.T) {
	a := NewAnalyzer()
	first := a.Attach()
	second := a.Attach()
	assert.Equal(t, first, second)
	a.Detach()

	for range first {
	}
}

func TestAnalyzerToleratesFeedDuringTeardown(t *testing.T) {
	a := NewAnalyzer()
	a.Attach()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			a.Feed(sinePCM(256, 0.3))
		}
	}()

	a.Detach()
	<-done

	// Stream torn down mid-poll reports silence, it does not panic
	assert.Equal(t, float64(0), a.Level())
}
