// Package levels produces a live loudness metric for visualization.
// The analyzer is a passive tap: it reads a snapshot of the most recent
// audio and never contends with the encoder or player for the stream.
package levels

import (
	"math"
	"math/cmplx"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/shikkhasathi/voicecore/internal/audio"
)

// Sample is a normalized loudness value in [0,1]. Samples are transient;
// each one is superseded by the next poll tick.
type Sample float64

const (
	// windowBytes covers 1024 16-bit samples, the FFT snapshot size
	windowBytes = 2048

	// defaultInterval approximates display-refresh cadence
	defaultInterval = 16 * time.Millisecond
)

// Analyzer taps an audio stream and polls it into loudness samples.
// Feed may be called from any goroutine at any time; Attach starts the
// polling loop and Detach stops it. The analyzer is restartable: a new
// Attach after Detach begins a fresh sample stream.
type Analyzer struct {
	window   *audio.RingBuffer
	interval time.Duration

	mu       sync.Mutex
	attached bool
	stopCh   chan struct{}
	out      chan Sample
	wg       sync.WaitGroup

	levelMu sync.RWMutex
	level   float64
}

// NewAnalyzer creates a detached analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		window:   audio.NewRingBuffer(windowBytes),
		interval: defaultInterval,
	}
}

// Feed writes captured PCM into the analysis window. It is non-blocking
// and safe to call while detached or mid-teardown; stale data is simply
// overwritten.
func (a *Analyzer) Feed(pcm []byte) {
	a.window.Write(pcm)
}

// Attach starts the polling loop and returns the sample stream. The
// channel is closed by Detach. Attaching while already attached returns
// the current stream.
func (a *Analyzer) Attach() <-chan Sample {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.attached {
		return a.out
	}

	a.attached = true
	a.stopCh = make(chan struct{})
	a.out = make(chan Sample, 1)

	a.wg.Add(1)
	go a.poll(a.stopCh, a.out)

	return a.out
}

// Detach stops polling and closes the sample stream. The underlying
// audio stream is untouched; other consumers keep running. Safe to call
// repeatedly.
func (a *Analyzer) Detach() {
	a.mu.Lock()
	if !a.attached {
		a.mu.Unlock()
		return
	}
	a.attached = false
	close(a.stopCh)
	a.mu.Unlock()

	a.wg.Wait()

	a.levelMu.Lock()
	a.level = 0
	a.levelMu.Unlock()
}

// Level returns the most recent loudness value, 0 when detached or when
// no audio has arrived yet
func (a *Analyzer) Level() float64 {
	a.levelMu.RLock()
	defer a.levelMu.RUnlock()
	return a.level
}

func (a *Analyzer) poll(stopCh chan struct{}, out chan Sample) {
	defer a.wg.Done()
	defer close(out)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			level := ComputeLevel(a.window.Snapshot())

			a.levelMu.Lock()
			a.level = level
			a.levelMu.Unlock()

			// Drop the stale sample if the consumer is behind
			select {
			case out <- Sample(level):
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- Sample(level):
				default:
				}
			}
		}
	}
}

// ComputeLevel converts a snapshot of 16-bit little-endian PCM into a
// normalized loudness value: mean magnitude across the frequency bins of
// an FFT over the snapshot, scaled to [0,1]. A torn-down or empty stream
// yields 0 rather than an error.
func ComputeLevel(pcm []byte) float64 {
	sampleCount := len(pcm) / 2
	if sampleCount == 0 {
		return 0
	}

	samples := make([]float64, sampleCount)
	for i := 0; i < sampleCount; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		samples[i] = float64(s) / 32768.0
	}

	bins := fft.FFTReal(samples)
	half := len(bins) / 2
	if half == 0 {
		return 0
	}

	// Per-bin amplitude is 2|X_k|/N for a real input of length N
	var sum float64
	for _, bin := range bins[:half] {
		sum += 2 * cmplx.Abs(bin) / float64(sampleCount)
	}
	mean := sum / float64(half)

	// A full-scale tone concentrates in one bin; spread the scale so
	// ordinary speech is visible without clipping the meter
	level := math.Sqrt(mean)
	if level > 1 {
		level = 1
	}
	if level < 0 {
		level = 0
	}
	return level
}
