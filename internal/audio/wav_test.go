package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := []byte{0, 1, 2, 3, 4, 5, 6, 7}

	wav, err := EncodeWAV(pcm, 16000, 1)
	require.NoError(t, err)
	assert.Equal(t, 44+len(pcm), len(wav))
	assert.Equal(t, "RIFF", string(wav[:4]))

	got, rate, channels, err := DecodeWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, pcm, got)
	assert.Equal(t, 16000, rate)
	assert.Equal(t, 1, channels)
}

func TestEncodeWAVEmptyPCM(t *testing.T) {
	// A zero-duration recording still produces a valid container
	wav, err := EncodeWAV(nil, 16000, 1)
	require.NoError(t, err)
	assert.Equal(t, 44, len(wav))

	got, rate, _, err := DecodeWAV(wav)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 16000, rate)
}

func TestEncodeWAVRejectsBadParams(t *testing.T) {
	_, err := EncodeWAV([]byte{1, 2}, 0, 1)
	assert.Error(t, err)

	_, err = EncodeWAV([]byte{1, 2}, 16000, 0)
	assert.Error(t, err)
}

func TestDecodeWAVRejectsZeroChannelHeader(t *testing.T) {
	wav, err := EncodeWAV([]byte{1, 2, 3, 4}, 16000, 1)
	require.NoError(t, err)

	// Zero out the channel count field at offset 22
	wav[22] = 0
	wav[23] = 0

	_, _, _, err = DecodeWAV(wav)
	assert.Error(t, err)
}

func TestDecodeWAVRejectsZeroSampleRateHeader(t *testing.T) {
	wav, err := EncodeWAV([]byte{1, 2, 3, 4}, 16000, 1)
	require.NoError(t, err)

	// Zero out the sample rate field at offset 24
	for i := 24; i < 28; i++ {
		wav[i] = 0
	}

	_, _, _, err = DecodeWAV(wav)
	assert.Error(t, err)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, _, err := DecodeWAV([]byte("definitely not a wav file, far too short anyway"))
	assert.Error(t, err)

	_, _, _, err = DecodeWAV(nil)
	assert.Error(t, err)
}

func TestPCMDuration(t *testing.T) {
	// 16000 mono frames at 16kHz = exactly one second
	assert.Equal(t, time.Second, PCMDuration(32000, 16000, 1))

	// Stereo halves the frame count for the same byte length
	assert.Equal(t, 500*time.Millisecond, PCMDuration(32000, 16000, 2))

	assert.Equal(t, time.Duration(0), PCMDuration(0, 16000, 1))
	assert.Equal(t, time.Duration(0), PCMDuration(32000, 0, 1))
}
