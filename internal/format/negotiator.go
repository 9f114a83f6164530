// Package format selects the recording container for a capture session.
// Host capability probing is non-deterministic, so it is isolated behind
// a single pure function boundary that takes the probe as an argument.
package format

// MIME identifiers for the recognized recording containers
const (
	WebMOpus = "audio/webm;codecs=opus"
	WebM     = "audio/webm"
	MP4      = "audio/mp4"
	WAV      = "audio/wav"
)

// Default is returned when no candidate is supported by the host
const Default = WebM

// Preferred is the standard candidate list, best first
var Preferred = []string{WebMOpus, WebM, MP4, WAV}

// SupportProbe reports whether the host can record the given MIME type
type SupportProbe func(mimeType string) bool

// Choose returns the first candidate the probe accepts, in the caller's
// preference order, falling back to Default when the list is empty or
// nothing matches. It performs no I/O of its own.
func Choose(supported SupportProbe, candidates []string) string {
	if supported == nil {
		return Default
	}
	for _, c := range candidates {
		if supported(c) {
			return c
		}
	}
	return Default
}

// PCMSupport is the probe for the built-in capture pipeline, which
// records raw PCM and containers it as WAV.
func PCMSupport(mimeType string) bool {
	return mimeType == WAV
}
