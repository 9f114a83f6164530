package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// DeviceType represents the type of audio device
type DeviceType int

const (
	DeviceTypePlayback DeviceType = iota
	DeviceTypeCapture
	DeviceTypeDuplex
)

// DeviceInfo contains information about an audio device
type DeviceInfo struct {
	ID             string     // Unique device identifier
	Name           string     // Human-readable device name
	Type           DeviceType // Device type (playback, capture, duplex)
	IsDefault      bool       // Whether this is the default device
	MaxChannels    uint32     // Maximum number of supported channels
	SupportedRates []uint32   // Supported sample rates
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	defaultMarker := ""
	if d.IsDefault {
		defaultMarker = " [DEFAULT]"
	}
	return fmt.Sprintf("%s: %s%s (channels: %d)", d.ID, d.Name, defaultMarker, d.MaxChannels)
}

// ListDevices returns all available audio devices of the given type
func ListDevices(deviceType DeviceType) ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio backend: %w", classifyAcquireError(err))
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	malgoType := malgo.Capture
	if deviceType == DeviceTypePlayback {
		malgoType = malgo.Playback
	}

	infos, err := ctx.Devices(malgoType)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	prefix := "capture"
	if deviceType == DeviceTypePlayback {
		prefix = "playback"
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			ID:          fmt.Sprintf("%s-%d", prefix, i),
			Name:        info.Name(),
			Type:        deviceType,
			IsDefault:   info.IsDefault > 0,
			MaxChannels: 2, // malgo doesn't expose this directly
		})
	}

	return devices, nil
}

// GetDefaultDevice returns the default capture device
func GetDefaultDevice() (*DeviceInfo, error) {
	devices, err := ListDevices(DeviceTypeCapture)
	if err != nil {
		return nil, err
	}

	for _, device := range devices {
		if device.IsDefault {
			return &device, nil
		}
	}

	if len(devices) > 0 {
		return &devices[0], nil
	}

	return nil, fmt.Errorf("%w: no capture devices found", ErrDeviceUnavailable)
}

// FindDeviceByName finds a capture device by name (case-insensitive partial match)
func FindDeviceByName(name string) (*DeviceInfo, error) {
	devices, err := ListDevices(DeviceTypeCapture)
	if err != nil {
		return nil, err
	}

	for _, device := range devices {
		if matchDeviceName(device.Name, name) {
			return &device, nil
		}
	}

	return nil, fmt.Errorf("no device found matching name: %s", name)
}

// matchDeviceName reports whether a device name satisfies a selector
// (case-insensitive substring match)
func matchDeviceName(deviceName, selector string) bool {
	return strings.Contains(strings.ToLower(deviceName), strings.ToLower(selector))
}
