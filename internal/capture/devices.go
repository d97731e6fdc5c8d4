package capture

import "strings"

// Device describes an input device.
type Device struct {
	Index      int
	Name       string
	HostAPI    string
	Channels   int
	SampleRate float64
	Default    bool
}

// InputDevices keeps devices with input channels. When any device is served
// by WASAPI, only WASAPI devices are kept, since the same hardware otherwise
// shows up once per Windows host API.
func InputDevices(all []Device) []Device {
	wasapi := false
	for _, d := range all {
		if d.Channels > 0 && strings.Contains(d.HostAPI, "WASAPI") {
			wasapi = true
			break
		}
	}
	out := make([]Device, 0, len(all))
	for _, d := range all {
		if d.Channels <= 0 {
			continue
		}
		if wasapi && !strings.Contains(d.HostAPI, "WASAPI") {
			continue
		}
		out = append(out, d)
	}
	return out
}

// BlockFrames is the number of frames per block at rate.
func BlockFrames(rate float64, blockMS int) int {
	return int(rate * float64(blockMS) / 1000)
}
