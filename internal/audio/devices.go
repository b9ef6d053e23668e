package audio

import (
	"fmt"
	"io"
	"sort"

	"github.com/gordonklaus/portaudio"
)

// Device describes a PortAudio device in a Go-friendly way.
type Device struct {
	Name            string
	MaxInput        int
	MaxOutput       int
	DefaultSampleHz float64
	HostAPI         string
	IsDefaultInput  bool
}

// ListDevices returns every device that can capture, sorted by host and name.
func ListDevices() ([]Device, error) {
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	defaultInputIndex := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInputIndex = def.Index
	}

	devices := make([]Device, 0, len(hosts)*4)
	for _, host := range hosts {
		for _, d := range host.Devices {
			if d.MaxInputChannels == 0 {
				continue
			}
			devices = append(devices, Device{
				Name:            d.Name,
				MaxInput:        d.MaxInputChannels,
				MaxOutput:       d.MaxOutputChannels,
				DefaultSampleHz: d.DefaultSampleRate,
				HostAPI:         host.Name,
				IsDefaultInput:  d.Index == defaultInputIndex,
			})
		}
	}

	SortDevices(devices)
	return devices, nil
}

// SortDevices orders devices by host API, then name.
func SortDevices(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].HostAPI == devices[j].HostAPI {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].HostAPI < devices[j].HostAPI
	})
}

// WriteDevices prints a human readable device table.
func WriteDevices(w io.Writer, devices []Device) error {
	if _, err := fmt.Fprintf(w, "\n=== Audio Input Devices ===\n\n"); err != nil {
		return err
	}
	for _, dev := range devices {
		marker := ""
		if dev.IsDefaultInput {
			marker = " (default)"
		}
		if _, err := fmt.Fprintf(w, "- %s [%s]%s\n    inputs:%d outputs:%d sample:%.0f Hz\n",
			dev.Name, dev.HostAPI, marker, dev.MaxInput, dev.MaxOutput, dev.DefaultSampleHz); err != nil {
			return err
		}
	}
	return nil
}
