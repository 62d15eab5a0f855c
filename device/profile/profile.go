// Package profile describes autowatering controller models.
//
// A profile carries the per-model facts the protocol layer cannot know on
// its own: how many valve channels the hardware has, which GATT
// characteristics carry commands and notifications, and the tag map used
// by the serial debug bridge. Profiles are plain YAML so new hardware
// revisions ship as data.
package profile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Characteristics holds the GATT characteristic UUIDs of a controller.
type Characteristics struct {
	// Command receives fragmented writes (config, commands).
	Command string `yaml:"command"`
	// Notify delivers fragmented record streams (history, statistics).
	Notify string `yaml:"notify"`
}

// Profile describes one controller model.
type Profile struct {
	Model string `yaml:"model"`
	// Channels is the number of valve channels; valid channel IDs are
	// 0..Channels-1.
	Channels        uint8           `yaml:"channels"`
	Characteristics Characteristics `yaml:"characteristics"`
	// SerialTags maps the serial bridge's one-byte characteristic tag to
	// the characteristic UUID it mirrors.
	SerialTags map[uint8]string `yaml:"serial_tags,omitempty"`
}

var (
	ErrNoChannels            = errors.New("profile declares no valve channels")
	ErrMissingCharacteristic = errors.New("profile missing characteristic UUID")
)

// Default returns the profile of the current controller hardware.
func Default() *Profile {
	return &Profile{
		Model:    "autowatering-v4",
		Channels: 4,
		Characteristics: Characteristics{
			Command: "c3b20002-2f8e-4a1c-9d07-5b6a3e81d24a",
			Notify:  "c3b20003-2f8e-4a1c-9d07-5b6a3e81d24a",
		},
		SerialTags: map[uint8]string{
			0x01: "c3b20002-2f8e-4a1c-9d07-5b6a3e81d24a",
			0x02: "c3b20003-2f8e-4a1c-9d07-5b6a3e81d24a",
		},
	}
}

// Load parses a YAML profile and validates it.
func Load(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadFile reads and parses a YAML profile from disk.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	return Load(data)
}

// Validate checks the profile for internal consistency.
func (p *Profile) Validate() error {
	if p.Channels == 0 {
		return fmt.Errorf("%w: %s", ErrNoChannels, p.Model)
	}
	if p.Characteristics.Command == "" {
		return fmt.Errorf("%w: command", ErrMissingCharacteristic)
	}
	if p.Characteristics.Notify == "" {
		return fmt.Errorf("%w: notify", ErrMissingCharacteristic)
	}
	for tag, uuid := range p.SerialTags {
		if uuid == "" {
			return fmt.Errorf("%w: serial tag %#02x", ErrMissingCharacteristic, tag)
		}
	}
	return nil
}

// ValidChannel reports whether a channel ID is within the model's valve
// range. Satisfies fragment.ChannelValidator.
func (p *Profile) ValidChannel(channel uint8) bool {
	return channel < p.Channels
}
