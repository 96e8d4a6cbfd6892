package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-fwpack/builder"
	"github.com/moffa90/go-fwpack/elfimg"
	"github.com/moffa90/go-fwpack/metadata"
)

// Defaults match the STM32F407 1 MiB layout: the application owns the
// first half of flash, the update image is stored in the second half.
const (
	defaultOutput         = "image.bin"
	defaultStorageAddress = 0x0808_0000
	defaultAppStart       = 0x0800_0000
	defaultAppEnd         = 0x0808_0000
	defaultCopyStart      = 0x0808_1000
	defaultCopyEnd        = 0x0808_5000
	defaultHWVersion      = 0x0100_0000
	defaultSWVersion      = 0x0200_0000
)

// address is a 32-bit flash address. It accepts 0x, 0o and 0b prefixes and
// _ separators both on the command line and in YAML.
type address struct {
	value uint32
	set   bool
}

func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uint32(v), nil
}

// String implements the kingpin.Value interface
func (a *address) String() string {
	if !a.set {
		return ""
	}
	return fmt.Sprintf("0x%08X", a.value)
}

// Set implements the kingpin.Value interface
func (a *address) Set(s string) error {
	v, err := parseAddress(s)
	if err != nil {
		return err
	}
	a.value, a.set = v, true
	return nil
}

// UnmarshalYAML reads the raw scalar so hex and separators survive.
func (a *address) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: address must be a scalar", node.Line)
	}
	if err := a.Set(node.Value); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

func (a address) or(def uint32) uint32 {
	if a.set {
		return a.value
	}
	return def
}

// version is a version word given as "1.2.3.4" or as a raw number.
type version struct {
	value metadata.VersionWord
	set   bool
}

// String implements the kingpin.Value interface
func (v *version) String() string {
	if !v.set {
		return ""
	}
	return v.value.String()
}

// Set implements the kingpin.Value interface
func (v *version) Set(s string) error {
	w, err := metadata.ParseVersion(s)
	if err != nil {
		return err
	}
	v.value, v.set = w, true
	return nil
}

func (v *version) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: version must be a scalar", node.Line)
	}
	if err := v.Set(node.Value); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

func (v version) or(def metadata.VersionWord) metadata.VersionWord {
	if v.set {
		return v.value
	}
	return def
}

type inputConfig struct {
	ELF   string  `yaml:"elf"`
	Start address `yaml:"start"`
	End   address `yaml:"end"`
}

// copyRoutineConfig is an input that also names the entry point symbol.
type copyRoutineConfig struct {
	inputConfig `yaml:",inline"`
	EntrySymbol string `yaml:"entry_symbol"`
}

// packConfig is the YAML pack file. Every field can be overridden by the
// matching build flag.
type packConfig struct {
	Output          string            `yaml:"output"`
	StorageAddress  address           `yaml:"storage_address"`
	HardwareVersion version           `yaml:"hardware_version"`
	SoftwareVersion version           `yaml:"software_version"`
	Extraction      string            `yaml:"extraction"`
	CopyRoutine     copyRoutineConfig `yaml:"copy_routine"`
	App             inputConfig       `yaml:"app"`
}

// loadConfig reads a pack file. Unknown keys are rejected so typos do not
// silently fall back to defaults.
func loadConfig(fs afero.Fs, path string) (*packConfig, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open pack config")
	}
	defer f.Close()

	var cfg packConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "parse pack config %s", path)
	}
	return &cfg, nil
}

// override copies every flag that was given on top of the pack file.
func (c *packConfig) override(o *packConfig) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.StorageAddress.set {
		c.StorageAddress = o.StorageAddress
	}
	if o.HardwareVersion.set {
		c.HardwareVersion = o.HardwareVersion
	}
	if o.SoftwareVersion.set {
		c.SoftwareVersion = o.SoftwareVersion
	}
	if o.Extraction != "" {
		c.Extraction = o.Extraction
	}
	c.CopyRoutine.override(&o.CopyRoutine)
	c.App.override(&o.App)
}

func (c *copyRoutineConfig) override(o *copyRoutineConfig) {
	c.inputConfig.override(&o.inputConfig)
	if o.EntrySymbol != "" {
		c.EntrySymbol = o.EntrySymbol
	}
}

func (c *inputConfig) override(o *inputConfig) {
	if o.ELF != "" {
		c.ELF = o.ELF
	}
	if o.Start.set {
		c.Start = o.Start
	}
	if o.End.set {
		c.End = o.End
	}
}

// params resolves defaults and returns the builder parameters.
func (c *packConfig) params() (builder.Params, error) {
	if c.CopyRoutine.ELF == "" {
		return builder.Params{}, errors.New("no copy routine executable given (copy_routine.elf or --copy-elf)")
	}
	if c.App.ELF == "" {
		return builder.Params{}, errors.New("no application executable given (app.elf or --app-elf)")
	}

	return builder.Params{
		CopyRoutine: builder.Input{
			Path: c.CopyRoutine.ELF,
			Window: elfimg.Window{
				Start: c.CopyRoutine.Start.or(defaultCopyStart),
				End:   c.CopyRoutine.End.or(defaultCopyEnd),
			},
		},
		App: builder.Input{
			Path: c.App.ELF,
			Window: elfimg.Window{
				Start: c.App.Start.or(defaultAppStart),
				End:   c.App.End.or(defaultAppEnd),
			},
		},
		StorageAddress:  c.StorageAddress.or(defaultStorageAddress),
		HardwareVersion: c.HardwareVersion.or(metadata.VersionFromUint32(defaultHWVersion)),
		SoftwareVersion: c.SoftwareVersion.or(metadata.VersionFromUint32(defaultSWVersion)),
	}, nil
}

func (c *packConfig) outputPath() string {
	if c.Output == "" {
		return defaultOutput
	}
	return c.Output
}

func (c *packConfig) options() ([]builder.Option, error) {
	mode, err := elfimg.ParseExtractMode(c.Extraction)
	if err != nil {
		return nil, err
	}
	return []builder.Option{
		builder.WithExtractMode(mode),
		builder.WithEntrySymbol(c.CopyRoutine.EntrySymbol),
	}, nil
}
