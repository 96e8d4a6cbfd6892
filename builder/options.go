package builder

import (
	"github.com/go-kit/log"
	"github.com/spf13/afero"

	"github.com/moffa90/go-fwpack/elfimg"
)

// DefaultEntrySymbol is the symbol the copy routine is entered through.
const DefaultEntrySymbol = "main"

// Config holds the builder configuration.
type Config struct {
	// ProgressCallback is called when the build enters a new stage (optional)
	ProgressCallback ProgressCallback

	// Logger receives structured build logs
	Logger log.Logger

	// Fs is the filesystem executables are read from and the image is
	// written to
	Fs afero.Fs

	// EntrySymbol names the copy routine entry point
	EntrySymbol string

	// Mode selects segment- or section-based extraction
	Mode elfimg.ExtractMode
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Logger:      log.NewNopLogger(),
		Fs:          afero.NewOsFs(),
		EntrySymbol: DefaultEntrySymbol,
		Mode:        elfimg.ModeSegments,
	}
}

// Option is a functional option for configuring the Builder.
type Option func(*Config)

// WithProgressCallback sets a callback function to track build stages.
//
// Example:
//
//	b := builder.New(
//	    builder.WithProgressCallback(func(p builder.Progress) {
//	        fmt.Printf("[%s] %d bytes\n", p.Stage, p.Bytes)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets the go-kit logger for build logs. A nil logger is ignored.
//
// Example:
//
//	logger := level.NewFilter(log.NewLogfmtLogger(os.Stderr), level.AllowInfo())
//	b := builder.New(builder.WithLogger(logger))
func WithLogger(logger log.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithFs sets the filesystem used for reading executables and writing the
// image. Tests typically pass afero.NewMemMapFs().
func WithFs(fs afero.Fs) Option {
	return func(c *Config) {
		if fs != nil {
			c.Fs = fs
		}
	}
}

// WithEntrySymbol sets the symbol that is resolved as the copy routine
// entry point. Default is "main".
func WithEntrySymbol(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.EntrySymbol = name
		}
	}
}

// WithExtractMode selects how content is cut out of the executables.
// Default is elfimg.ModeSegments.
//
// Example:
//
//	b := builder.New(builder.WithExtractMode(elfimg.ModeSections))
func WithExtractMode(mode elfimg.ExtractMode) Option {
	return func(c *Config) {
		c.Mode = mode
	}
}
