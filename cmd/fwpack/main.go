package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"
)

const envPrefix = "FWPACK_"

var cfg struct {
	verbose bool
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	ctx := withOutput(context.Background(), os.Stdout)
	ctx = withFs(ctx, afero.NewOsFs())

	app := kingpin.New(filepath.Base(os.Args[0]), "Build and inspect combined firmware update images.").UsageWriter(os.Stdout)
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("false").BoolVar(&cfg.verbose)

	buildCmd := app.Command("build", "Build an update image from a copy routine and an application executable.")
	buildParams := addBuildParams(buildCmd)

	inspectCmd := app.Command("inspect", "Decode and verify an update image.")
	inspectParams := addInspectParams(inspectCmd)

	segmentsCmd := app.Command("segments", "List the loadable content of an executable.")
	segmentsParams := addSegmentsParams(segmentsCmd)

	crcCmd := app.Command("crc", "Compute the STM32 hardware CRC of files.")
	crcParams := addCRCParams(crcCmd)

	// parse command line arguments
	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// enable verbose logging if requested
	if !cfg.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	switch parsedCmd {
	case buildCmd.FullCommand():
		os.Exit(checkError(build(ctx, buildParams)))
	case inspectCmd.FullCommand():
		os.Exit(checkError(inspect(ctx, inspectParams)))
	case segmentsCmd.FullCommand():
		os.Exit(checkError(segments(ctx, segmentsParams)))
	case crcCmd.FullCommand():
		os.Exit(checkError(crc(ctx, crcParams)))
	default:
		_ = level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
		os.Exit(1)
	}
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

// commander is the part of kingpin.Application and kingpin.CmdClause the
// add*Params functions need.
type commander interface {
	Flag(name, help string) *kingpin.FlagClause
	Arg(name, help string) *kingpin.ArgClause
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
	contextKeyFs
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}

func withFs(ctx context.Context, fs afero.Fs) context.Context {
	return context.WithValue(ctx, contextKeyFs, fs)
}

func filesystem(ctx context.Context) afero.Fs {
	if fs, ok := ctx.Value(contextKeyFs).(afero.Fs); ok {
		return fs
	}
	return afero.NewOsFs()
}
