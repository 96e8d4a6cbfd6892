package builder

import (
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log/level"

	"github.com/moffa90/go-fwpack/checksum"
	"github.com/moffa90/go-fwpack/elfimg"
	"github.com/moffa90/go-fwpack/metadata"
)

// Builder assembles update images from a copy routine executable and an
// application executable.
//
// Builder holds only configuration and is safe for concurrent use.
type Builder struct {
	config Config
}

// Input names an executable and the physical address window to take from it.
type Input struct {
	Path   string
	Window elfimg.Window
}

// Params describes one image build.
type Params struct {
	// CopyRoutine is the executable that moves the application into place.
	// Its window must start at StorageAddress + metadata.HeaderSize.
	CopyRoutine Input

	// App is the application; its window start is the destination the
	// copy routine writes it to.
	App Input

	// StorageAddress is where the image is stored on the device
	StorageAddress uint32

	HardwareVersion metadata.VersionWord
	SoftwareVersion metadata.VersionWord
}

// New creates a new Builder with the given options.
//
// Example:
//
//	b := builder.New(
//	    builder.WithLogger(logger),
//	    builder.WithProgressCallback(progressFunc),
//	)
func New(opts ...Option) *Builder {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Builder{
		config: cfg,
	}
}

// Build reads both executables and assembles the image in memory.
// Nothing is written; see BuildFile.
//
// The application is read only after the copy routine entry point has been
// resolved, so failures are reported in stage order.
func (b *Builder) Build(p Params) (*Image, error) {
	copyExe, err := b.load(p.CopyRoutine.Path)
	if err != nil {
		return nil, &BuildError{Stage: StageExtractCopy, Err: err}
	}

	return b.assemble(copyExe, p.CopyRoutine.Window,
		func() (*elfimg.Executable, error) { return b.load(p.App.Path) }, p.App.Window,
		p.StorageAddress, p.HardwareVersion, p.SoftwareVersion)
}

// BuildFile builds the image and writes it to path. The file is created
// only when every stage succeeded; on failure no file (and no partial file)
// is left behind.
//
// Example:
//
//	img, err := b.BuildFile(params, "build/update.bin")
//	if err != nil {
//	    var rangeErr *elfimg.AddressRangeError
//	    if errors.As(err, &rangeErr) {
//	        // a segment does not fit its window
//	    }
//	    return err
//	}
func (b *Builder) BuildFile(p Params, path string) (*Image, error) {
	start := time.Now()

	img, err := b.Build(p)
	if err != nil {
		return nil, err
	}

	b.reportProgress(StageWrite, img.Len(), start)
	if err := img.WriteFile(b.config.Fs, path); err != nil {
		b.logError("image write failed", "path", path, "err", err)
		return nil, &BuildError{Stage: StageWrite, Err: err}
	}

	b.logInfo("image written",
		"path", path,
		"size", img.Len(),
		"crc", hex32(img.Header.CRC),
	)
	b.reportProgress(StageDone, img.Len(), start)

	return img, nil
}

// Assemble builds an image from already parsed executables.
//
// The image is the metadata header followed by the copy routine content
// and then the application content. The CRC in the header covers every
// byte from the metadata version field to the end of the image.
func (b *Builder) Assemble(
	copyExe *elfimg.Executable, copyWindow elfimg.Window,
	appExe *elfimg.Executable, appWindow elfimg.Window,
	storage uint32, hw, sw metadata.VersionWord,
) (*Image, error) {
	if copyExe == nil || appExe == nil {
		return nil, &BuildError{Stage: StageInit, Err: fmt.Errorf("executables cannot be nil")}
	}

	return b.assemble(copyExe, copyWindow,
		func() (*elfimg.Executable, error) { return appExe, nil }, appWindow,
		storage, hw, sw)
}

// assemble runs the build stages. loadApp is called at the start of the
// application stage.
func (b *Builder) assemble(
	copyExe *elfimg.Executable, copyWindow elfimg.Window,
	loadApp func() (*elfimg.Executable, error), appWindow elfimg.Window,
	storage uint32, hw, sw metadata.VersionWord,
) (*Image, error) {
	start := time.Now()
	b.reportProgress(StageInit, 0, start)

	b.logDebug("build parameters",
		"storage", hex32(storage),
		"copy_window", copyWindow,
		"app_window", appWindow,
		"hw_version", hw,
		"sw_version", sw,
		"mode", b.config.Mode,
	)

	// Copy routine
	b.reportProgress(StageExtractCopy, metadata.HeaderSize, start)

	copyBase := uint64(storage) + metadata.HeaderSize
	if copyBase > math.MaxUint32 {
		return nil, &BuildError{Stage: StageExtractCopy, Err: &elfimg.AddressRangeError{
			Window: copyWindow,
			Addr:   uint64(storage),
			Size:   metadata.HeaderSize,
			Reason: "metadata header exceeds the 32-bit address space",
		}}
	}
	if uint64(copyWindow.Start) != copyBase {
		return nil, &BuildError{Stage: StageExtractCopy, Err: &elfimg.AddressRangeError{
			Window: copyWindow,
			Addr:   uint64(copyWindow.Start),
			Reason: fmt.Sprintf("copy routine must be linked at storage address + 0x%X (0x%08X)",
				metadata.HeaderSize, copyBase),
		}}
	}

	copyBin, err := copyExe.ExtractMode(copyWindow, b.config.Mode)
	if err != nil {
		return nil, &BuildError{Stage: StageExtractCopy, Err: err}
	}
	b.logRegions(copyExe, copyWindow, copyBin)
	if copyBin.Len() == 0 {
		return nil, &BuildError{Stage: StageExtractCopy, Err: &elfimg.AddressRangeError{
			Window: copyWindow,
			Reason: fmt.Sprintf("no loadable content from %s in window", copyExe.Name),
		}}
	}

	// Entry point
	b.reportProgress(StageResolveEntry, metadata.HeaderSize+copyBin.Len(), start)

	entry, err := copyExe.Resolve(b.config.EntrySymbol)
	if err != nil {
		return nil, &BuildError{Stage: StageResolveEntry, Err: err}
	}
	// Thumb entry points carry the mode in bit 0.
	if target := uint64(entry &^ 1); target < uint64(copyBin.Base) || target >= copyBin.End() {
		return nil, &BuildError{Stage: StageResolveEntry, Err: &elfimg.AddressRangeError{
			Window: elfimg.Window{Start: copyBin.Base, End: uint32(copyBin.End())},
			Addr:   uint64(entry),
			Reason: fmt.Sprintf("entry symbol %q lies outside the copy routine", b.config.EntrySymbol),
		}}
	}
	b.logDebug("copy routine entry", "symbol", b.config.EntrySymbol, "address", hex32(entry))

	// Application
	b.reportProgress(StageExtractApp, metadata.HeaderSize+copyBin.Len(), start)

	appExe, err := loadApp()
	if err != nil {
		return nil, &BuildError{Stage: StageExtractApp, Err: err}
	}
	appBin, err := appExe.ExtractMode(appWindow, b.config.Mode)
	if err != nil {
		return nil, &BuildError{Stage: StageExtractApp, Err: err}
	}
	b.logRegions(appExe, appWindow, appBin)
	if appBin.Len() == 0 {
		return nil, &BuildError{Stage: StageExtractApp, Err: &elfimg.AddressRangeError{
			Window: appWindow,
			Reason: fmt.Sprintf("no loadable content from %s in window", appExe.Name),
		}}
	}

	// Header
	total := metadata.HeaderSize + copyBin.Len() + appBin.Len()
	b.reportProgress(StageEncodeHeader, total, start)

	appAddr := copyBase + uint64(copyBin.Len())
	if end := appAddr + uint64(appBin.Len()); end > math.MaxUint32+1 {
		return nil, &BuildError{Stage: StageEncodeHeader, Err: &elfimg.AddressRangeError{
			Window: appWindow,
			Addr:   appAddr,
			Size:   uint64(appBin.Len()),
			Reason: "stored image exceeds the 32-bit address space",
		}}
	}

	header := metadata.Header{
		CRC:               metadata.CRCPlaceholder,
		StorageAddress:    storage,
		HardwareVersion:   hw,
		SoftwareVersion:   sw,
		CopyEntryAddress:  entry,
		NewAppAddress:     uint32(appAddr),
		NewAppLength:      uint32(appBin.Len()),
		NewAppDestination: appWindow.Start,
	}

	data := make([]byte, 0, total)
	data = append(data, metadata.Encode(header)...)
	data = append(data, copyBin.Data...)
	data = append(data, appBin.Data...)

	b.logDebug("header",
		"storage", hex32(header.StorageAddress),
		"copy_entry", hex32(header.CopyEntryAddress),
		"new_app_address", hex32(header.NewAppAddress),
		"new_app_length", hex32(header.NewAppLength),
		"new_app_destination", hex32(header.NewAppDestination),
	)

	// Checksum
	b.reportProgress(StageComputeCRC, total, start)
	crc := checksum.CRC32STM32(data[metadata.ChecksumStart:])

	b.reportProgress(StageSplice, total, start)
	metadata.PutCRC(data, crc)
	header.CRC = crc

	b.logInfo("image assembled",
		"copy_size", copyBin.Len(),
		"app_size", appBin.Len(),
		"size", total,
		"crc", hex32(crc),
		"duration", time.Since(start),
	)

	return &Image{
		Header: header,
		Copy:   copyBin,
		App:    appBin,
		data:   data,
	}, nil
}

func (b *Builder) load(path string) (*elfimg.Executable, error) {
	f, err := b.config.Fs.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	return elfimg.NewFile(f, path)
}

// logRegions logs which segments (or sections) of exe went into bin.
func (b *Builder) logRegions(exe *elfimg.Executable, w elfimg.Window, bin *elfimg.Binary) {
	switch b.config.Mode {
	case elfimg.ModeSections:
		for _, sec := range exe.Sections {
			b.logDebug("section",
				"file", exe.Name,
				"name", sec.Name,
				"addr", hex64(sec.Addr),
				"size", len(sec.Data),
				"included", w.Contains(sec.Addr),
			)
		}
	default:
		for _, seg := range exe.Segments {
			b.logDebug("segment",
				"file", exe.Name,
				"index", seg.Index,
				"paddr", hex64(seg.PhysAddr),
				"vaddr", hex64(seg.VirtAddr),
				"size", len(seg.Data),
				"included", w.Contains(seg.PhysAddr),
			)
		}
	}

	b.logDebug("extracted",
		"file", exe.Name,
		"window", w,
		"regions", len(bin.Regions),
		"size", bin.Len(),
	)
}

// reportProgress calls the progress callback if configured.
func (b *Builder) reportProgress(stage Stage, size int, start time.Time) {
	if b.config.ProgressCallback != nil {
		b.config.ProgressCallback(Progress{
			Stage:       stage,
			Bytes:       size,
			ElapsedTime: time.Since(start),
		})
	}
}

func (b *Builder) logDebug(msg string, keysAndValues ...interface{}) {
	_ = level.Debug(b.config.Logger).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
}

func (b *Builder) logInfo(msg string, keysAndValues ...interface{}) {
	_ = level.Info(b.config.Logger).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
}

func (b *Builder) logError(msg string, keysAndValues ...interface{}) {
	_ = level.Error(b.config.Logger).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}

func hex64(v uint64) string {
	return fmt.Sprintf("0x%08X", v)
}
