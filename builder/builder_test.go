package builder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-fwpack/checksum"
	"github.com/moffa90/go-fwpack/elfimg"
	"github.com/moffa90/go-fwpack/internal/elftest"
	"github.com/moffa90/go-fwpack/metadata"
)

const testStorage = 0x08080000

var (
	testCopyWindow = elfimg.Window{Start: 0x08081000, End: 0x08085000}
	testAppWindow  = elfimg.Window{Start: 0x08000000, End: 0x08080000}
	testHW         = metadata.NewVersion(1, 0, 0, 0)
	testSW         = metadata.NewVersion(2, 0, 0, 0)
)

func copyELF() elftest.File {
	return elftest.File{
		Entry: 0x08081001,
		Segments: []elftest.Segment{
			{Name: ".text", PAddr: 0x08081000, VAddr: 0x08081000, Data: elftest.Pattern(100, 0x11)},
		},
		Symbols: []elftest.Symbol{{Name: "main", Value: 0x08081001}},
	}
}

func appELF() elftest.File {
	return elftest.File{
		Entry: 0x08000101,
		Segments: []elftest.Segment{
			{Name: ".text", PAddr: 0x08000000, VAddr: 0x08000000, Data: elftest.Pattern(200, 0x40)},
		},
		Symbols: []elftest.Symbol{{Name: "main", Value: 0x08000101}},
	}
}

func testParams() Params {
	return Params{
		CopyRoutine:     Input{Path: "copy.elf", Window: testCopyWindow},
		App:             Input{Path: "app.elf", Window: testAppWindow},
		StorageAddress:  testStorage,
		HardwareVersion: testHW,
		SoftwareVersion: testSW,
	}
}

// newTestFs returns an in-memory filesystem holding copy.elf and app.elf.
func newTestFs(t *testing.T, copyFile, appFile elftest.File) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "copy.elf", copyFile.Bytes(), 0o644))
	require.NoError(t, afero.WriteFile(fs, "app.elf", appFile.Bytes(), 0o644))
	return fs
}

func mustExecutable(t *testing.T, f elftest.File, name string) *elfimg.Executable {
	t.Helper()
	exe, err := elfimg.NewFile(bytes.NewReader(f.Bytes()), name)
	require.NoError(t, err)
	return exe
}

func TestBuild(t *testing.T) {
	b := New(WithFs(newTestFs(t, copyELF(), appELF())))

	img, err := b.Build(testParams())
	require.NoError(t, err)

	data := img.Bytes()
	require.Equal(t, metadata.HeaderSize+100+200, img.Len())
	require.Len(t, data, img.Len())

	hdr, err := metadata.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(testStorage), hdr.StorageAddress)
	assert.Equal(t, testHW, hdr.HardwareVersion)
	assert.Equal(t, testSW, hdr.SoftwareVersion)
	assert.Equal(t, uint32(0x08081001), hdr.CopyEntryAddress)
	assert.Equal(t, uint32(0x08081064), hdr.NewAppAddress)
	assert.Equal(t, uint32(200), hdr.NewAppLength)
	assert.Equal(t, uint32(0x08000000), hdr.NewAppDestination)
	assert.Equal(t, img.Header, *hdr)

	// Payload follows the header without gaps.
	assert.Equal(t, elftest.Pattern(100, 0x11), data[metadata.HeaderSize:metadata.HeaderSize+100])
	assert.Equal(t, elftest.Pattern(200, 0x40), data[metadata.HeaderSize+100:])

	// The stored CRC covers everything after the CRC field.
	assert.Equal(t, checksum.CRC32STM32(data[metadata.ChecksumStart:]), hdr.CRC)
	assert.NotEqual(t, metadata.CRCPlaceholder, hdr.CRC)
	assert.Equal(t, hdr.CRC, binary.LittleEndian.Uint32(data[metadata.OffsetCRC:]))

	report, err := Verify(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), report.CopyLength)
	assert.Equal(t, img.Len(), report.Size)
}

func TestBuild_Deterministic(t *testing.T) {
	fs := newTestFs(t, copyELF(), appELF())

	first, err := New(WithFs(fs)).Build(testParams())
	require.NoError(t, err)
	second, err := New(WithFs(fs)).Build(testParams())
	require.NoError(t, err)

	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestBuild_PaddedContent(t *testing.T) {
	cp := copyELF()
	cp.Segments[0].Data = elftest.Pattern(98, 0x11)
	app := appELF()
	app.Segments = append(app.Segments, elftest.Segment{
		Name: ".data", PAddr: 0x08000100, VAddr: 0x20000000, Data: elftest.Pattern(7, 0x90), MemSize: 64,
	})

	img, err := New(WithFs(newTestFs(t, cp, app))).Build(testParams())
	require.NoError(t, err)

	assert.Equal(t, 100, img.Copy.Len())
	assert.Equal(t, 0x108, img.App.Len())
	assert.Equal(t, uint32(0x08081064), img.Header.NewAppAddress)
	assert.Equal(t, uint32(0x108), img.Header.NewAppLength)

	app0 := metadata.HeaderSize + 100
	data := img.Bytes()
	assert.Equal(t, make([]byte, 0x100-200), data[app0+200:app0+0x100], "gap is zero filled")
	assert.Equal(t, elftest.Pattern(7, 0x90), data[app0+0x100:app0+0x107])
	assert.Zero(t, data[len(data)-1])
}

func TestAssemble_Errors(t *testing.T) {
	tests := []struct {
		name      string
		copyFile  func() elftest.File
		appFile   func() elftest.File
		copyWin   elfimg.Window
		appWin    elfimg.Window
		storage   uint32
		opts      []Option
		wantStage Stage
		wantErr   interface{}
		errMsg    string
	}{
		{
			name:      "copy window not after header",
			copyWin:   elfimg.Window{Start: 0x08082000, End: 0x08085000},
			wantStage: StageExtractCopy,
			wantErr:   &elfimg.AddressRangeError{},
			errMsg:    "storage address + 0x1000",
		},
		{
			name: "copy segment crosses window end",
			copyFile: func() elftest.File {
				f := copyELF()
				f.Segments[0].Data = elftest.Pattern(0x4001, 0)
				return f
			},
			wantStage: StageExtractCopy,
			wantErr:   &elfimg.AddressRangeError{},
		},
		{
			name:      "copy window empty",
			copyWin:   elfimg.Window{Start: 0x08081000, End: 0x08081000},
			wantStage: StageExtractCopy,
			wantErr:   &elfimg.AddressRangeError{},
		},
		{
			name: "no copy content",
			copyFile: func() elftest.File {
				f := copyELF()
				f.Segments[0].PAddr = 0x08090000
				return f
			},
			wantStage: StageExtractCopy,
			wantErr:   &elfimg.AddressRangeError{},
			errMsg:    "no loadable content",
		},
		{
			name: "relocatable copy routine",
			copyFile: func() elftest.File {
				f := copyELF()
				f.Relocations = true
				return f
			},
			wantStage: StageExtractCopy,
			wantErr:   &elfimg.ParseError{},
			errMsg:    "relocation",
		},
		{
			name: "missing entry symbol",
			copyFile: func() elftest.File {
				f := copyELF()
				f.Symbols = []elftest.Symbol{{Name: "copy_main", Value: 0x08081001}}
				return f
			},
			wantStage: StageResolveEntry,
			wantErr:   &elfimg.SymbolNotFoundError{},
			errMsg:    `"main"`,
		},
		{
			name: "entry outside copy routine",
			copyFile: func() elftest.File {
				f := copyELF()
				f.Symbols = []elftest.Symbol{{Name: "main", Value: 0x08081065}}
				return f
			},
			wantStage: StageResolveEntry,
			wantErr:   &elfimg.AddressRangeError{},
			errMsg:    "outside the copy routine",
		},
		{
			name:      "custom entry symbol missing",
			opts:      []Option{WithEntrySymbol("copy_main")},
			wantStage: StageResolveEntry,
			wantErr:   &elfimg.SymbolNotFoundError{},
		},
		{
			name:      "no app content",
			appWin:    elfimg.Window{Start: 0x08040000, End: 0x08080000},
			wantStage: StageExtractApp,
			wantErr:   &elfimg.AddressRangeError{},
			errMsg:    "no loadable content",
		},
		{
			name: "app segment crosses window end",
			appFile: func() elftest.File {
				f := appELF()
				f.Segments[0].PAddr = 0x0807FF80
				return f
			},
			wantStage: StageExtractApp,
			wantErr:   &elfimg.AddressRangeError{},
		},
		{
			name: "image past end of address space",
			copyFile: func() elftest.File {
				f := copyELF()
				f.Segments[0].PAddr = 0xFFFFF000
				f.Segments[0].VAddr = 0xFFFFF000
				// Ends at 0xFFFFFFF0; the 200 byte application cannot follow.
				f.Segments[0].Data = elftest.Pattern(0xFF0, 0x11)
				f.Symbols = []elftest.Symbol{{Name: "main", Value: 0xFFFFF001}}
				return f
			},
			copyWin:   elfimg.Window{Start: 0xFFFFF000, End: 0xFFFFFFFF},
			storage:   0xFFFFE000,
			wantStage: StageEncodeHeader,
			wantErr:   &elfimg.AddressRangeError{},
			errMsg:    "32-bit address space",
		},
		{
			name:      "header past end of address space",
			storage:   0xFFFFF800,
			wantStage: StageExtractCopy,
			wantErr:   &elfimg.AddressRangeError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			copyFile, appFile := copyELF(), appELF()
			if tt.copyFile != nil {
				copyFile = tt.copyFile()
			}
			if tt.appFile != nil {
				appFile = tt.appFile()
			}
			copyWin, appWin, storage := testCopyWindow, testAppWindow, uint32(testStorage)
			if tt.copyWin != (elfimg.Window{}) {
				copyWin = tt.copyWin
			}
			if tt.appWin != (elfimg.Window{}) {
				appWin = tt.appWin
			}
			if tt.storage != 0 {
				storage = tt.storage
			}

			img, err := New(tt.opts...).Assemble(
				mustExecutable(t, copyFile, "copy.elf"), copyWin,
				mustExecutable(t, appFile, "app.elf"), appWin,
				storage, testHW, testSW,
			)
			require.Error(t, err)
			assert.Nil(t, img)

			var buildErr *BuildError
			require.True(t, errors.As(err, &buildErr))
			assert.Equal(t, tt.wantStage, buildErr.Stage)
			assert.Equal(t, tt.wantStage, StageOf(err))

			switch tt.wantErr.(type) {
			case *elfimg.AddressRangeError:
				var target *elfimg.AddressRangeError
				assert.True(t, errors.As(err, &target), "want AddressRangeError, got %v", err)
			case *elfimg.ParseError:
				var target *elfimg.ParseError
				assert.True(t, errors.As(err, &target), "want ParseError, got %v", err)
			case *elfimg.SymbolNotFoundError:
				var target *elfimg.SymbolNotFoundError
				assert.True(t, errors.As(err, &target), "want SymbolNotFoundError, got %v", err)
			}

			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestAssemble_NilExecutable(t *testing.T) {
	_, err := New().Assemble(nil, testCopyWindow, nil, testAppWindow, testStorage, testHW, testSW)
	require.Error(t, err)
	assert.Equal(t, StageInit, StageOf(err))
}

func TestBuild_MissingInput(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "copy.elf", copyELF().Bytes(), 0o644))

	_, err := New(WithFs(fs)).Build(testParams())
	require.Error(t, err)
	assert.Equal(t, StageExtractApp, StageOf(err))

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "app.elf", ioErr.Path)
}

func TestBuild_StageOrder(t *testing.T) {
	// The copy routine lacks its entry symbol and the application is
	// missing: the earlier stage is reported.
	cp := copyELF()
	cp.Symbols = nil
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "copy.elf", cp.Bytes(), 0o644))

	_, err := New(WithFs(fs)).Build(testParams())
	require.Error(t, err)
	assert.Equal(t, StageResolveEntry, StageOf(err))

	var symErr *elfimg.SymbolNotFoundError
	assert.True(t, errors.As(err, &symErr))
}

func TestBuildFile(t *testing.T) {
	fs := newTestFs(t, copyELF(), appELF())
	require.NoError(t, fs.MkdirAll("out", 0o755))

	img, err := New(WithFs(fs)).BuildFile(testParams(), "out/update.bin")
	require.NoError(t, err)

	written, err := afero.ReadFile(fs, "out/update.bin")
	require.NoError(t, err)
	assert.Equal(t, img.Bytes(), written)

	// Only the image is left in the output directory.
	entries, err := afero.ReadDir(fs, "out")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "update.bin", entries[0].Name())
}

func TestBuildFile_NoOutputOnFailure(t *testing.T) {
	cp := copyELF()
	cp.Symbols = nil
	fs := newTestFs(t, cp, appELF())

	_, err := New(WithFs(fs)).BuildFile(testParams(), "update.bin")
	require.Error(t, err)
	assert.Equal(t, StageResolveEntry, StageOf(err))

	exists, err := afero.Exists(fs, "update.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildFile_WriteError(t *testing.T) {
	fs := afero.NewReadOnlyFs(newTestFs(t, copyELF(), appELF()))

	_, err := New(WithFs(fs)).BuildFile(testParams(), "update.bin")
	require.Error(t, err)
	assert.Equal(t, StageWrite, StageOf(err))

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "update.bin", ioErr.Path)
}

// failingRenameFs lets the temporary image be written but refuses to move
// it into place.
type failingRenameFs struct {
	afero.Fs
}

func (fs failingRenameFs) Rename(oldname, newname string) error {
	return errors.New("rename refused")
}

func TestBuildFile_RenameError(t *testing.T) {
	mem := newTestFs(t, copyELF(), appELF())
	require.NoError(t, mem.MkdirAll("out", 0o755))

	_, err := New(WithFs(failingRenameFs{mem})).BuildFile(testParams(), "out/update.bin")
	require.Error(t, err)
	assert.Equal(t, StageWrite, StageOf(err))

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "rename", ioErr.Op)
	assert.Equal(t, "out/update.bin", ioErr.Path)

	// Neither the image nor the temporary file is left behind.
	entries, err := afero.ReadDir(mem, "out")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuildFile_Progress(t *testing.T) {
	var stages []Stage
	b := New(
		WithFs(newTestFs(t, copyELF(), appELF())),
		WithProgressCallback(func(p Progress) {
			stages = append(stages, p.Stage)
		}),
	)

	_, err := b.BuildFile(testParams(), "update.bin")
	require.NoError(t, err)

	assert.Equal(t, []Stage{
		StageInit,
		StageExtractCopy,
		StageResolveEntry,
		StageExtractApp,
		StageEncodeHeader,
		StageComputeCRC,
		StageSplice,
		StageWrite,
		StageDone,
	}, stages)
}

func TestBuild_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := level.NewFilter(log.NewLogfmtLogger(&buf), level.AllowDebug())

	_, err := New(
		WithFs(newTestFs(t, copyELF(), appELF())),
		WithLogger(logger),
	).Build(testParams())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `msg=segment file=copy.elf index=0 paddr=0x08081000`)
	assert.Contains(t, out, "included=true")
	assert.Contains(t, out, "new_app_address=0x08081064")
	assert.Contains(t, out, `msg="image assembled"`)
}

func TestBuild_SectionMode(t *testing.T) {
	app := appELF()
	// Initialized data stored in flash but linked for RAM is only part of
	// the segment layout.
	app.Segments = append(app.Segments, elftest.Segment{
		Name: ".data", PAddr: 0x080000C8, VAddr: 0x20000000, Data: elftest.Pattern(8, 0x90),
	})
	fs := newTestFs(t, copyELF(), app)

	segments, err := New(WithFs(fs)).Build(testParams())
	require.NoError(t, err)
	sections, err := New(WithFs(fs), WithExtractMode(elfimg.ModeSections)).Build(testParams())
	require.NoError(t, err)

	assert.Equal(t, uint32(208), segments.Header.NewAppLength)
	assert.Equal(t, uint32(200), sections.Header.NewAppLength)
}

func TestImage_WriteTo(t *testing.T) {
	img, err := New(WithFs(newTestFs(t, copyELF(), appELF()))).Build(testParams())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := img.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(img.Len()), n)
	assert.Equal(t, img.Bytes(), buf.Bytes())
}

func BenchmarkAssemble(b *testing.B) {
	cp, err := elfimg.NewFile(bytes.NewReader(copyELF().Bytes()), "copy.elf")
	if err != nil {
		b.Fatal(err)
	}
	app := appELF()
	app.Segments[0].Data = elftest.Pattern(256*1024, 0)
	appExe, err := elfimg.NewFile(bytes.NewReader(app.Bytes()), "app.elf")
	if err != nil {
		b.Fatal(err)
	}

	bld := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := bld.Assemble(cp, testCopyWindow, appExe, testAppWindow, testStorage, testHW, testSW); err != nil {
			b.Fatal(err)
		}
	}
}
