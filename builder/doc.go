// Package builder assembles combined firmware update images.
//
// # Overview
//
// An update image holds everything a device needs to replace its
// application in one file:
//   - a 4096 byte metadata header (see package metadata)
//   - the copy routine, a small program that moves the new application
//     into its final flash location
//   - the new application
//
// The copy routine is linked to run directly from the storage area, so its
// window must start at StorageAddress + 0x1000. The application follows
// the copy routine without a gap; its stored address is recorded in the
// header together with its length and the flash address it is copied to.
//
// # Basic Usage
//
//	b := builder.New()
//
//	img, err := b.BuildFile(builder.Params{
//	    CopyRoutine: builder.Input{
//	        Path:   "copy.elf",
//	        Window: elfimg.Window{Start: 0x08081000, End: 0x08085000},
//	    },
//	    App: builder.Input{
//	        Path:   "app.elf",
//	        Window: elfimg.Window{Start: 0x08000000, End: 0x08080000},
//	    },
//	    StorageAddress:  0x08080000,
//	    HardwareVersion: metadata.NewVersion(1, 0, 0, 0),
//	    SoftwareVersion: metadata.NewVersion(2, 0, 0, 0),
//	}, "update.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("CRC 0x%08X\n", img.Header.CRC)
//
// # Build Stages
//
// A build runs through the stages init, extract copy routine, resolve
// entry, extract application, encode header, compute crc, splice crc and,
// for BuildFile, write image. Every failure is returned as a *BuildError
// carrying the stage; the cause is reachable with errors.As:
//
//	var symErr *elfimg.SymbolNotFoundError
//	if errors.As(err, &symErr) {
//	    fmt.Println("copy routine has no", symErr.Name)
//	}
//
// No output file exists after a failed BuildFile.
//
// # Configuration Options
//
//	b := builder.New(
//	    builder.WithLogger(logger),
//	    builder.WithProgressCallback(progressFunc),
//	    builder.WithEntrySymbol("copy_main"),
//	    builder.WithExtractMode(elfimg.ModeSections),
//	    builder.WithFs(afero.NewMemMapFs()),
//	)
//
// # Verification
//
// Verify applies the bootloader's acceptance checks to an existing image:
//
//	report, err := builder.Verify(data,
//	    builder.WithHardware(metadata.NewVersion(1, 0, 0, 0)),
//	    builder.WithInstalledSoftware(metadata.NewVersion(1, 4, 0, 0)),
//	)
//
// # Thread Safety
//
// A Builder holds only configuration and may be shared between goroutines.
// The progress callback is invoked synchronously from the building goroutine.
package builder
