package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/moffa90/go-fwpack/elfimg"
	"github.com/moffa90/go-fwpack/metadata"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

func statusOK() string {
	return okColor.Sprint("OK")
}

func statusFail() string {
	return failColor.Sprint("FAIL")
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func hex(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}

// printHeader renders all header fields, including the constant ones, in
// storage order.
func printHeader(w io.Writer, h metadata.Header) {
	table := newTable(w, "Offset", "Field", "Value")
	table.Append([]string{"0x00", "magic", fmt.Sprintf("0x%016X", metadata.Magic)})
	table.Append([]string{"0x08", "crc", hex(h.CRC)})
	table.Append([]string{"0x0C", "metadata version", fmt.Sprint(metadata.Version)})
	table.Append([]string{"0x10", "storage address", hex(h.StorageAddress)})
	table.Append([]string{"0x14", "hardware version", fmt.Sprintf("%s (%s)", h.HardwareVersion, hex(h.HardwareVersion.Uint32()))})
	table.Append([]string{"0x18", "software version", fmt.Sprintf("%s (%s)", h.SoftwareVersion, hex(h.SoftwareVersion.Uint32()))})
	table.Append([]string{"0x1C", "copy entry address", hex(h.CopyEntryAddress)})
	table.Append([]string{"0x20", "new app address", hex(h.NewAppAddress)})
	table.Append([]string{"0x24", "new app length", fmt.Sprintf("%s (%s)", hex(h.NewAppLength), humanize.IBytes(uint64(h.NewAppLength)))})
	table.Append([]string{"0x28", "new app destination", hex(h.NewAppDestination)})
	table.Render()
}

// printBinary renders the regions that went into an extracted binary.
func printBinary(w io.Writer, title string, bin *elfimg.Binary) {
	fmt.Fprintf(w, "%s: %s at %s\n", title, humanize.IBytes(uint64(bin.Len())), hex(bin.Base))
	table := newTable(w, "Region", "Address", "Size")
	for _, r := range bin.Regions {
		table.Append([]string{r.Name, hex(r.Addr), humanize.IBytes(uint64(r.Size))})
	}
	table.Render()
}
