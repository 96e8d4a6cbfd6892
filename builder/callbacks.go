package builder

import "time"

// Stage is one step of the build. Stages run strictly in the order of the
// constants below; a failure in any stage aborts the build.
type Stage string

const (
	StageInit         Stage = "init"
	StageExtractCopy  Stage = "extract copy routine"
	StageResolveEntry Stage = "resolve entry"
	StageExtractApp   Stage = "extract application"
	StageEncodeHeader Stage = "encode header"
	StageComputeCRC   Stage = "compute crc"
	StageSplice       Stage = "splice crc"
	StageWrite        Stage = "write image"
	StageDone         Stage = "done"
)

// Progress contains information about the build progress.
// Passed to ProgressCallback at the start of every stage.
type Progress struct {
	// Stage is the stage that is about to run
	Stage Stage

	// Bytes is the image size known so far
	Bytes int

	// ElapsedTime is the time elapsed since the build started
	ElapsedTime time.Duration
}

// ProgressCallback is called synchronously from the build.
type ProgressCallback func(Progress)
