package domain

// Stage is the position of one identifier in the ingestion pipeline.
type Stage string

const (
	StageStart         Stage = "start"
	StageFetching      Stage = "fetching"
	StageExtracting    Stage = "extracting"
	StageFiltering     Stage = "filtering"
	StageDeduplicating Stage = "deduplicating"
	StagePreviewing    Stage = "previewing"
	StageCommitting    Stage = "committing"
	StageDone          Stage = "done"
	StageAborted       Stage = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageAborted
}
