package pipeline

// Stage identifies a pipeline stage.
type Stage int

const (
	StageTokenize Stage = iota
	StageVocabulary
	StageEncode
	StageTrain
	StageStore
	StageIndex
)

func (s Stage) String() string {
	names := [...]string{
		"tokenize",
		"vocabulary",
		"encode",
		"train",
		"store",
		"index",
	}
	if s >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// ProgressEvent is emitted during pipeline execution. Train events carry
// the statistics of the epoch that just finished.
type ProgressEvent struct {
	Stage   Stage
	Section string
	Status  ProgressStatus
	Message string
	Epoch   *EpochProgress
}

// EpochProgress is the per-epoch view of a training run.
type EpochProgress struct {
	Epoch        int
	Epochs       int
	Pairs        int64
	Loss         float64
	LearningRate float64
	Processed    int64 // raw tokens consumed so far, all epochs
	Total        int64 // raw tokens in the whole run (tokens * epochs)
}

// Fraction is Processed/Total clamped to [0, 1].
func (e EpochProgress) Fraction() float64 {
	if e.Total <= 0 {
		return 0
	}
	return min(1, max(0, float64(e.Processed)/float64(e.Total)))
}

// ProgressStatus is the state of a section within a stage.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)
