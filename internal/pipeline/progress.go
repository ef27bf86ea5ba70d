package pipeline

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// progressBarWidth is the number of cells in a rendered epoch bar.
const progressBarWidth = 20

// ProgressReporter fans pipeline events out through a buffered channel.
// Emit never blocks the trainer; events that do not fit are counted.
type ProgressReporter struct {
	ch      chan ProgressEvent
	dropped atomic.Int64
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, 64),
	}
}

// Emit sends a progress event without blocking.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	select {
	case pr.ch <- event:
	default:
		pr.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because no one was
// draining the channel fast enough.
func (pr *ProgressReporter) Dropped() int64 { return pr.dropped.Load() }

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress renders an event as one status line. Epoch events get a
// bar over raw tokens processed plus the epoch's loss and learning rate.
func FormatProgress(event ProgressEvent) string {
	if event.Epoch != nil && event.Status == ProgressWorking {
		return FormatEpoch(event.Section, *event.Epoch)
	}
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", event.Section)
	case ProgressWorking:
		if event.Message != "" {
			return fmt.Sprintf("  ● %s: %s", event.Section, event.Message)
		}
		return fmt.Sprintf("  ● %s...", event.Section)
	case ProgressComplete:
		if event.Message != "" {
			return fmt.Sprintf("  ✓ %s: %s", event.Section, event.Message)
		}
		return fmt.Sprintf("  ✓ %s done", event.Section)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", event.Section, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Section)
	}
}

// FormatEpoch renders e.g.
// "  ● train epoch 2/5 [########------------] 40% pairs=1200 loss=0.6931 lr=0.015000".
func FormatEpoch(section string, e EpochProgress) string {
	frac := e.Fraction()
	filled := int(frac * progressBarWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", progressBarWidth-filled)
	return fmt.Sprintf("  ● %s epoch %d/%d [%s] %3.0f%% pairs=%d loss=%.4f lr=%.6f",
		section, e.Epoch, e.Epochs, bar, frac*100, e.Pairs, e.Loss, e.LearningRate)
}

// FormatStageHeader formats a stage header for display.
// Returns: "[{run}] Stage {N}: {stage.String()}"
func FormatStageHeader(run string, stage Stage) string {
	return fmt.Sprintf("[%s] Stage %d: %s", run, int(stage), stage.String())
}
