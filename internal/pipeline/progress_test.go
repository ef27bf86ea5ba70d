package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReporter_EmitAndSubscribe(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	ch := pr.Subscribe()
	want := ProgressEvent{
		Stage:   StageTrain,
		Section: "train",
		Status:  ProgressWorking,
		Epoch:   &EpochProgress{Epoch: 1, Epochs: 5, Loss: 0.69, Processed: 10, Total: 50},
	}

	pr.Emit(want)

	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestProgressReporter_EmitWhenFull_DoesNotBlock(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pr.Emit(ProgressEvent{Stage: StageTrain, Section: "train", Status: ProgressWorking})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked when the channel was full")
	}
	assert.Equal(t, int64(100-64), pr.Dropped())
}

func TestProgressReporter_Close_ChannelClosed(t *testing.T) {
	pr := NewProgressReporter()
	ch := pr.Subscribe()

	pr.Emit(ProgressEvent{Stage: StageStore, Section: "store", Status: ProgressComplete})
	pr.Close()

	var received []ProgressEvent
	for ev := range ch {
		received = append(received, ev)
	}
	require.Len(t, received, 1)
	assert.Equal(t, ProgressComplete, received[0].Status)
}

func TestFormatProgress_AllStatuses(t *testing.T) {
	tests := []struct {
		name  string
		event ProgressEvent
		want  string
	}{
		{"pending", ProgressEvent{Section: "train", Status: ProgressPending}, "  ○ train (pending)"},
		{"working", ProgressEvent{Section: "train", Status: ProgressWorking}, "  ● train..."},
		{"working with message", ProgressEvent{Section: "train", Status: ProgressWorking, Message: "epoch 2/5"}, "  ● train: epoch 2/5"},
		{"complete", ProgressEvent{Section: "store", Status: ProgressComplete}, "  ✓ store done"},
		{"complete with message", ProgressEvent{Section: "vocabulary", Status: ProgressComplete, Message: "42 tokens"}, "  ✓ vocabulary: 42 tokens"},
		{"epoch", ProgressEvent{Section: "train", Status: ProgressWorking, Epoch: &EpochProgress{
			Epoch: 2, Epochs: 5, Pairs: 1200, Loss: 0.693147, LearningRate: 0.015, Processed: 40, Total: 100,
		}}, "  ● train epoch 2/5 [########------------]  40% pairs=1200 loss=0.6931 lr=0.015000"},
		{"failed epoch ignores stats", ProgressEvent{Section: "train", Status: ProgressFailed, Message: "context canceled",
			Epoch: &EpochProgress{Epoch: 1, Epochs: 5}}, "  ✗ train failed: context canceled"},
		{"failed", ProgressEvent{Section: "encode", Status: ProgressFailed, Message: "boom"}, "  ✗ encode failed: boom"},
		{"unknown", ProgressEvent{Section: "x", Status: "weird"}, "  ? x (unknown status)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatProgress(tt.event))
		})
	}
}

func TestEpochProgress_Fraction(t *testing.T) {
	assert.Equal(t, 0.0, EpochProgress{Processed: 5}.Fraction(), "unknown total")
	assert.Equal(t, 0.25, EpochProgress{Processed: 25, Total: 100}.Fraction())
	assert.Equal(t, 1.0, EpochProgress{Processed: 120, Total: 100}.Fraction())
}

func TestFormatStageHeader(t *testing.T) {
	assert.Equal(t, "[run-1] Stage 3: train", FormatStageHeader("run-1", StageTrain))
	assert.Equal(t, "[run-1] Stage 0: tokenize", FormatStageHeader("run-1", StageTokenize))
}

func TestStage_String(t *testing.T) {
	want := []string{"tokenize", "vocabulary", "encode", "train", "store", "index"}
	for i, name := range want {
		assert.Equal(t, name, Stage(i).String())
	}
	assert.Equal(t, "unknown", Stage(99).String())
	assert.Equal(t, "unknown", Stage(-1).String())
}
