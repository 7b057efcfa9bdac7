package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/glovestage/internal/config"
)

func TestSampleEnvelopes(t *testing.T) {
	curves, err := sampleEnvelopes(config.DefaultStageConfig(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("sampleEnvelopes failed: %v", err)
	}
	if len(curves) != 8 {
		t.Fatalf("expected 8 envelopes, got %d", len(curves))
	}
	last := curves[len(curves)-1]
	if last.name != "time/slowdown" {
		t.Errorf("expected time/slowdown last, got %q", last.name)
	}
	// 1s slowdown from 1 to 0.6 at 10ms steps.
	if len(last.values) != 101 || math.Abs(last.values[0]-0.6) > 1e-9 || last.values[100] != 1 {
		t.Errorf("unexpected slowdown trajectory: len=%d first=%v", len(last.values), last.values[0])
	}
}

func TestRenderPlot(t *testing.T) {
	curves, err := sampleEnvelopes(config.DefaultStageConfig(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("sampleEnvelopes failed: %v", err)
	}
	out := filepath.Join(t.TempDir(), "envelopes.png")
	if err := renderPlot(curves, 10*time.Millisecond, out); err != nil {
		t.Fatalf("renderPlot failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("output is not a PNG")
	}
}
