package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
	if Named("test") == nil {
		t.Fatal("named logger is nil")
	}
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf).Named("localize")
	if err := SetLevelString("debug"); err != nil {
		t.Fatalf("SetLevelString: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	log.Info(context.Background(), "column found",
		Int("column_x", 420),
		Float64("score", 0.5),
		String("hero", "Iron Man"),
		Error(errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{"column found", "column_x=420", "score=0.5", `hero="Iron Man"`, "error=boom", "component=localize", "source="} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)
	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("SetLevelString: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	log.Debug(context.Background(), "hidden debug")
	log.Info(context.Background(), "hidden info")
	log.Warn(context.Background(), "shown warn")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("records below level were written: %s", out)
	}
	if !strings.Contains(out, "shown warn") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestSetLevelString(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"INFO", false},
		{"", false},
		{"warning", false},
		{" error ", false},
		{"verbose", true},
	}
	defer func() { _ = SetLevelString("info") }()

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := SetLevelString(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetLevelString(%q): got err %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Error(context.Background(), "nothing")
	log.Named("x").Info(context.TODO(), "still nothing")
}
