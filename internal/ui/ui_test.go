package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/muurk/canbridge/internal/deviceconfig"
)

func TestHeader_ParamOrder(t *testing.T) {
	h := NewHeader("Apply Settings", "canbridge-cfg set",
		Param{Key: "Adapter", Value: "http://192.168.2.163:80"},
		Param{Key: "Changes", Value: "1"},
	).SetWidth(80)

	out := h.Render()
	if !strings.Contains(out, "APPLY SETTINGS") {
		t.Errorf("Render() missing upper-case title:\n%s", out)
	}
	if strings.Index(out, "Adapter") > strings.Index(out, "Changes") {
		t.Errorf("params rendered out of order:\n%s", out)
	}
}

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Settings applied", Param{Key: "Sent", Value: "can_bitrate"}),
			want:   []string{"SUCCESS", "Settings applied", "Sent:", "can_bitrate"},
		},
		{
			name:   "warning",
			result: NewWarningResult("No changes"),
			want:   []string{"WARNING", "No changes"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Submit failed", errors.New("refused"), []string{"Check the port"}),
			want:   []string{"FAILED", "Error: refused", "Troubleshooting:", "Check the port"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("Render() missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestTroubleshootingFor(t *testing.T) {
	hint := "The adapter did not respond in time.\nTroubleshooting:\n  • Check power\n  • Wait a few seconds"
	got := TroubleshootingFor(hint)
	want := []string{"The adapter did not respond in time.", "Check power", "Wait a few seconds"}

	if len(got) != len(want) {
		t.Fatalf("TroubleshootingFor() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TroubleshootingFor()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProgress_Steps(t *testing.T) {
	p := NewProgress("Applying settings...", []string{"Fetch", "Submit", "Reload"})

	p.Update(1, StepRunning, "")
	if p.Done() != 0 {
		t.Errorf("Done() = %d, want 0", p.Done())
	}
	p.Update(1, StepComplete, "")
	p.Update(2, StepSkipped, "")
	if f := p.Fraction(); f < 0.66 || f > 0.67 {
		t.Errorf("Fraction() = %v, want 2/3", f)
	}

	p.Update(4, StepFailed, "ignored")
	pending := p.Pending()
	if len(pending) != 1 || pending[0] != 3 {
		t.Errorf("Pending() = %v, want [3]", pending)
	}

	out := p.Render()
	if !strings.Contains(out, StepMarkerSkipped) {
		t.Error("Render() missing skipped marker")
	}
	if !strings.Contains(out, "[2/3]") {
		t.Error("Render() missing step counter")
	}
}

func TestOutputBox_MaxLines(t *testing.T) {
	box := NewOutputBox("Status", "a\nb\nc\nd").SetWidth(80).SetMaxLines(2)
	out := box.Render()
	if !strings.Contains(out, "2 more lines") {
		t.Errorf("Render() missing truncation note:\n%s", out)
	}
}

func TestRunner_Success(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:     "Apply Settings",
		Command:   "canbridge-cfg set can_bitrate=250",
		StepNames: []string{"Fetch", "Submit"},
		Verbose:   true,
		Output:    &buf,
		Width:     80,
	})

	err := r.Run(context.Background(), func(ctx context.Context, onStep StepCallback) ([]Param, error) {
		onStep(1, "", StepRunning, "")
		onStep(1, "", StepComplete, "")
		onStep(2, "", StepComplete, "200")
		r.SetReply("Updating settings...")
		return []Param{{Key: "Sent", Value: "can_bitrate"}}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := buf.String()
	for _, w := range []string{"APPLY SETTINGS", "SUCCESS", "Duration", "Adapter reply", "Updating settings..."} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q", w)
		}
	}
}

func TestRunner_Failure(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:     "Apply Settings",
		StepNames: []string{"Fetch", "Submit", "Reload"},
		Output:    &buf,
		Width:     80,
	})

	wantErr := deviceconfig.NewHTTPError(500, "Invalid CAN bitrate value was given.")
	err := r.Run(context.Background(), func(ctx context.Context, onStep StepCallback) ([]Param, error) {
		onStep(1, "", StepComplete, "")
		onStep(2, "", StepFailed, "HTTP 500")
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Run() error = %v, want %v", err, wantErr)
	}

	if s := r.Progress().Steps[2].Status; s != StepSkipped {
		t.Errorf("step 3 status = %v, want skipped", s)
	}

	out := buf.String()
	for _, w := range []string{"FAILED", "HTTP 500", "Troubleshooting:"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q", w)
		}
	}
}

func TestRunner_Canceled(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:     "Apply Settings",
		StepNames: []string{"Fetch", "Confirm", "Submit"},
		Output:    &buf,
		Width:     80,
	})

	err := r.Run(context.Background(), func(ctx context.Context, onStep StepCallback) ([]Param, error) {
		onStep(1, "", StepComplete, "")
		return nil, ErrCanceled
	})
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("Run() error = %v, want ErrCanceled", err)
	}

	out := buf.String()
	if !strings.Contains(out, "WARNING") || !strings.Contains(out, "Nothing was sent") {
		t.Errorf("output = %q, want a canceled warning", out)
	}
	if strings.Contains(out, "FAILED") {
		t.Error("canceled run should not render a failure box")
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got := ConfirmSubmit(strings.NewReader(tt.input), &out, 80, []string{"CAN bitrate: 500 → 250"})
			if got != tt.want {
				t.Errorf("ConfirmSubmit(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "Apply these changes?") {
				t.Error("prompt not written")
			}
		})
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(80)
	p.PrintHeader("Adapter Status", "canbridge-cfg status")
	p.PrintOutput("Status", `{"Uptime (seconds)": 12}`)
	p.PrintPleaseWait("Waiting for the adapter to restart", "about 2 seconds")
	p.PrintSuccess("Registry updated", Param{Key: "Adapters", Value: "2 saved"})
	p.PrintWarning("Configuration incomplete", Param{Key: "Missing", Value: "wifi_gw"})

	out := buf.String()
	for _, w := range []string{"ADAPTER STATUS", "Uptime (seconds)", "Waiting for the adapter",
		"SUCCESS", "2 saved", "WARNING", "wifi_gw"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q", w)
		}
	}
}
