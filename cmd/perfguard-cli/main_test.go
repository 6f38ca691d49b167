package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/amiyaDev/perfguard/internal/rules"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{
			name:    "valid directory",
			args:    []string{"validate", "--dir", "../../internal/rules/testdata/valid"},
			wantOut: "All rule files are valid",
		},
		{
			name:     "invalid directory",
			args:     []string{"validate", "--dir", "../../internal/rules/testdata/invalid"},
			wantCode: exitInvalid,
		},
		{
			name:    "single valid file",
			args:    []string{"validate", "--file", "../../internal/rules/testdata/valid/core.yaml"},
			wantOut: "All rule files are valid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := runCLI(t, tt.args...)

			if tt.wantCode == exitSuccess {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.Contains(stdout, tt.wantOut) {
					t.Errorf("expected %q in output, got %q", tt.wantOut, stdout)
				}
				return
			}

			var ec exitCodeError
			if !errors.As(err, &ec) || ec.code != tt.wantCode {
				t.Errorf("expected exit code %d, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestValidateRequiresOneSource(t *testing.T) {
	if _, _, err := runCLI(t, "validate"); err == nil {
		t.Error("expected error without --dir or --file")
	}
	if _, _, err := runCLI(t, "validate", "--dir", "a", "--file", "b"); err == nil {
		t.Error("expected error with both --dir and --file")
	}
}

func TestReportValidation(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := reportValidation(&stdout, &stderr, []rules.ValidationError{
		{File: "/tmp/b.yaml", Message: "bad"},
		{File: "/tmp/a.yaml", Path: "/rules/0", Message: "missing id"},
	})

	if code != exitInvalid {
		t.Errorf("expected exit code %d, got %d", exitInvalid, code)
	}
	out := stderr.String()
	if !strings.Contains(out, "2 error(s)") {
		t.Errorf("expected error count, got %q", out)
	}
	if strings.Index(out, "a.yaml: /rules/0: missing id") > strings.Index(out, "b.yaml: bad") {
		t.Errorf("expected errors sorted by file, got %q", out)
	}
}

func TestRulesCommand(t *testing.T) {
	stdout, _, err := runCLI(t, "rules", "--group", rules.GroupHints)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "DEV_HINT_MEMOIZATION") {
		t.Errorf("expected hint rule in output, got %q", stdout)
	}
	if strings.Contains(stdout, "BLOCKING_RENDER") {
		t.Errorf("expected only hint group, got %q", stdout)
	}

	if _, _, err := runCLI(t, "rules", "--group", "NOPE"); err == nil {
		t.Error("expected error for unknown group")
	}

	stdout, _, err = runCLI(t, "rules", "--yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != string(rules.BuiltinYAML()) {
		t.Error("expected raw catalogue YAML")
	}
}

func TestReplay(t *testing.T) {
	input := `[
		[{"component": "Looping", "renders": 150, "avgTime": 5, "maxTime": 8}],
		[],
		[],
		[]
	]`

	var events bytes.Buffer
	reports, err := replay(strings.NewReader(input), replayOptions{
		HistoryCapacity:  10,
		MissingThreshold: 3,
	}, &events)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if len(reports) != 4 {
		t.Fatalf("expected 4 reports, got %d", len(reports))
	}

	first := reports[0]
	if !first.HasCritical {
		t.Error("expected a critical issue in the first batch")
	}
	if first.Summary.New == 0 {
		t.Fatal("expected new issues in the first batch")
	}

	for i := 1; i < 3; i++ {
		if reports[i].Summary.Resolved != 0 {
			t.Errorf("batch %d: expected nothing resolved yet, got %+v", i+1, reports[i].Summary)
		}
	}
	if reports[3].Summary.Resolved != first.Summary.New {
		t.Errorf("expected %d resolved after 3 absent batches, got %+v", first.Summary.New, reports[3].Summary)
	}

	log := events.String()
	if !strings.Contains(log, "CRITICAL") || !strings.Contains(log, "resolved") {
		t.Errorf("expected critical and resolved events, got %q", log)
	}
}

func TestReplayBadInput(t *testing.T) {
	var events bytes.Buffer
	if _, err := replay(strings.NewReader("{"), replayOptions{HistoryCapacity: 10}, &events); err == nil {
		t.Error("expected decode error")
	}
}

func TestWriteReportsJSON(t *testing.T) {
	reports := []BatchReport{{Batch: 1, HasCritical: true}}

	var buf bytes.Buffer
	if err := writeReports(&buf, reports, true); err != nil {
		t.Fatalf("writeReports failed: %v", err)
	}

	var decoded []BatchReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(decoded) != 1 || !decoded[0].HasCritical {
		t.Errorf("unexpected decoded reports %+v", decoded)
	}
}
