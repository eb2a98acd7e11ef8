package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/writebench/internal/bench"
	"github.com/wesleyorama2/writebench/internal/metrics"
	"github.com/wesleyorama2/writebench/internal/stats"
	"github.com/wesleyorama2/writebench/internal/txn"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0ms"},
		{500 * time.Microsecond, "500µs"},
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.50s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDurationShort(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDurationShort(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		rate     int64
		expected string
	}{
		{-1, "n/a docs/s"},
		{0, "0 docs/s"},
		{400, "400 docs/s"},
		{1234567, "1,234,567 docs/s"},
	}
	for _, tt := range tests {
		if got := formatRate(tt.rate); got != tt.expected {
			t.Errorf("formatRate(%d) = %q, want %q", tt.rate, got, tt.expected)
		}
	}
}

func TestStripANSI(t *testing.T) {
	in := "\033[32mgreen\033[0m plain"
	if got := stripANSI(in); got != "green plain" {
		t.Errorf("stripANSI() = %q, want %q", got, "green plain")
	}
	if got := padRight("\033[1mab\033[0m", 4); stripANSI(got) != "ab  " {
		t.Errorf("padRight() visible = %q, want %q", stripANSI(got), "ab  ")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatText, "text": FormatText, "JSON": FormatJSON, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("junit"); err == nil {
		t.Error("ParseFormat(junit) should fail")
	}
}

func sampleRun() RunReport {
	ok := &bench.Result{
		Scenario: bench.Scenario{Name: "documents-with-bulk-insert", Workers: 1, Stores: 1, Mode: bench.BulkStreaming},
		Record:   stats.NewRecord("documents-with-bulk-insert", 10000, 2*time.Second, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Written:  10000,
		Stored:   10000,
		Counted:  true,
		Metrics: metrics.Snapshot{
			Writes:  10000,
			Bytes:   130000,
			Latency: metrics.LatencyStats{Count: 10000, P50: 80 * time.Microsecond, P99: 2 * time.Millisecond},
		},
		WorkerLatency: map[string]metrics.LatencyStats{
			"worker-0": {Count: 10000, P50: 80 * time.Microsecond},
		},
	}
	aborted := bench.Scenario{Name: "threads-sharing-one-store", Workers: 4, Stores: 1, Mode: bench.PerItemCommit}
	abortErr := &bench.ScenarioError{
		Scenario: aborted.Name,
		Err:      errors.New("write conflict"),
		Metrics:  &metrics.Snapshot{Writes: 7, FailedWrites: 1, Bytes: 91},
	}

	return RunReport{
		Name:      "nightly",
		Backend:   "memory",
		Documents: 10000,
		Partition: "lossy",
		Scenarios: []ScenarioReport{
			NewScenarioReport(ok.Scenario, 10000, ok, nil),
			NewScenarioReport(aborted, 10000, nil, abortErr),
		},
	}
}

func TestNewScenarioReport(t *testing.T) {
	run := sampleRun()
	done, failed := run.Scenarios[0], run.Scenarios[1]

	if done.DocsPerSecond != 5000 || done.ElapsedMillis != 2000 || done.Mode != "bulk-streaming" {
		t.Errorf("completed report = %+v", done)
	}
	if done.Latency == nil || done.Latency.P50 != "80µs" || done.Latency.P99 != "2ms" {
		t.Errorf("Latency = %+v", done.Latency)
	}
	if done.Stored == nil || *done.Stored != 10000 || done.Bytes != 130000 {
		t.Errorf("completed report counters = %+v", done)
	}
	if done.WorkerLatency["worker-0"].P50 != "80µs" {
		t.Errorf("WorkerLatency = %+v", done.WorkerLatency)
	}
	if !failed.Aborted() || failed.Latency != nil || failed.Documents != 10000 || failed.Stored != nil {
		t.Errorf("aborted report = %+v", failed)
	}
	if failed.Written != 6 || failed.FailedWrites != 1 {
		t.Errorf("aborted counters = written %d, failed %d; want 6, 1", failed.Written, failed.FailedWrites)
	}

	plain := NewScenarioReport(aborted, 10, nil, errors.New("setup failed"))
	if plain.Written != 0 || plain.FailedWrites != 0 {
		t.Errorf("report without metrics = %+v", plain)
	}
	if run.Aborted() != 1 {
		t.Errorf("Aborted() = %d, want 1", run.Aborted())
	}
}

func TestConsole_RunOutput(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, NoColor: true})

	run := sampleRun()
	c.PrintHeader(run, len(run.Scenarios))
	for _, s := range run.Scenarios {
		c.ScenarioFinished(s)
	}
	c.PrintSummary(run)

	out := buf.String()
	for _, want := range []string{
		"nightly - 10,000 documents x 2 scenarios on memory (lossy partition)",
		"✓ documents-with-bulk-insert",
		"5,000 docs/s",
		"p50 80µs",
		"10,000 stored",
		"✗ threads-sharing-one-store",
		"aborted: scenario threads-sharing-one-store aborted: write conflict",
		"6 written before 1 failed",
		"Scenarios: 1 completed, 1 aborted",
		"Fastest:   documents-with-bulk-insert at 5,000 docs/s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("NoColor output contains escape codes")
	}
}

func TestConsole_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true, NoColor: true})

	run := sampleRun()
	c.PrintHeader(run, 2)
	for _, s := range run.Scenarios {
		c.ScenarioFinished(s)
	}
	c.PrintSummary(run)

	out := buf.String()
	if strings.Contains(out, "documents-with-bulk-insert") {
		t.Errorf("quiet mode printed a completed scenario:\n%s", out)
	}
	if !strings.Contains(out, "threads-sharing-one-store") || !strings.HasSuffix(out, "FAILED\n") {
		t.Errorf("quiet mode output = %q", out)
	}
}

func TestConsole_ForceColors(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, ForceColors: true})
	c.PrintCatalog(bench.DefaultCatalog(2, 2))

	if !strings.Contains(buf.String(), "\033[") {
		t.Error("forced colors produced no escape codes")
	}
	if !strings.Contains(stripANSI(buf.String()), "two-phase-commit-per-document") {
		t.Error("catalog output is missing a scenario")
	}
}

func TestConsole_PrintStats(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, NoColor: true})

	c.PrintStats("embedded", nil)
	if !strings.Contains(buf.String(), "no statistics recorded on embedded") {
		t.Errorf("empty stats output = %q", buf.String())
	}

	buf.Reset()
	c.PrintStats("embedded", []stats.StatRecord{
		stats.NewRecord("instant", 10, 0, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	out := buf.String()
	if !strings.Contains(out, "1 recorded runs on embedded") || !strings.Contains(out, "n/a docs/s") {
		t.Errorf("stats output = %q", out)
	}
}

func TestConsole_PrintSelfTest(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, NoColor: true})

	summaries := SummarizeSelfTest([]bench.TransactionReport{
		{Name: "first", TransactionID: "tx-1", Status: txn.StatusCommitted, Participants: []txn.State{txn.StateCommitted}},
		{Name: "second", TransactionID: "tx-2", Status: txn.StatusRolledBack, Participants: []txn.State{txn.StateRolledBack}, Err: errors.New("write conflict")},
	})
	c.PrintSelfTest("memory", summaries)

	out := buf.String()
	if !strings.Contains(out, "tx-1") || !strings.Contains(out, "(write conflict)") {
		t.Errorf("self-test output = %q", out)
	}
	if summaries[1].Participants[0] != txn.StateRolledBack.String() {
		t.Errorf("Participants = %v", summaries[1].Participants)
	}
}

func TestEncode(t *testing.T) {
	run := sampleRun()

	var buf bytes.Buffer
	if err := Encode(&buf, FormatJSON, run); err != nil {
		t.Fatalf("Encode(json) error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	scenarios := decoded["scenarios"].([]any)
	first := scenarios[0].(map[string]any)
	if first["docsPerSecond"].(float64) != 5000 {
		t.Errorf("docsPerSecond = %v, want 5000", first["docsPerSecond"])
	}

	buf.Reset()
	if err := Encode(&buf, FormatYAML, run); err != nil {
		t.Fatalf("Encode(yaml) error = %v", err)
	}
	var y RunReport
	if err := yaml.Unmarshal(buf.Bytes(), &y); err != nil {
		t.Fatalf("yaml output does not parse: %v", err)
	}
	if !strings.HasSuffix(y.Scenarios[1].Error, "write conflict") {
		t.Errorf("yaml scenario error = %q", y.Scenarios[1].Error)
	}

	if err := Encode(&buf, FormatText, run); err == nil {
		t.Error("Encode(text) should fail")
	}
}

func TestConsole_Println(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true, NoColor: true})
	c.Println("Catalog finished.")
	if buf.String() != "Catalog finished.\n" {
		t.Errorf("Println() wrote %q", buf.String())
	}
}
