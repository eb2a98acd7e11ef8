package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/writebench/internal/bench"
	"github.com/wesleyorama2/writebench/internal/metrics"
	"github.com/wesleyorama2/writebench/internal/stats"
)

// OutputFormat represents the format of the output
type OutputFormat string

const (
	// FormatText is the human-readable console format
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON
	FormatJSON OutputFormat = "json"
	// FormatYAML is YAML
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat parses an output format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// LatencySummary is the printable subset of a latency distribution.
type LatencySummary struct {
	Mean string `json:"mean" yaml:"mean"`
	P50  string `json:"p50" yaml:"p50"`
	P95  string `json:"p95" yaml:"p95"`
	P99  string `json:"p99" yaml:"p99"`
	Max  string `json:"max" yaml:"max"`
}

// ScenarioReport is the outcome of one scenario, completed or aborted.
// Stored is the store's document count after the scenario and is omitted
// when the backend cannot count.
type ScenarioReport struct {
	Name          string                    `json:"name" yaml:"name"`
	Workers       int                       `json:"workers" yaml:"workers"`
	Stores        int                       `json:"stores" yaml:"stores"`
	Mode          string                    `json:"mode" yaml:"mode"`
	Documents     int64                     `json:"numberOfDocuments" yaml:"numberOfDocuments"`
	Written       int64                     `json:"written" yaml:"written"`
	Stored        *int64                    `json:"stored,omitempty" yaml:"stored,omitempty"`
	FailedWrites  int64                     `json:"failedWrites" yaml:"failedWrites"`
	Bytes         int64                     `json:"bytes" yaml:"bytes"`
	ElapsedMillis int64                     `json:"timeInMs" yaml:"timeInMs"`
	DocsPerSecond int64                     `json:"docsPerSecond" yaml:"docsPerSecond"`
	At            time.Time                 `json:"at,omitempty" yaml:"at,omitempty"`
	Latency       *LatencySummary           `json:"latency,omitempty" yaml:"latency,omitempty"`
	WorkerLatency map[string]LatencySummary `json:"workerLatency,omitempty" yaml:"workerLatency,omitempty"`
	Error         string                    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Aborted reports whether the scenario ended in error.
func (r ScenarioReport) Aborted() bool {
	return r.Error != ""
}

// NewScenarioReport builds a report from a runner outcome. res is nil when
// the scenario aborted.
func NewScenarioReport(sc bench.Scenario, documents int, res *bench.Result, err error) ScenarioReport {
	r := ScenarioReport{
		Name:      sc.Name,
		Workers:   sc.Workers,
		Stores:    sc.Stores,
		Mode:      sc.Mode.String(),
		Documents: int64(documents),
	}
	if err != nil {
		r.Error = err.Error()
		var scErr *bench.ScenarioError
		if errors.As(err, &scErr) && scErr.Metrics != nil {
			r.Written = scErr.Metrics.Writes - scErr.Metrics.FailedWrites
			r.FailedWrites = scErr.Metrics.FailedWrites
			r.Bytes = scErr.Metrics.Bytes
		}
	}
	if res == nil {
		return r
	}

	r.Documents = res.Record.NumberOfDocuments
	r.Written = res.Written
	if res.Counted {
		stored := res.Stored
		r.Stored = &stored
	}
	r.FailedWrites = res.Metrics.FailedWrites
	r.Bytes = res.Metrics.Bytes
	r.ElapsedMillis = res.Record.ElapsedMillis
	r.DocsPerSecond = res.Record.DocsPerSecond
	r.At = res.Record.At
	if res.Metrics.Latency.Count > 0 {
		summary := summarizeLatency(res.Metrics.Latency)
		r.Latency = &summary
	}
	for worker, l := range res.WorkerLatency {
		if l.Count == 0 {
			continue
		}
		if r.WorkerLatency == nil {
			r.WorkerLatency = make(map[string]LatencySummary, len(res.WorkerLatency))
		}
		r.WorkerLatency[worker] = summarizeLatency(l)
	}
	return r
}

func summarizeLatency(l metrics.LatencyStats) LatencySummary {
	return LatencySummary{
		Mean: formatDurationShort(l.Mean),
		P50:  formatDurationShort(l.P50),
		P95:  formatDurationShort(l.P95),
		P99:  formatDurationShort(l.P99),
		Max:  formatDurationShort(l.Max),
	}
}

// RunReport is the outcome of a whole catalog run.
type RunReport struct {
	Name      string           `json:"name" yaml:"name"`
	Backend   string           `json:"backend" yaml:"backend"`
	Documents int              `json:"documents" yaml:"documents"`
	Partition string           `json:"partition" yaml:"partition"`
	Scenarios []ScenarioReport `json:"scenarios" yaml:"scenarios"`
}

// Aborted counts the scenarios that ended in error.
func (r RunReport) Aborted() int {
	n := 0
	for _, s := range r.Scenarios {
		if s.Aborted() {
			n++
		}
	}
	return n
}

// TransactionSummary is the printable form of a self-test transaction.
type TransactionSummary struct {
	Name          string   `json:"name" yaml:"name"`
	TransactionID string   `json:"transactionId" yaml:"transactionId"`
	Status        string   `json:"status" yaml:"status"`
	Participants  []string `json:"participants" yaml:"participants"`
	Error         string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// SummarizeSelfTest converts self-test reports for printing.
func SummarizeSelfTest(reports []bench.TransactionReport) []TransactionSummary {
	out := make([]TransactionSummary, 0, len(reports))
	for _, r := range reports {
		s := TransactionSummary{
			Name:          r.Name,
			TransactionID: r.TransactionID,
			Status:        r.Status.String(),
		}
		for _, p := range r.Participants {
			s.Participants = append(s.Participants, p.String())
		}
		if r.Err != nil {
			s.Error = r.Err.Error()
		}
		out = append(out, s)
	}
	return out
}

// StatsReport is the printable form of the statistics aggregate.
type StatsReport struct {
	Backend string             `json:"backend" yaml:"backend"`
	Runs    []stats.StatRecord `json:"runs" yaml:"runs"`
}

// Encode writes v to w in the given structured format.
func Encode(w io.Writer, format OutputFormat, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not a structured format", format)
	}
}
