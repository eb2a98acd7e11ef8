// Package output renders benchmark results for the console and as
// structured documents.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wesleyorama2/writebench/internal/bench"
	"github.com/wesleyorama2/writebench/internal/stats"
)

const (
	boxHorizontal = "━"
	ruleWidth     = 72
	nameWidth     = 38
)

// Console writes human-readable output.
type Console struct {
	writer    io.Writer
	scheme    *ColorScheme
	useColors bool
	quiet     bool

	mu sync.Mutex
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer      io.Writer
	Quiet       bool
	NoColor     bool
	ForceColors bool
}

// NewConsole creates a new console output handler.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	useColors := !config.NoColor && (config.ForceColors || (isTerminal(config.Writer) && supportsColors()))

	scheme := NoColorScheme()
	if useColors {
		scheme = DefaultColorScheme().forceColors()
	}

	return &Console{
		writer:    config.Writer,
		scheme:    scheme,
		useColors: useColors,
		quiet:     config.Quiet,
	}
}

// PrintHeader prints the run header.
func (c *Console) PrintHeader(run RunReport, scenarios int) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(boxHorizontal, ruleWidth)
	c.writeln(c.scheme.Title.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s documents x %d scenarios on %s (%s partition)",
		c.scheme.Scenario.Sprint(run.Name),
		c.scheme.Number.Sprint(humanize.Comma(int64(run.Documents))),
		scenarios,
		c.scheme.Mode.Sprint(run.Backend),
		run.Partition))
	c.writeln(c.scheme.Title.Sprint(line))
	c.writeln("")
}

// ScenarioFinished prints one line for a completed or aborted scenario.
func (c *Console) ScenarioFinished(r ScenarioReport) {
	if c.quiet && !r.Aborted() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if r.Aborted() {
		c.writeln(fmt.Sprintf("%s %s %s",
			ErrorIcon(!c.useColors),
			padRight(c.scheme.Scenario.Sprint(r.Name), nameWidth),
			c.scheme.Error.Sprint("aborted: "+r.Error)))
		if r.FailedWrites > 0 {
			c.writeln(c.scheme.Dim.Sprintf("  %s written before %s failed",
				humanize.Comma(r.Written), humanize.Comma(r.FailedWrites)))
		}
		return
	}

	line := fmt.Sprintf("%s %s %s docs in %s  %s",
		SuccessIcon(!c.useColors),
		padRight(c.scheme.Scenario.Sprint(r.Name), nameWidth),
		c.scheme.Number.Sprint(humanize.Comma(r.Documents)),
		formatDuration(time.Duration(r.ElapsedMillis)*time.Millisecond),
		c.scheme.Rate.Sprint(formatRate(r.DocsPerSecond)))
	if r.Latency != nil {
		line += c.scheme.Latency.Sprintf("  p50 %s  p99 %s", r.Latency.P50, r.Latency.P99)
	}
	if r.Written != r.Documents {
		line += "  " + c.scheme.Warning.Sprintf("%s written", humanize.Comma(r.Written))
	}
	if r.Stored != nil {
		line += c.scheme.Dim.Sprintf("  %s stored", humanize.Comma(*r.Stored))
	}
	c.writeln(line)
}

// PrintSummary prints the final run summary.
func (c *Console) PrintSummary(run RunReport) {
	aborted := run.Aborted()
	completed := len(run.Scenarios) - aborted

	if c.quiet {
		if aborted == 0 {
			c.writeln(c.scheme.Success.Sprint("PASSED"))
		} else {
			c.writeln(c.scheme.Error.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln("")
	status := c.scheme.Success.Sprintf("%d completed", completed)
	if aborted > 0 {
		status += ", " + c.scheme.Error.Sprintf("%d aborted", aborted)
	}
	c.writeln(fmt.Sprintf("Scenarios: %s", status))

	var best *ScenarioReport
	for i := range run.Scenarios {
		s := &run.Scenarios[i]
		if s.Aborted() {
			continue
		}
		if best == nil || s.DocsPerSecond > best.DocsPerSecond {
			best = s
		}
	}
	if best != nil && best.DocsPerSecond >= 0 {
		c.writeln(fmt.Sprintf("Fastest:   %s at %s",
			c.scheme.Scenario.Sprint(best.Name),
			c.scheme.Rate.Sprint(formatRate(best.DocsPerSecond))))
	}
}

// PrintCatalog lists the scenarios of a catalog.
func (c *Console) PrintCatalog(catalog bench.Catalog) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sc := range catalog {
		c.writeln(fmt.Sprintf("%s %s %s",
			padRight(c.scheme.Scenario.Sprint(sc.Name), nameWidth),
			padRight(c.scheme.Mode.Sprint(sc.Mode.String()), 28),
			c.scheme.Dim.Sprintf("workers=%d stores=%d", sc.Workers, sc.Stores)))
	}
}

// PrintStats prints recorded statistics oldest first.
func (c *Console) PrintStats(backend string, runs []stats.StatRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(runs) == 0 {
		c.writeln(fmt.Sprintf("%s no statistics recorded on %s", WarningIcon(!c.useColors), backend))
		return
	}

	c.writeln(c.scheme.Title.Sprintf("%s recorded runs on %s", humanize.Comma(int64(len(runs))), backend))
	for _, r := range runs {
		c.writeln(fmt.Sprintf("  %s %s %s docs in %s  %s",
			c.scheme.Dim.Sprint(r.At.Format(time.RFC3339)),
			padRight(c.scheme.Scenario.Sprint(r.Description), nameWidth),
			c.scheme.Number.Sprint(humanize.Comma(r.NumberOfDocuments)),
			formatDuration(time.Duration(r.ElapsedMillis)*time.Millisecond),
			c.scheme.Rate.Sprint(formatRate(r.DocsPerSecond))))
	}
}

// PrintSelfTest prints the coordination self-test outcome.
func (c *Console) PrintSelfTest(backend string, summaries []TransactionSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(c.scheme.Title.Sprintf("coordination self-test on %s", backend))
	for _, s := range summaries {
		icon := SuccessIcon(!c.useColors)
		detail := c.scheme.Success.Sprint(s.Status)
		if s.Error != "" {
			icon = WarningIcon(!c.useColors)
			detail = c.scheme.Warning.Sprintf("%s (%s)", s.Status, s.Error)
		}
		c.writeln(fmt.Sprintf("  %s %s %s %s participants=[%s]",
			icon,
			padRight(s.Name, 6),
			c.scheme.Dim.Sprint(s.TransactionID),
			detail,
			strings.Join(s.Participants, " ")))
	}
}

// Println writes a plain line.
func (c *Console) Println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeln(s)
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatRate formats a docs/s figure; negative means no time elapsed.
func formatRate(docsPerSecond int64) string {
	if docsPerSecond < 0 {
		return "n/a docs/s"
	}
	return humanize.Comma(docsPerSecond) + " docs/s"
}

// padRight pads s to width visible characters.
func padRight(s string, width int) string {
	visible := len([]rune(stripANSI(s)))
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z') {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}

	return result.String()
}
