package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/vnykmshr/goexec/pkg/scheduling/executor"
)

// Status is the final state of a job.
type Status string

const (
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
	// StatusRejected means the pool refused or dropped the job.
	StatusRejected Status = "Rejected"
	// StatusNotRun means the job never finished, e.g. the pool was killed.
	StatusNotRun Status = "NotRun"
)

// JobResult is the outcome of one job.
type JobResult struct {
	Name     string
	Status   Status
	ExitCode int
	Duration time.Duration
	Err      error
}

// Summary aggregates job results.
type Summary struct {
	Total       int
	Succeeded   int
	Failed      int
	Rejected    int
	NotRun      int
	AvgDuration time.Duration
}

// Summarize counts results by status. AvgDuration covers finished jobs only.
func Summarize(results []JobResult) Summary {
	s := Summary{Total: len(results)}
	var total time.Duration
	finished := 0
	for _, r := range results {
		switch r.Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		case StatusRejected:
			s.Rejected++
		default:
			s.NotRun++
		}
		if r.Status == StatusSucceeded || r.Status == StatusFailed {
			total += r.Duration
			finished++
		}
	}
	if finished > 0 {
		s.AvgDuration = total / time.Duration(finished)
	}
	return s
}

// Renderer writes job and pool tables.
type Renderer struct {
	w      io.Writer
	colors *ColorScheme
	wide   bool
}

// NewRenderer creates a renderer for w. wide adds an error column.
func NewRenderer(w io.Writer, noColor, wide bool) *Renderer {
	return &Renderer{
		w:      w,
		colors: NewColorScheme(w, noColor),
		wide:   wide,
	}
}

// RenderResults prints one row per job followed by a summary line.
func (r *Renderer) RenderResults(results []JobResult) {
	if len(results) == 0 {
		fmt.Fprintln(r.w, "No jobs")
		return
	}

	table := newTable(r.w)
	headers := []string{"JOB", "STATUS", "EXIT", "DURATION"}
	if r.wide {
		headers = append(headers, "ERROR")
	}
	table.SetHeader(r.headers(headers))

	for _, res := range results {
		exit := "-"
		if res.Status == StatusSucceeded || res.Status == StatusFailed {
			exit = strconv.Itoa(res.ExitCode)
		}
		row := []string{
			r.colors.JobName("%s", res.Name),
			r.colors.StatusColor(res.Status)("%s", res.Status),
			exit,
			r.colors.Duration("%s", res.Duration.Round(time.Millisecond)),
		}
		if r.wide {
			msg := ""
			if res.Err != nil {
				msg = truncate(res.Err.Error(), 60)
			}
			row = append(row, msg)
		}
		table.Append(row)
	}
	table.Render()

	r.printSummary(Summarize(results))
}

func (r *Renderer) printSummary(s Summary) {
	succeeded := r.colors.Success("%d succeeded", s.Succeeded)
	failed := fmt.Sprintf("%d failed", s.Failed)
	if s.Failed > 0 {
		failed = r.colors.Error("%s", failed)
	}
	skipped := fmt.Sprintf("%d not run", s.Rejected+s.NotRun)
	if s.Rejected+s.NotRun > 0 {
		skipped = r.colors.Warning("%s", skipped)
	}
	avg := r.colors.Duration("avg=%s", s.AvgDuration.Round(time.Millisecond))

	fmt.Fprintln(r.w, "")
	fmt.Fprintf(r.w, "Summary: %s, %s, %s, %s\n", succeeded, failed, skipped, avg)
}

// RenderStats prints pool statistics as a key/value table.
func (r *Renderer) RenderStats(stats executor.Stats) {
	remaining := strconv.Itoa(stats.RemainingCapacity)
	if stats.RemainingCapacity < 0 {
		remaining = "unbounded"
	}

	table := newTable(r.w)
	table.SetHeader(r.headers([]string{"POOL", "VALUE"}))
	table.AppendBulk([][]string{
		{"name", stats.Name},
		{"state", stats.State},
		{"policy", stats.OverflowPolicy.String()},
		{"threads", fmt.Sprintf("%d (min %d, max %d, largest %d)", stats.Length, stats.MinLength, stats.MaxLength, stats.LargestLength)},
		{"queue", fmt.Sprintf("%d (remaining %s)", stats.QueueLength, remaining)},
		{"scheduled", strconv.FormatInt(stats.ScheduledTaskCount, 10)},
		{"completed", strconv.FormatInt(stats.CompletedTaskCount, 10)},
	})
	fmt.Fprintln(r.w, "")
	table.Render()
}

func (r *Renderer) headers(names []string) []string {
	if r.colors.Disabled {
		return names
	}
	out := make([]string, len(names))
	for i, h := range names {
		out[i] = r.colors.Header("%s", h)
	}
	return out
}

// newTable creates a table with kubectl-style configuration.
func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
