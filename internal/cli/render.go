package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/specialistvlad/femloop/internal/app"
	"github.com/specialistvlad/femloop/internal/gradient"
	"github.com/specialistvlad/femloop/internal/history"
	"github.com/specialistvlad/femloop/internal/params"
	"github.com/specialistvlad/femloop/internal/solver"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.Render()
}

// RenderSolve formats the outputs of one solve, its validation warnings and
// any exported time history.
func RenderSolve(res *solver.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Run %d finished in %s", res.Run, res.Elapsed.Round(time.Millisecond))))
	b.WriteString("\n")
	b.WriteString(renderTable([]string{"Parameter", "Value"}, setRows(res.Outputs)))

	for _, m := range res.Mismatches {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("warning: " + m.String()))
	}
	if !res.History.Empty() {
		b.WriteString("\n")
		b.WriteString(RenderHistory(res.History))
	}
	return b.String()
}

// RenderHistory formats a time-history table, the time axis first.
func RenderHistory(t *history.Table) string {
	var headers []string
	for _, id := range t.IDs() {
		if id == history.TimeSeries {
			headers = append(headers, "time")
			continue
		}
		headers = append(headers, "var "+strconv.Itoa(id))
	}
	var rows [][]string
	for _, r := range t.Rows() {
		row := make([]string, len(r))
		for i, f := range r {
			row[i] = strconv.FormatFloat(f, 'g', 6, 64)
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows)
}

// RenderGradient formats derivatives with one row per output and one column
// per varied input.
func RenderGradient(res *gradient.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s differences, dh=%g, %d solves in %s",
		res.Method, res.Step, res.Solves, res.Elapsed.Round(time.Millisecond))))
	b.WriteString("\n")

	headers := append([]string{"d output / d input"}, res.Inputs...)
	var rows [][]string
	for _, out := range res.Outputs {
		row := []string{out}
		for _, in := range res.Inputs {
			cell := "-"
			if d, ok := res.Get(out, in); ok {
				cell = strconv.FormatFloat(d, 'g', 6, 64)
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	b.WriteString(renderTable(headers, rows))
	return b.String()
}

// RenderStatus formats a status snapshot as a two-column table.
func RenderStatus(st app.Status) string {
	running := "no"
	if st.Running {
		running = "yes"
	}
	rows := [][]string{
		{"session", st.Session},
		{"state", st.State},
		{"job", st.Job},
		{"running", running},
		{"control", fmt.Sprintf("go=%t done=%t kill=%t runs=%d", st.Control.Go, st.Control.Done, st.Control.Kill, st.Control.Runs)},
	}
	if len(st.LastInput) > 0 {
		names := make([]string, 0, len(st.LastInput))
		for name := range st.LastInput {
			names = append(names, name)
		}
		sort.Strings(names)
		pairs := make([]string, len(names))
		for i, name := range names {
			pairs[i] = name + "=" + st.LastInput[name]
		}
		rows = append(rows, []string{"last input", strings.Join(pairs, " ")})
	}
	if st.LastError != "" {
		rows = append(rows, []string{"last error", st.LastError})
	}
	return renderTable([]string{"Field", "Value"}, rows)
}

// RenderRuns formats journal records, newest first.
func RenderRuns(views []app.RunView) string {
	if len(views) == 0 {
		return "no runs recorded"
	}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		id := v.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, []string{
			id,
			strconv.Itoa(v.Run),
			v.Job,
			v.Started.Local().Format(time.DateTime),
			(time.Duration(v.ElapsedMs) * time.Millisecond).String(),
			strconv.Itoa(v.Mismatches),
			v.Error,
		})
	}
	return renderTable([]string{"ID", "Run", "Job", "Started", "Elapsed", "Mismatches", "Error"}, rows)
}

func setRows(set *params.Set) [][]string {
	var rows [][]string
	set.Range(func(name string, v params.Value) bool {
		rows = append(rows, []string{name, v.String()})
		return true
	})
	return rows
}
