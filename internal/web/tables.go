package web

import (
	"html"
	"html/template"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"interact/internal/queue"
	"interact/internal/tasks"
)

// Row colours of the status tables.
const (
	colorQueued    = "#AFEEEE"
	colorCompleted = "darkseagreen"
	colorFailed    = "lightcoral"
	colorActive    = "#FFE4B5"
	colorCancelled = "#dec8d1"
)

var statusColors = map[tasks.Status]string{
	tasks.StatusQueued:    colorQueued,
	tasks.StatusCompleted: colorCompleted,
	tasks.StatusFailed:    colorFailed,
	tasks.StatusRunning:   colorActive,
	tasks.StatusSkipped:   colorActive,
	tasks.StatusCancelled: colorCancelled,
}

func statusColor(status tasks.Status) string {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return "white"
}

// newHTMLTable returns a writer whose cells are emitted verbatim; callers
// escape text through cell.
func newHTMLTable(class string, header ...string) table.Writer {
	style := table.StyleDefault
	style.Format.Header = text.FormatDefault
	style.HTML = table.HTMLOptions{
		CSSClass:    class,
		EmptyColumn: "&nbsp;",
		EscapeText:  false,
		Newline:     "<br/>",
	}
	tw := table.NewWriter()
	tw.SetStyle(style)
	row := make(table.Row, 0, len(header))
	for _, h := range header {
		row = append(row, h)
	}
	tw.AppendHeader(row)
	return tw
}

func cell(value, color string) string {
	return `<div style="background-color: ` + color + `">` + html.EscapeString(value) + `</div>`
}

// progressTable renders a job's stages coloured by status.
func progressTable(entries []tasks.Entry) template.HTML {
	if len(entries) == 0 {
		return ""
	}
	tw := newHTMLTable("progress-table", "Task Index", "Task", "Status")
	for _, e := range entries {
		color := statusColor(e.Status)
		tw.AppendRow(table.Row{
			cell(strconv.Itoa(e.TaskIndex), color),
			cell(e.TaskName, color),
			cell(string(e.Status), color),
		})
	}
	return template.HTML(tw.RenderHTML())
}

// queueTable renders the queue with the front entry highlighted.
func queueTable(entries []queue.Entry) template.HTML {
	tw := newHTMLTable("queue-table", "User", "Project", "Job ID", "Task Status")
	for i, e := range entries {
		color := colorQueued
		if i == 0 {
			color = colorActive
		}
		tw.AppendRow(table.Row{
			cell(e.User, color),
			cell(e.Project, color),
			cell(strconv.Itoa(e.TaskID), color),
			cell(e.Status, color),
		})
	}
	return template.HTML(tw.RenderHTML())
}
