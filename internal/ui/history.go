package ui

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// MeetingRow is one line of the meeting history table.
type MeetingRow struct {
	Code string
	When time.Time
}

// RenderHistory writes the meeting history as a table, newest first as given.
func RenderHistory(w io.Writer, rows []MeetingRow) {
	if len(rows) == 0 {
		io.WriteString(w, MutedStyle.Render("No meetings yet")+"\n")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgCyan, text.Bold}
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"#", "Meeting code", "Joined"})
	for i, r := range rows {
		t.AppendRow(table.Row{i + 1, r.Code, r.When.Local().Format("2006-01-02 15:04")})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})
	t.Render()
}
