package workflow

import (
	"context"
	"fmt"
	"strings"

	"sheetsql/internal/assistant"
	"sheetsql/internal/session"
	"sheetsql/internal/sheets"
)

// NoExplanation stands in for an explanation the assistant did not give.
const NoExplanation = "(no answer available)"

const previewRows = 5

// TableReport describes one loaded sheet.
type TableReport struct {
	Table       string `json:"table"`
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
	Missing     bool   `json:"missing"`
	Explanation string `json:"explanation"`
	Answered    bool   `json:"answered"`
}

// Summary is the size line of the report.
func (r TableReport) Summary() string {
	return fmt.Sprintf("Table '%s' has %d rows and %d columns.", r.Table, r.Rows, r.Columns)
}

// Warning is the missing-values line, empty when no cell is missing.
func (r TableReport) Warning() string {
	if !r.Missing {
		return ""
	}
	return fmt.Sprintf("Warning: The sheet '%s' contains missing values. This might affect SQL generation.", r.Table)
}

// Analyze reports on every sheet in the session, in upload order, asking
// the assistant to explain a preview of each.
func (g *Generator) Analyze(ctx context.Context, st *session.State) []TableReport {
	var reports []TableReport
	for _, sh := range st.Sheets().Sheets() {
		reports = append(reports, g.analyzeSheet(ctx, sh))
	}
	return reports
}

func (g *Generator) analyzeSheet(ctx context.Context, sh *sheets.Sheet) TableReport {
	r := TableReport{
		Table:   sh.Name,
		Rows:    sh.NumRows(),
		Columns: sh.NumColumns(),
		Missing: sh.HasMissing(),
	}

	reply := g.sender.Send(ctx, assistant.ExplainTablePrompt(sh.Head(previewRows)), assistant.AnalystSystemPrompt)
	if reply.OK() {
		r.Explanation = reply.Text
		r.Answered = true
	} else {
		r.Explanation = NoExplanation
		g.logger.Warn("Table explanation failed", "error", reply.Err, "table", sh.Name)
	}
	return r
}

// RenderReports formats reports as plain text.
func RenderReports(reports []TableReport) string {
	var b strings.Builder
	for _, r := range reports {
		b.WriteString(r.Summary())
		b.WriteString("\n\n")
		if w := r.Warning(); w != "" {
			b.WriteString(w)
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Explanation: %s\n\n", r.Explanation)
	}
	return b.String()
}
