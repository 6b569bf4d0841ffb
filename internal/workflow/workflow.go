// Package workflow drives one user action at a time against a session:
// generating a query from a prompt, analyzing the loaded sheets, and
// re-importing or querying the durable store.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sheetsql/internal/assistant"
	"sheetsql/internal/importer"
	"sheetsql/internal/session"
	"sheetsql/internal/store"
)

// User-facing messages.
const (
	MsgEmptyPrompt = "Please enter a prompt to generate an SQL query."
	MsgNoAnswer    = "No answer available from the assistant."
	MsgNoData      = "No data to add. Please upload a document first."
	MsgDataAdded   = "Data added to the database."
)

// ErrNoData is returned by AddData when the session has no sheets.
var ErrNoData = errors.New(MsgNoData)

// Phase is a step of query generation.
type Phase int

const (
	Idle Phase = iota
	PromptEntered
	AwaitingModel
	Answered
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case PromptEntered:
		return "prompt_entered"
	case AwaitingModel:
		return "awaiting_model"
	case Answered:
		return "answered"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Outcome is the result of one GenerateQuery call. Failures are carried in
// Message and Err rather than returned.
type Outcome struct {
	Phase       Phase   `json:"phase"`
	Trace       []Phase `json:"trace"`
	Prompt      string  `json:"prompt"`
	Table       string  `json:"table"`
	Response    string  `json:"response,omitempty"`
	Query       string  `json:"query,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
	Message     string  `json:"message,omitempty"`
	Err         error   `json:"-"`
}

// OK reports whether a response was produced.
func (o Outcome) OK() bool {
	return o.Phase == Answered
}

// Recorded reports whether the exchange was added to the session history,
// which happens once the assistant has been called.
func (o Outcome) Recorded() bool {
	for _, p := range o.Trace {
		if p == AwaitingModel {
			return true
		}
	}
	return false
}

func (o *Outcome) enter(p Phase) {
	o.Phase = p
	o.Trace = append(o.Trace, p)
}

// Generator runs the query generation and analysis flows.
type Generator struct {
	sender assistant.Sender
	logger *slog.Logger
}

// New returns a Generator that talks to the assistant through sender.
func New(sender assistant.Sender, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{sender: sender, logger: logger}
}

// UnknownTableMessage is shown when table is not among the loaded sheets.
func UnknownTableMessage(table string, available []string) string {
	return fmt.Sprintf("Table '%s' not found in the uploaded data. Available tables are: %s.",
		table, strings.Join(available, ", "))
}

// GenerateQuery asks the assistant for a query answering prompt against
// table, then asks it to explain that query. The table must be one of the
// session's loaded sheets; otherwise the assistant is not called.
//
// Once the assistant has been called the exchange is recorded in the
// session history, whether or not a response came back. A failed
// explanation only drops the explanation.
func (g *Generator) GenerateQuery(ctx context.Context, st *session.State, prompt, table string) Outcome {
	out := Outcome{Prompt: prompt, Table: table}
	out.enter(Idle)

	if strings.TrimSpace(prompt) == "" {
		out.enter(Failed)
		out.Message = MsgEmptyPrompt
		return out
	}
	out.enter(PromptEntered)

	sh, ok := st.Sheet(table)
	if !ok {
		out.enter(Failed)
		out.Message = UnknownTableMessage(table, st.TableNames())
		g.logger.Info("Generation requested for unknown table", "table", table)
		return out
	}

	out.enter(AwaitingModel)
	system := assistant.SQLSystemPromptFor(table, sh.NormalizedColumns())
	reply := g.sender.Send(ctx, prompt, system)

	if !reply.OK() {
		out.enter(Failed)
		out.Message = MsgNoAnswer
		out.Err = reply.Err
		g.logger.Error("Query generation failed", "error", reply.Err, "table", table)
		st.Record(session.Exchange{Prompt: prompt, Table: table})
		return out
	}

	out.Response = reply.Text
	out.Query = assistant.ExtractQuery(reply.Text)

	explain := g.sender.Send(ctx, assistant.ExplainQueryPrompt(out.Query), system)
	if explain.OK() {
		out.Explanation = explain.Text
	} else {
		g.logger.Warn("Query explanation failed", "error", explain.Err, "table", table)
	}

	out.enter(Answered)
	st.Record(session.Exchange{Prompt: prompt, Response: reply.Text, Answered: true, Table: table})
	return out
}

// AddData re-imports the session's sheets. It returns ErrNoData when
// nothing has been uploaded.
func AddData(ctx context.Context, st *session.State, im *importer.Importer) ([]importer.Notice, error) {
	set := st.Sheets()
	if set.Len() == 0 {
		return nil, ErrNoData
	}
	return im.Import(ctx, set), nil
}

// Querier runs read-only SQL.
type Querier interface {
	Query(ctx context.Context, query string, limit int) (*store.Result, error)
}

// Run executes the first statement of an extracted query.
func Run(ctx context.Context, q Querier, extracted string, limit int) (*store.Result, error) {
	stmt := Statement(extracted)
	if stmt == "" {
		return nil, fmt.Errorf("no statement to run")
	}
	return q.Query(ctx, stmt, limit)
}

// Statement reduces an extracted query to its first statement: everything
// before the first markdown fence line, cut at the first ';' that is not
// inside a string literal, quoted identifier or comment, trimmed.
func Statement(extracted string) string {
	var b strings.Builder
	for _, line := range strings.Split(extracted, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if b.Len() == 0 {
				continue
			}
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	stmt, _, _ := store.CutStatement(b.String())
	return stmt
}
