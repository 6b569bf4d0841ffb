package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"sheetsql/cmd"
	"sheetsql/internal/importer"
	"sheetsql/internal/session"
	"sheetsql/internal/sheets"
	"sheetsql/internal/store"
	"sheetsql/internal/workflow"
)

// renderMarkdown renders markdown content with glamour for beautiful display
func renderMarkdown(content string, width int) (string, error) {
	// Account for borders, padding, and glamour's internal gutter
	const glamourGutter = 2
	const borderWidth = 4 // 2 for border characters, 2 for padding

	renderWidth := width - borderWidth - glamourGutter
	if renderWidth < 40 {
		renderWidth = 40 // Minimum width for readable content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return "", err
	}

	return renderer.Render(content)
}

type view int

const (
	mainView view = iota
	tablesView
)

type focus int

const (
	focusPrompt focus = iota
	focusTable
)

type model struct {
	app         *cmd.App
	state       *session.State
	currentView view
	focus       focus
	promptInput textinput.Model
	tableInput  textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	list        list.Model
	content     string // markdown shown in the viewport
	lastQuery   string
	width       int
	height      int
	err         error
	busy        string // what we are waiting on, empty when idle
	status      string
	ready       bool
}

type tableItem struct {
	sheet *sheets.Sheet
}

func (i tableItem) Title() string {
	return i.sheet.Name
}

func (i tableItem) Description() string {
	missing := ""
	if i.sheet.HasMissing() {
		missing = " | has missing values"
	}
	return fmt.Sprintf("%d rows | %d columns | %s%s",
		i.sheet.NumRows(),
		i.sheet.NumColumns(),
		strings.Join(i.sheet.NormalizedColumns(), ", "),
		missing,
	)
}

func (i tableItem) FilterValue() string {
	return i.sheet.Name
}

type importMsg struct {
	notices []importer.Notice
	err     error
}

type generateMsg struct {
	outcome workflow.Outcome
}

type analyzeMsg struct {
	reports []workflow.TableReport
}

type runMsg struct {
	result *store.Result
	err    error
}

type copyMsg struct {
	err error
}

// loadFiles reads workbooks into the session and imports them
func loadFiles(app *cmd.App, st *session.State, paths []string) tea.Cmd {
	return func() tea.Msg {
		set, err := sheets.LoadPaths(paths...)
		if err != nil {
			return importMsg{err: err}
		}
		st.SetSheets(set)
		return importMsg{notices: app.Importer().Import(context.Background(), set)}
	}
}

func addData(app *cmd.App, st *session.State) tea.Cmd {
	return func() tea.Msg {
		notices, err := workflow.AddData(context.Background(), st, app.Importer())
		return importMsg{notices: notices, err: err}
	}
}

func generateQuery(app *cmd.App, st *session.State, prompt, table string) tea.Cmd {
	return func() tea.Msg {
		return generateMsg{outcome: app.Generator().GenerateQuery(context.Background(), st, prompt, table)}
	}
}

func analyzeSheets(app *cmd.App, st *session.State) tea.Cmd {
	return func() tea.Msg {
		return analyzeMsg{reports: app.Generator().Analyze(context.Background(), st)}
	}
}

func runQuery(app *cmd.App, query string) tea.Cmd {
	return func() tea.Msg {
		result, err := workflow.Run(context.Background(), app.Store, query, runRowLimit)
		return runMsg{result: result, err: err}
	}
}

func copyQuery(query string) tea.Cmd {
	return func() tea.Msg {
		return copyMsg{err: clipboard.WriteAll(query)}
	}
}

func initialModel(app *cmd.App, st *session.State) model {
	pi := textinput.New()
	pi.Placeholder = "Enter your prompt (e.g., 'Select all data from the student performance table')"
	pi.Focus()
	pi.CharLimit = 1000
	pi.Width = 70

	ti := textinput.New()
	ti.Placeholder = "Table name"
	ti.CharLimit = 200
	ti.Width = 30

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))

	delegate := list.NewDefaultDelegate()
	delegate.SetHeight(2)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Loaded tables"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = lipgloss.NewStyle().
		Background(lipgloss.Color("62")).
		Foreground(lipgloss.Color("230")).
		Padding(0, 1)

	vp := viewport.New(80, 20)
	vp.Style = lipgloss.NewStyle()

	return model{
		app:         app,
		state:       st,
		currentView: mainView,
		focus:       focusPrompt,
		promptInput: pi,
		tableInput:  ti,
		spinner:     sp,
		list:        l,
		viewport:    vp,
		width:       80,
		height:      24,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width/2, msg.Height-4)

		// Reserve lines for the header, both inputs, status and help text
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 12
		if m.viewport.Height < 5 {
			m.viewport.Height = 5
		}
		m.ready = true
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		if m.currentView == tablesView {
			return m.handleTablesViewKeys(msg)
		}
		return m.handleMainViewKeys(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case importMsg:
		m.busy = ""
		if msg.err != nil {
			m.err = msg.err
			m.app.Logger.Error("Import failed", "error", msg.err)
			return m, nil
		}
		m.err = nil
		m.status = uploadSuccess
		m.setContent(noticesMarkdown(msg.notices))
		m.app.Logger.Info("Import completed", "sheets", len(msg.notices), "failed", len(importer.Failed(msg.notices)))
		return m, nil

	case generateMsg:
		m.busy = ""
		o := msg.outcome
		m.err = nil
		m.status = ""
		if !o.OK() {
			m.err = fmt.Errorf("%s", o.Message)
			if o.Recorded() {
				m.setContent(historyMarkdown(m.state.History()))
			}
			return m, nil
		}
		m.lastQuery = o.Query
		m.setContent(outcomeMarkdown(o))
		return m, nil

	case analyzeMsg:
		m.busy = ""
		m.err = nil
		if len(msg.reports) == 0 {
			m.err = workflow.ErrNoData
			return m, nil
		}
		m.setContent(reportsMarkdown(msg.reports))
		return m, nil

	case runMsg:
		m.busy = ""
		if msg.err != nil {
			m.err = fmt.Errorf("query failed: %w", msg.err)
			m.app.Logger.Warn("Query run failed", "error", msg.err, "sql", m.lastQuery)
			return m, nil
		}
		m.err = nil
		m.setContent(resultMarkdown(m.lastQuery, msg.result))
		return m, nil

	case copyMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("copy failed: %w", msg.err)
			return m, nil
		}
		m.status = "Query copied to clipboard"
		return m, nil
	}

	if m.currentView == mainView {
		var cmd tea.Cmd
		if m.focus == focusPrompt {
			m.promptInput, cmd = m.promptInput.Update(msg)
		} else {
			m.tableInput, cmd = m.tableInput.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// start marks the model busy and runs c alongside the spinner
func (m model) start(what string, c tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = what
	m.err = nil
	m.status = ""
	return m, tea.Batch(c, m.spinner.Tick)
}

func (m model) handleMainViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyTab, tea.KeyShiftTab:
		if m.focus == focusPrompt {
			m.focus = focusTable
			m.promptInput.Blur()
			m.tableInput.Focus()
		} else {
			m.focus = focusPrompt
			m.tableInput.Blur()
			m.promptInput.Focus()
		}
		return m, nil

	case tea.KeyEnter:
		if m.busy != "" {
			return m, nil
		}
		return m.start("Generating SQL query",
			generateQuery(m.app, m.state, m.promptInput.Value(), strings.TrimSpace(m.tableInput.Value())))

	case tea.KeyCtrlA:
		if m.busy != "" {
			return m, nil
		}
		return m.start("Analyzing tables", analyzeSheets(m.app, m.state))

	case tea.KeyCtrlD:
		if m.busy != "" {
			return m, nil
		}
		return m.start("Adding data", addData(m.app, m.state))

	case tea.KeyCtrlR:
		if m.busy != "" || m.lastQuery == "" {
			return m, nil
		}
		return m.start("Running query", runQuery(m.app, m.lastQuery))

	case tea.KeyCtrlY:
		if m.lastQuery == "" {
			return m, nil
		}
		return m, copyQuery(workflow.Statement(m.lastQuery))

	case tea.KeyCtrlO:
		m.setContent(historyMarkdown(m.state.History()))
		return m, nil

	case tea.KeyCtrlT:
		items := make([]list.Item, 0)
		for _, sh := range m.state.Sheets().Sheets() {
			items = append(items, tableItem{sheet: sh})
		}
		m.list.SetItems(items)
		m.currentView = tablesView
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.focus == focusPrompt {
		m.promptInput, cmd = m.promptInput.Update(msg)
	} else {
		m.tableInput, cmd = m.tableInput.Update(msg)
	}
	return m, cmd
}

func (m model) handleTablesViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		m.currentView = mainView
		return m, nil

	case tea.KeyEnter:
		if item, ok := m.list.SelectedItem().(tableItem); ok {
			m.tableInput.SetValue(item.sheet.Name)
			m.setContent(sheetMarkdown(item.sheet))
		}
		m.currentView = mainView
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) setContent(markdown string) {
	m.content = markdown
	m.refreshViewport()
}

func (m *model) refreshViewport() {
	if m.content == "" {
		m.viewport.SetContent("")
		return
	}
	rendered, err := renderMarkdown(m.content, m.width)
	if err != nil {
		m.app.Logger.Warn("Markdown render failed", "error", err)
		rendered = m.content
	}
	m.viewport.SetContent(rendered)
	m.viewport.GotoTop()
}

func (m model) View() string {
	if m.currentView == tablesView {
		return m.tablesViewRender()
	}
	return m.mainViewRender()
}

const chartBarWidth = 20

// tablesViewRender shows the table list next to row counts and the
// column fill rates of the highlighted table
func (m model) tablesViewRender() string {
	var charts strings.Builder
	if rows := rowCountChart(m.state.Sheets(), chartBarWidth); rows != "" {
		charts.WriteString(headerStyle.Render("Rows"))
		charts.WriteString("\n")
		charts.WriteString(rows)
	}
	if item, ok := m.list.SelectedItem().(tableItem); ok {
		charts.WriteString("\n")
		charts.WriteString(headerStyle.Render("Filled cells: " + item.sheet.Name))
		charts.WriteString("\n")
		charts.WriteString(columnFillChart(item.sheet, chartBarWidth))
	}

	body := m.list.View()
	if charts.Len() > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			body,
			inputStyle.Render(strings.TrimRight(charts.String(), "\n")),
		)
	}
	return body + "\n" + helpStyle.Render("Enter: Use table | Esc: Back")
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)
	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (m model) mainViewRender() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("sheetsql"))
	b.WriteString("\n")

	tables := m.state.TableNames()
	if len(tables) == 0 {
		b.WriteString(helpStyle.Render("No tables loaded. Start sheetsql with workbook paths to load them."))
	} else {
		b.WriteString(helpStyle.Render("Tables: " + strings.Join(tables, ", ")))
	}
	b.WriteString("\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		inputStyle.Render(m.promptInput.View()),
		inputStyle.Render(m.tableInput.View()),
	))
	b.WriteString("\n")

	switch {
	case m.busy != "":
		b.WriteString(fmt.Sprintf("%s %s...", m.spinner.View(), m.busy))
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")

	if m.content != "" {
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
	}

	help := "Tab: Switch field | Enter: Generate | Ctrl+A: Analyze | Ctrl+D: Add data | Ctrl+R: Run query | " +
		"Ctrl+Y: Copy query | Ctrl+T: Tables | Ctrl+O: History | Esc: Quit"
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func noticesMarkdown(notices []importer.Notice) string {
	var b strings.Builder
	b.WriteString("# Import\n\n")
	for _, n := range notices {
		mark := "✓"
		if !n.OK() {
			mark = "✗"
		}
		fmt.Fprintf(&b, "- %s %s\n", mark, n.Message())
	}
	return b.String()
}

func outcomeMarkdown(o workflow.Outcome) string {
	var b strings.Builder
	b.WriteString("## Generated SQL Query\n\n")
	fmt.Fprintf(&b, "```sql\n%s\n```\n\n", o.Query)
	if o.Query != strings.TrimSpace(o.Response) {
		b.WriteString("### Full response\n\n")
		b.WriteString(o.Response)
		b.WriteString("\n\n")
	}
	if o.Explanation != "" {
		b.WriteString("## Execution Explanation\n\n")
		b.WriteString(o.Explanation)
		b.WriteString("\n")
	}
	return b.String()
}

func reportsMarkdown(reports []workflow.TableReport) string {
	var b strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", r.Table, r.Summary())
		if w := r.Warning(); w != "" {
			fmt.Fprintf(&b, "> %s\n\n", w)
		}
		fmt.Fprintf(&b, "**Explanation:** %s\n\n", r.Explanation)
	}
	return b.String()
}

func resultMarkdown(query string, result *store.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "```sql\n%s\n```\n\n", workflow.Statement(query))
	if len(result.Columns) == 0 {
		b.WriteString("_No columns returned._\n")
		return b.String()
	}

	b.WriteString("| " + strings.Join(result.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(result.Columns)) + "\n")
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = strings.ReplaceAll(fmt.Sprint(v), "|", "\\|")
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	if result.Truncated {
		fmt.Fprintf(&b, "\n_Showing the first %d rows._\n", len(result.Rows))
	}
	return b.String()
}

func historyMarkdown(history []session.Exchange) string {
	var b strings.Builder
	b.WriteString("# Chat history\n\n")
	if len(history) == 0 {
		b.WriteString("_No prompts yet._\n")
		return b.String()
	}
	for i, e := range history {
		fmt.Fprintf(&b, "%d. **User:** %s\n\n", i+1, e.Prompt)
		if e.Answered {
			fmt.Fprintf(&b, "   ```\n%s\n   ```\n\n", e.Response)
		} else {
			fmt.Fprintf(&b, "   _%s_\n\n", workflow.MsgNoAnswer)
		}
	}
	return b.String()
}

func sheetMarkdown(sh *sheets.Sheet) string {
	return fmt.Sprintf("## %s\n\n```\n%s\n```\n", sh.Name, sh.Head(10))
}
