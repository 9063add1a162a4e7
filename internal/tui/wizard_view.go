package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/reconsole/internal/journal"
	"github.com/jask/reconsole/internal/wizard"
)

func (a *App) handleWizardKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	w := a.wiz
	if w == nil {
		a.setState(viewSources)
		return a, nil
	}

	switch w.Step() {
	case wizard.StepUpload:
		return a.handleWizardUploadKey(m)
	case wizard.StepMap:
		return a.handleWizardMapKey(m)
	case wizard.StepConfirm:
		return a.handleWizardConfirmKey(m)
	}
	a.setState(viewSources)
	return a, nil
}

func (a *App) handleWizardUploadKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.abandonWizard()
		return a, nil
	case "enter":
		if a.wiz.Busy() {
			a.status = "upload in progress"
			return a, nil
		}
		path := strings.TrimSpace(a.pathInput.Value())
		if path == "" {
			a.status = "enter a CSV path"
			return a, nil
		}
		return a, a.uploadCmd(path)
	}
	var cmd tea.Cmd
	a.pathInput, cmd = a.pathInput.Update(m)
	return a, cmd
}

func (a *App) uploadCmd(path string) tea.Cmd {
	abs := path
	if !filepath.IsAbs(path) {
		if p, err := filepath.Abs(path); err == nil {
			abs = p
		}
	}
	a.status = "uploading..."
	return func() tea.Msg {
		f, err := os.Open(abs)
		if err != nil {
			return errMsg{fmt.Errorf("open %s: %w", abs, err)}
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return errMsg{err}
		}
		if err := a.wiz.Upload(a.ctx, filepath.Base(abs), info.Size(), f); err != nil {
			return errMsg{err}
		}
		return uploadDoneMsg{}
	}
}

func (a *App) handleWizardMapKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	w := a.wiz
	fields := a.mappingFields()
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.abandonWizard()
		return a, nil
	case "b":
		w.Back()
		a.pathInput.Focus()
		return a, nil
	case "up", "k":
		if a.mapCursor > 0 {
			a.mapCursor--
		}
	case "down", "j":
		if a.mapCursor < len(fields)-1 {
			a.mapCursor++
		}
	case "backspace", "delete":
		if a.mapCursor < len(fields) {
			w.ClearMapping(fields[a.mapCursor])
		}
	case "enter":
		if err := w.Next(); err != nil {
			a.status = err.Error()
			return a, nil
		}
		a.status = ""
		return a, a.priorSubsCmd()
	default:
		// digits assign the column at that index to the selected field
		if n, err := strconv.Atoi(m.String()); err == nil && a.mapCursor < len(fields) {
			if err := w.SetMapping(fields[a.mapCursor], n); err != nil {
				a.status = err.Error()
			} else {
				a.status = ""
			}
		}
	}
	return a, nil
}

func (a *App) mappingFields() []string {
	w := a.wiz
	return append(append([]string{}, w.RequiredFields()...), w.OptionalFields()...)
}

func (a *App) handleWizardConfirmKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	w := a.wiz
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.abandonWizard()
		return a, nil
	case "b":
		w.Back()
		a.status = ""
		return a, nil
	case "enter", "y":
		if w.Busy() {
			a.status = "submission in progress"
			return a, nil
		}
		if len(a.priorSubs) > 0 {
			a.modal = modalConfirmSubmit
			return a, nil
		}
		return a, a.processCmd()
	}
	return a, nil
}

func (a *App) processCmd() tea.Cmd {
	w := a.wiz
	a.status = "submitting..."
	return func() tea.Msg {
		req, err := w.BuildProcessRequest()
		if err != nil {
			return errMsg{err}
		}

		var entryID string
		if a.journal != nil {
			entryID, err = a.journal.Record(a.ctx, journal.Submission{
				PreviewURL:   req.PreviewURL,
				DataSourceID: req.DataSourceID,
				Filename:     req.Filename,
				DateFormat:   req.DateFormat,
			})
			if err != nil {
				return errMsg{fmt.Errorf("journal: %w", err)}
			}
		}

		resp, err := w.Process(a.ctx)
		if a.journal != nil && entryID != "" {
			outcome := journal.OutcomeAccepted
			var importID *string
			if err != nil {
				outcome = journal.OutcomeFailed
			} else if resp.ImportID != "" {
				importID = &resp.ImportID
			}
			_ = a.journal.SetOutcome(a.ctx, entryID, outcome, importID)
		}
		if err != nil {
			return errMsg{err}
		}
		return processDoneMsg{resp: resp}
	}
}

func (a *App) abandonWizard() {
	a.wiz = nil
	a.priorSubs = nil
	a.setState(viewSources)
	a.status = ""
}

func (a *App) renderWizard() string {
	w := a.wiz
	if w == nil {
		return "no import in progress"
	}
	src := "(none)"
	if w.Source() != nil {
		src = w.Source().Name
	}
	title := titleStyle.Render(fmt.Sprintf("Import into %s — %s", src, w.Step()))
	out := title + "\n"

	switch w.Step() {
	case wizard.StepUpload:
		out += "CSV path\n" + a.pathInput.View() + "\n"
		out += "\n[enter] Upload for preview  [esc] Cancel"
	case wizard.StepMap:
		out += a.renderMappingTable()
		out += "\n[0-9] Assign column  [del] Clear  [enter] Continue  [b] Back  [esc] Cancel"
	case wizard.StepConfirm:
		out += a.renderConfirm()
		out += "\n[enter] Process file  [b] Back to mapping  [esc] Cancel"
	}
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderMappingTable() string {
	w := a.wiz
	out := "Columns:\n"
	for i, col := range w.Columns() {
		out += fmt.Sprintf("  [%d] %s\n", i, col)
	}
	out += "\nField mappings:\n"
	required := make(map[string]bool)
	for _, f := range w.RequiredFields() {
		required[f] = true
	}
	fields := a.mappingFields()
	for i, f := range fields {
		marker := " "
		if i == a.mapCursor {
			marker = "▶"
		}
		req := " "
		if required[f] {
			req = "*"
		}
		target := dimStyle.Render("(unmapped)")
		if header, ok := w.MappedHeader(f); ok {
			idx := w.Mapping()[f]
			target = fmt.Sprintf("[%d] %s", idx, header)
		}
		out += a.fit(fmt.Sprintf("%s %s %-14s → %s", marker, req, f, target)) + "\n"
	}
	if missing := w.MissingRequired(); len(missing) > 0 {
		out += dangerStyle.Render("Missing required: "+strings.Join(missing, ", ")) + "\n"
		for _, h := range w.Hints() {
			out += dimStyle.Render(fmt.Sprintf("  hint: %q looks like %s (column %d)", h.Header, h.Field, h.Column)) + "\n"
		}
	}
	if rows := w.Preview(); len(rows) > 1 {
		out += "\nPreview:\n"
		limit := len(rows)
		if limit > 4 {
			limit = 4
		}
		for _, row := range rows[:limit] {
			out += a.fit("  "+strings.Join(row, " | ")) + "\n"
		}
	}
	return out
}

func (a *App) renderConfirm() string {
	w := a.wiz
	out := fmt.Sprintf("File: %s\nDate format: %s\n", w.FileName(), w.DateFormat())
	out += "Mappings:\n"
	for field, idx := range w.Mapping() {
		header, _ := w.MappedHeader(field)
		out += fmt.Sprintf("  %-14s → [%d] %s\n", field, idx, header)
	}
	if len(a.priorSubs) > 0 {
		out += dangerStyle.Render(fmt.Sprintf("\nThis file was already submitted %d time(s):", len(a.priorSubs))) + "\n"
		for _, s := range a.priorSubs {
			out += fmt.Sprintf("  %s  %s  %s\n", s.SubmittedAt.Format("2006-01-02 15:04"), s.Outcome, s.Filename)
		}
		out += "Processing is not retried automatically; submitting again creates a second import.\n"
	}
	if w.Busy() {
		out += "\nsubmitting..."
	}
	return out
}
