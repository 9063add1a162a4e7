package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/reconsole/internal/api"
	"github.com/jask/reconsole/internal/registry"
	"github.com/jask/reconsole/internal/wizard"
)

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	}
	switch a.state {
	case viewSources:
		return a.handleSourcesKey(m)
	case viewDetail:
		return a.handleDetailKey(m)
	case viewWizard:
		return a.handleWizardKey(m)
	case viewImports:
		return a.handleImportsKey(m)
	case viewRows:
		return a.handleRowsKey(m)
	case viewUsers:
		return a.handleUsersKey(m)
	case viewSettings:
		return a.handleSettingsKey(m)
	}
	return a, nil
}

func (a *App) handleSourcesKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.searchInput.Focused() {
		switch m.String() {
		case "esc":
			a.searchInput.Blur()
			return a, nil
		case "enter":
			a.searchInput.Blur()
			a.searcher.SetQuery(a.searchInput.Value())
			return a, a.runSearchCmd()
		}
		var cmd tea.Cmd
		a.searchInput, cmd = a.searchInput.Update(m)
		a.searcher.SetQuery(a.searchInput.Value())
		return a, tea.Batch(cmd, a.searchCmd())
	}

	switch m.String() {
	case "q":
		return a, tea.Quit
	case "/":
		a.searchInput.Focus()
		return a, nil
	case "up", "k":
		if a.srcCursor > 0 {
			a.srcCursor--
		}
	case "down", "j":
		if a.srcCursor < len(a.sources)-1 {
			a.srcCursor++
		}
	case "left", "h":
		if a.sourcePage.Offset > 0 {
			a.searcher.SetOffset(max(0, a.sourcePage.Offset-a.pageSize()))
			return a, a.runSearchCmd()
		}
	case "right", "l":
		if a.sourcePage.HasMore {
			a.searcher.SetOffset(a.sourcePage.Offset + a.pageSize())
			return a, a.runSearchCmd()
		}
	case "enter":
		if len(a.sources) > 0 {
			return a, a.loadDetailCmd(a.sources[a.srcCursor].ID)
		}
	case "n":
		a.modal = modalNewSourceName
		a.inputBuffer = ""
		a.draftName = ""
	case "x", "backspace", "delete":
		if len(a.sources) > 0 {
			a.editingID = a.sources[a.srcCursor].ID
			a.modal = modalDeleteSource
		}
	case "w":
		if len(a.sources) > 0 {
			a.startWizard(a.sources[a.srcCursor])
			return a, nil
		}
		a.status = "select a data source to import into"
	case "u":
		a.setState(viewUsers)
		return a, a.loadUsersCmd()
	case "p":
		a.setState(viewSettings)
	case "r":
		return a, a.runSearchCmd()
	}
	return a, nil
}

func (a *App) startWizard(ds registry.DataSource) {
	w := wizard.New(a.client, a.cfg.UI.DateFormat)
	if err := w.SelectSource(ds); err != nil {
		a.status = "error: " + err.Error()
		return
	}
	if err := w.Next(); err != nil {
		a.status = "error: " + err.Error()
		return
	}
	a.wiz = w
	a.detail = &ds // the imports view after processing shows this source
	a.lastImport = nil
	a.priorSubs = nil
	a.pathInput.SetValue("")
	a.pathInput.Focus()
	a.setState(viewWizard)
	a.status = ""
}

func (a *App) renderSources() string {
	title := titleStyle.Render(a.brandedTitle("Data Sources"))
	out := title + "\n" + a.searchInput.View() + "\n"

	if len(a.sources) == 0 {
		out += dimStyle.Render("  no data sources match") + "\n"
	}
	for i, ds := range a.sources {
		marker := " "
		if i == a.srcCursor {
			marker = "▶"
		}
		schema := dimStyle.Render("no schema")
		if ds.SchemaDefinition != nil {
			schema = fmt.Sprintf("%d fields", len(ds.SchemaDefinition.Fields))
		}
		line := fmt.Sprintf("%s %-28s %-10s %s", marker, ds.Name, schema, ds.Description)
		out += a.fit(line) + "\n"
	}
	out += a.renderPageFooter(a.sourcePage)
	out += "\n[enter] Detail  [w] Import wizard  [n] New  [x] Delete  [/] Search  [u] Users  [p] Settings  [r] Refresh  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) handleDetailKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	ds := a.detail
	if ds == nil {
		a.setState(viewSources)
		return a, nil
	}
	switch m.String() {
	case "q":
		return a, tea.Quit
	case "esc":
		a.setState(viewSources)
		return a, nil
	case "up", "k":
		if a.fieldCursor > 0 {
			a.fieldCursor--
		}
	case "down", "j":
		if ds.SchemaDefinition != nil && a.fieldCursor < len(ds.SchemaDefinition.Fields)-1 {
			a.fieldCursor++
		}
	case "f":
		a.modal = modalAddField
		a.inputBuffer = ""
	case "x":
		if s := ds.SchemaDefinition; s != nil && a.fieldCursor < len(s.Fields) {
			removed := s.Fields[a.fieldCursor].Name
			s.Fields = append(s.Fields[:a.fieldCursor], s.Fields[a.fieldCursor+1:]...)
			s.RequiredFields = removeString(s.RequiredFields, removed)
			delete(s.DefaultMappings, removed)
			if a.fieldCursor >= len(s.Fields) && a.fieldCursor > 0 {
				a.fieldCursor--
			}
			a.status = "removed field " + removed + " (unsaved)"
		}
	case "r":
		if s := ds.SchemaDefinition; s != nil && a.fieldCursor < len(s.Fields) {
			f := &s.Fields[a.fieldCursor]
			f.Required = !f.Required
			if f.Required {
				if !containsString(s.RequiredFields, f.Name) {
					s.RequiredFields = append(s.RequiredFields, f.Name)
				}
			} else {
				s.RequiredFields = removeString(s.RequiredFields, f.Name)
			}
			a.status = "toggled required on " + f.Name + " (unsaved)"
		}
	case "m":
		if s := ds.SchemaDefinition; s != nil && a.fieldCursor < len(s.Fields) {
			field := s.Fields[a.fieldCursor].Name
			a.editingID = field
			a.inputBuffer = ""
			if s.DefaultMappings != nil {
				a.inputBuffer = s.DefaultMappings[field]
			}
			a.modal = modalEditMapping
		}
	case "s":
		return a, a.saveDetailCmd()
	case "i":
		a.importPage.Offset = 0
		a.setState(viewImports)
		return a, a.loadImportsCmd()
	case "w":
		a.startWizard(*ds)
		return a, nil
	}
	return a, nil
}

func (a *App) saveDetailCmd() tea.Cmd {
	ds := *a.detail
	return func() tea.Msg {
		if err := registry.ValidateSchema(ds.SchemaDefinition); err != nil {
			return errMsg{err}
		}
		req := registry.CreateRequest{
			Name:             ds.Name,
			Description:      ds.Description,
			SchemaDefinition: ds.SchemaDefinition,
		}
		saved, err := a.registry.Update(a.ctx, ds.ID, req)
		if err != nil {
			return errMsg{err}
		}
		return sourceSavedMsg{note: "saved " + saved.Name, detail: &saved}
	}
}

func (a *App) createSourceCmd(name, desc string) tea.Cmd {
	return func() tea.Msg {
		req := registry.CreateRequest{Name: name, Description: desc}
		saved, err := a.registry.Create(a.ctx, req)
		if err != nil {
			return errMsg{err}
		}
		return sourceSavedMsg{note: "created " + saved.Name}
	}
}

func (a *App) deleteSourceCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := a.registry.Delete(a.ctx, id); err != nil {
			return errMsg{err}
		}
		return sourceSavedMsg{note: "data source deleted"}
	}
}

func (a *App) renderDetail() string {
	ds := a.detail
	if ds == nil {
		return "no data source selected"
	}
	out := titleStyle.Render("Data Source: "+ds.Name) + "\n"
	if ds.Description != "" {
		out += ds.Description + "\n"
	}
	if s := ds.SchemaDefinition; s != nil {
		out += fmt.Sprintf("\nDate format: %s\n", valueOr(s.DateFormat, "(default)"))
		out += "Fields:\n"
		if len(s.Fields) == 0 {
			out += dimStyle.Render("  (none declared)") + "\n"
		}
		for i, f := range s.Fields {
			marker := " "
			if i == a.fieldCursor {
				marker = "▶"
			}
			req := " "
			if f.Required {
				req = "*"
			}
			mapping := ""
			if s.DefaultMappings != nil && s.DefaultMappings[f.Name] != "" {
				mapping = " ← " + s.DefaultMappings[f.Name]
			}
			out += a.fit(fmt.Sprintf("%s %s %-16s %-8s %s%s", marker, req, f.Name, f.Type, f.DisplayName, mapping)) + "\n"
		}
		if len(s.RequiredFields) > 0 {
			out += "Required: " + strings.Join(s.RequiredFields, ", ") + "\n"
		}
	} else {
		out += dimStyle.Render("\nNo schema declared. [f] adds the first field.") + "\n"
	}
	out += "\n[f] Add field  [x] Remove  [r] Toggle required  [m] Default mapping  [s] Save  [i] Imports  [w] Import wizard  [esc] Back  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) brandedTitle(s string) string {
	if a.tenantInfo != nil && a.tenantInfo.Name != "" {
		return a.tenantInfo.Name + " — " + s
	}
	return s
}

func (a *App) renderPageFooter(p api.Pagination) string {
	if p.Total == 0 {
		return ""
	}
	last := p.Offset + a.pageSize()
	if last > p.Total {
		last = p.Total
	}
	return dimStyle.Render(fmt.Sprintf("%d-%d of %d  [h/l] page", p.Offset+1, last, p.Total))
}

// fit truncates a rendered line to the terminal width, ANSI-aware.
func (a *App) fit(line string) string {
	if a.width <= 0 {
		return line
	}
	return ansi.Truncate(line, a.width, "…")
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
