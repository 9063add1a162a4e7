package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/reconsole/internal/imports"
)

func (a *App) handleImportsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q":
		return a, tea.Quit
	case "esc":
		a.setState(viewSources)
		return a, nil
	case "up", "k":
		if a.impCursor > 0 {
			a.impCursor--
		}
	case "down", "j":
		if a.impCursor < len(a.importList)-1 {
			a.impCursor++
		}
	case "left", "h":
		if a.importPage.Offset > 0 {
			a.importPage.Offset = max(0, a.importPage.Offset-a.pageSize())
			return a, a.loadImportsCmd()
		}
	case "right", "l":
		if a.importPage.HasMore {
			a.importPage.Offset += a.pageSize()
			return a, a.loadImportsCmd()
		}
	case "enter":
		if len(a.importList) > 0 {
			rec := a.importList[a.impCursor]
			a.currentImport = &rec
			a.rowPage.Offset = 0
			a.rowCursor = 0
			a.setState(viewRows)
			return a, a.loadRowsCmd()
		}
	case "x", "backspace", "delete":
		if len(a.importList) == 0 {
			return a, nil
		}
		rec := a.importList[a.impCursor]
		if !rec.Deletable() {
			a.status = "import is still processing and cannot be deleted"
			return a, nil
		}
		a.editingID = rec.ID
		a.modal = modalDeleteImport
	case "r":
		return a, a.loadImportsCmd()
	}
	return a, nil
}

func (a *App) deleteImportCmd(id string) tea.Cmd {
	var rec *imports.Record
	for i := range a.importList {
		if a.importList[i].ID == id {
			rec = &a.importList[i]
			break
		}
	}
	if rec == nil {
		return nil
	}
	target := *rec
	return func() tea.Msg {
		if err := a.imports.Delete(a.ctx, target); err != nil {
			return errMsg{err}
		}
		return statusMsg("import deleted")
	}
}

func (a *App) renderImports() string {
	name := ""
	if a.detail != nil {
		name = a.detail.Name
	}
	title := titleStyle.Render("Imports — " + name)
	out := title + "\n"
	if a.lastImport != nil && a.lastImport.ImportID != "" {
		out += dimStyle.Render("  just submitted: import "+a.lastImport.ImportID) + "\n"
	}
	if len(a.importList) == 0 {
		out += dimStyle.Render("  no imports yet") + "\n"
	}
	for i, rec := range a.importList {
		marker := " "
		if i == a.impCursor {
			marker = "▶"
		}
		status := string(rec.Status)
		if rec.Status == imports.StatusFailed {
			status = dangerStyle.Render(status)
		}
		line := fmt.Sprintf("%s %-28s %-11s rows %5d  ok %5d  err %4d  %s",
			marker, rec.FileName, status, rec.RowCount, rec.SuccessCount, rec.ErrorCount,
			rec.CreatedAt.Format("2006-01-02 15:04"))
		out += a.fit(line) + "\n"
	}
	out += a.renderPageFooter(a.importPage)
	out += "\n[enter] Rows  [x] Delete  [r] Refresh  [esc] Back  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) handleRowsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q":
		return a, tea.Quit
	case "esc":
		a.setState(viewImports)
		return a, nil
	case "up", "k":
		if a.rowCursor > 0 {
			a.rowCursor--
		}
	case "down", "j":
		if a.rowCursor < len(a.rows)-1 {
			a.rowCursor++
		}
	case "left", "h":
		if a.rowPage.Offset > 0 {
			a.rowPage.Offset = max(0, a.rowPage.Offset-a.pageSize())
			return a, a.loadRowsCmd()
		}
	case "right", "l":
		if a.rowPage.HasMore {
			a.rowPage.Offset += a.pageSize()
			return a, a.loadRowsCmd()
		}
	case "r":
		return a, a.loadRowsCmd()
	}
	return a, nil
}

func (a *App) renderRows() string {
	name := ""
	if a.currentImport != nil {
		name = a.currentImport.FileName
	}
	title := titleStyle.Render("Rows — " + name)
	out := title + "\n"
	if len(a.rows) == 0 {
		out += dimStyle.Render("  no rows") + "\n"
	}
	for i, row := range a.rows {
		marker := " "
		if i == a.rowCursor {
			marker = "▶"
		}
		line := fmt.Sprintf("%s #%-5d %s", marker, row.RowNumber, summarizeRow(row.Data))
		if row.ErrorMessage != "" {
			line += "  " + dangerStyle.Render(row.ErrorMessage)
		}
		out += a.fit(line) + "\n"
	}
	if len(a.rows) > 0 && a.rowCursor < len(a.rows) {
		out += "\nSelected row data:\n" + indentJSON(a.rows[a.rowCursor].Data)
	}
	out += a.renderPageFooter(a.rowPage)
	out += "\n[r] Refresh  [esc] Back  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

// summarizeRow renders the stored row object as "k=v" pairs in key order.
func summarizeRow(data json.RawMessage) string {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return string(data)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, obj[k]))
	}
	return strings.Join(parts, "  ")
}

func indentJSON(data json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "  ", "  "); err != nil {
		return "  " + string(data)
	}
	return "  " + buf.String()
}
