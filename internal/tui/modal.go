package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/reconsole/internal/registry"
	"github.com/jask/reconsole/internal/users"
)

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalDeleteSource:
		switch m.String() {
		case "y", "Y":
			a.modal = modalNone
			return a, a.deleteSourceCmd(a.editingID)
		case "n", "N", "esc":
			a.modal = modalNone
		}
		return a, nil

	case modalDeleteImport:
		switch m.String() {
		case "y", "Y":
			a.modal = modalNone
			cmd := a.deleteImportCmd(a.editingID)
			return a, tea.Sequence(cmd, a.loadImportsCmd())
		case "n", "N", "esc":
			a.modal = modalNone
		}
		return a, nil

	case modalConfirmSubmit:
		switch m.String() {
		case "y", "Y":
			a.modal = modalNone
			return a, a.processCmd()
		case "n", "N", "esc":
			a.modal = modalNone
			a.status = "submission cancelled"
		}
		return a, nil
	}

	// text-entry modals share one raw input buffer
	switch m.Type {
	case tea.KeyEsc:
		a.modal = modalNone
		a.inputBuffer = ""
		return a, nil
	case tea.KeyEnter:
		return a.submitModal()
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		if len(a.inputBuffer) > 0 {
			a.inputBuffer = a.inputBuffer[:len(a.inputBuffer)-1]
		}
	case tea.KeySpace:
		a.inputBuffer += " "
	case tea.KeyRunes:
		a.inputBuffer += string(m.Runes)
	}
	return a, nil
}

func (a *App) submitModal() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(a.inputBuffer)
	mode := a.modal

	switch mode {
	case modalNewSourceName:
		if text == "" {
			a.status = "enter a name"
			return a, nil
		}
		a.draftName = text
		a.inputBuffer = ""
		a.modal = modalNewSourceDesc
		return a, nil

	case modalNewSourceDesc:
		a.modal = modalNone
		a.inputBuffer = ""
		return a, a.createSourceCmd(a.draftName, text)

	case modalAddField:
		a.modal = modalNone
		a.inputBuffer = ""
		if text == "" {
			return a, nil
		}
		return a, a.addFieldLocal(text)

	case modalEditMapping:
		a.modal = modalNone
		a.inputBuffer = ""
		if s := a.schemaForEdit(); s != nil {
			if s.DefaultMappings == nil {
				s.DefaultMappings = make(map[string]string)
			}
			if text == "" {
				delete(s.DefaultMappings, a.editingID)
				a.status = "mapping cleared for " + a.editingID + " (unsaved)"
			} else {
				s.DefaultMappings[a.editingID] = text
				a.status = fmt.Sprintf("%s maps from %q (unsaved)", a.editingID, text)
			}
		}
		return a, nil

	case modalAddRole:
		a.modal = modalNone
		a.inputBuffer = ""
		if text == "" {
			return a, nil
		}
		return a, a.updateRoleCmd(a.editingID, text, "add")

	case modalRemoveRole:
		a.modal = modalNone
		a.inputBuffer = ""
		if text == "" {
			return a, nil
		}
		return a, a.updateRoleCmd(a.editingID, text, "remove")

	case modalNewUser:
		a.modal = modalNone
		a.inputBuffer = ""
		if text == "" {
			return a, nil
		}
		cmd := a.createUserCmd(text)
		return a, tea.Sequence(cmd, a.loadUsersCmd())
	}

	a.modal = modalNone
	a.inputBuffer = ""
	return a, nil
}

func (a *App) schemaForEdit() *registry.SchemaDefinition {
	if a.detail == nil {
		return nil
	}
	if a.detail.SchemaDefinition == nil {
		a.detail.SchemaDefinition = &registry.SchemaDefinition{}
	}
	return a.detail.SchemaDefinition
}

// addFieldLocal parses "name[:type]" and appends to the draft schema.
// Changes live until [s] saves.
func (a *App) addFieldLocal(text string) tea.Cmd {
	name, ftype := text, string(registry.FieldTypeString)
	if i := strings.IndexByte(text, ':'); i >= 0 {
		name, ftype = strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+1:])
	}
	s := a.schemaForEdit()
	if s == nil {
		return nil
	}
	s.Fields = append(s.Fields, registry.SchemaField{
		Name:        name,
		DisplayName: name,
		Type:        registry.FieldType(ftype),
	})
	if err := registry.ValidateSchema(s); err != nil {
		s.Fields = s.Fields[:len(s.Fields)-1]
		return func() tea.Msg { return errMsg{err} }
	}
	return func() tea.Msg { return statusMsg("added field " + name + " (unsaved)") }
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalDeleteSource:
		return dangerStyle.Render("Delete this data source?") + "\nIts schema definition is removed with it.\n[y] Yes  [n] No"
	case modalDeleteImport:
		return dangerStyle.Render("Delete this import record?") + "\n[y] Yes  [n] No"
	case modalConfirmSubmit:
		return dangerStyle.Render(fmt.Sprintf("Already submitted %d time(s). Submit again?", len(a.priorSubs))) + "\n[y] Yes  [n] No"
	case modalNewSourceName:
		return titleStyle.Render("New data source — name") + fmt.Sprintf("\n%s\n[enter] Next  [esc] Cancel", a.inputBuffer)
	case modalNewSourceDesc:
		return titleStyle.Render("New data source — description") + fmt.Sprintf("\n%s\n[enter] Create  [esc] Cancel", a.inputBuffer)
	case modalAddField:
		return titleStyle.Render("Add field (name or name:type)") + fmt.Sprintf("\n%s\n[enter] Add  [esc] Cancel", a.inputBuffer)
	case modalEditMapping:
		return titleStyle.Render("Source column header for "+a.editingID) + fmt.Sprintf("\n%s\n[enter] Save  [esc] Cancel", a.inputBuffer)
	case modalAddRole:
		return titleStyle.Render(fmt.Sprintf("Add role (e.g. %s)", users.RoleAdmin)) + fmt.Sprintf("\n%s\n[enter] Add  [esc] Cancel", a.inputBuffer)
	case modalRemoveRole:
		return titleStyle.Render("Remove role") + fmt.Sprintf("\n%s\n[enter] Remove  [esc] Cancel", a.inputBuffer)
	case modalNewUser:
		return titleStyle.Render("New user (email password name [role=admin])") + fmt.Sprintf("\n%s\n[enter] Create  [esc] Cancel", a.inputBuffer)
	default:
		return ""
	}
}
