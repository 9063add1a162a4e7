package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/reconsole/internal/users"
)

func (a *App) handleUsersKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q":
		return a, tea.Quit
	case "esc":
		a.setState(viewSources)
		return a, nil
	case "up", "k":
		if a.userCursor > 0 {
			a.userCursor--
		}
	case "down", "j":
		if a.userCursor < len(a.userList)-1 {
			a.userCursor++
		}
	case "a":
		if !a.selfAdmin {
			a.status = "admin role required"
			return a, nil
		}
		if len(a.userList) > 0 {
			a.editingID = a.userList[a.userCursor].ID
			a.inputBuffer = ""
			a.modal = modalAddRole
		}
	case "x":
		if !a.selfAdmin {
			a.status = "admin role required"
			return a, nil
		}
		if len(a.userList) > 0 {
			a.editingID = a.userList[a.userCursor].ID
			a.inputBuffer = ""
			a.modal = modalRemoveRole
		}
	case "n":
		if !a.selfAdmin {
			a.status = "admin role required"
			return a, nil
		}
		a.inputBuffer = ""
		a.modal = modalNewUser
	case "r":
		return a, a.loadUsersCmd()
	}
	return a, nil
}

func (a *App) updateRoleCmd(userID, role, op string) tea.Cmd {
	return func() tea.Msg {
		roles, err := a.users.UpdateRole(a.ctx, userID, users.RoleOp{Role: role, Operation: op})
		if err != nil {
			return errMsg{err}
		}
		return userRolesMsg{id: userID, roles: roles}
	}
}

// parseNewUser parses "email password name..." with an optional trailing
// "role=<role>" token. Multi-word names stay intact; a role is only taken
// when explicitly marked, never inferred from the last word.
func parseNewUser(input string) (users.CreateUserRequest, error) {
	parts := strings.Fields(input)
	if len(parts) < 3 {
		return users.CreateUserRequest{}, fmt.Errorf("format: email password name [role=admin]")
	}
	req := users.CreateUserRequest{Email: parts[0], Password: parts[1]}
	nameParts := parts[2:]
	if last := nameParts[len(nameParts)-1]; strings.HasPrefix(last, "role=") {
		req.Role = strings.TrimPrefix(last, "role=")
		nameParts = nameParts[:len(nameParts)-1]
	}
	if len(nameParts) == 0 {
		return users.CreateUserRequest{}, fmt.Errorf("format: email password name [role=admin]")
	}
	req.Name = strings.Join(nameParts, " ")
	return req, nil
}

func (a *App) createUserCmd(input string) tea.Cmd {
	req, err := parseNewUser(input)
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}
	return func() tea.Msg {
		if err := req.Validate(); err != nil {
			return errMsg{err}
		}
		created, err := a.users.Create(a.ctx, req)
		if err != nil {
			return errMsg{err}
		}
		return statusMsg("created " + created.User.Email)
	}
}

func (a *App) renderUsers() string {
	title := titleStyle.Render(a.brandedTitle("Users"))
	out := title + "\n"
	me, _ := a.session.CurrentUser()
	if len(a.userList) == 0 {
		out += dimStyle.Render("  no users loaded") + "\n"
	}
	for i, u := range a.userList {
		marker := " "
		if i == a.userCursor {
			marker = "▶"
		}
		roles := a.userRoles[u.ID]
		roleText := dimStyle.Render("(no roles)")
		if len(roles) > 0 {
			roleText = strings.Join(roles, ", ")
		}
		self := ""
		if u.ID == me.ID {
			self = " (you)"
		}
		out += a.fit(fmt.Sprintf("%s %-28s %-24s %s%s", marker, u.Email, u.Name, roleText, self)) + "\n"
	}
	if a.selfAdmin {
		out += "\n[a] Add role  [x] Remove role  [n] New user  [r] Refresh  [esc] Back  [q] Quit"
	} else {
		out += "\n" + dimStyle.Render("read-only: your account has no admin role") + "\n[r] Refresh  [esc] Back  [q] Quit"
	}
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}
