package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/reconsole/internal/config"
)

func (a *App) handleSettingsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q":
		return a, tea.Quit
	case "esc":
		a.setState(viewSources)
		return a, nil
	case "o":
		a.session.Logout()
		a.setState(viewLogin)
		a.returnTo = ""
		a.loginPassword.SetValue("")
		a.loginEmail.Focus()
		a.loginFocus = 0
		a.status = "signed out"
		return a, nil
	case "s":
		return a, a.saveConfigCmd()
	case "+":
		a.cfg.UI.PageSize++
	case "-":
		if a.cfg.UI.PageSize > 1 {
			a.cfg.UI.PageSize--
		}
	}
	return a, nil
}

func (a *App) saveConfigCmd() tea.Cmd {
	cfg := a.cfg
	return func() tea.Msg {
		if err := config.Save(cfg); err != nil {
			return errMsg{err}
		}
		return statusMsg("config saved")
	}
}

func (a *App) renderSettings() string {
	title := titleStyle.Render("Settings")
	out := title + "\n"
	out += fmt.Sprintf("Server:      %s\n", a.cfg.Server.BaseURL)
	out += fmt.Sprintf("Page size:   %d  [+/-]\n", a.pageSize())
	out += fmt.Sprintf("Date format: %s\n", valueOr(a.cfg.UI.DateFormat, "(server default)"))
	if a.tenantInfo != nil {
		out += fmt.Sprintf("Tenant:      %s", a.tenantInfo.Name)
		if a.tenantInfo.Domain != "" {
			out += " (" + a.tenantInfo.Domain + ")"
		}
		out += "\n"
	}
	if u, ok := a.session.CurrentUser(); ok {
		out += fmt.Sprintf("Account:     %s <%s>\n", u.Name, u.Email)
	}
	out += "\n[s] Save config  [o] Sign out  [esc] Back  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}
