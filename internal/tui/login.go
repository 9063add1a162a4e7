package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func (a *App) handleLoginKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "tab", "down":
		a.cycleLoginFocus(1)
		return a, nil
	case "shift+tab", "up":
		a.cycleLoginFocus(-1)
		return a, nil
	case "ctrl+r":
		a.registering = !a.registering
		a.status = ""
		if !a.registering && a.loginFocus == 2 {
			a.loginFocus = 0
			a.focusLoginField()
		}
		return a, nil
	case "enter":
		if a.loginBusy {
			return a, nil
		}
		return a, a.submitLoginCmd()
	}

	var cmd tea.Cmd
	switch a.loginFocus {
	case 0:
		a.loginEmail, cmd = a.loginEmail.Update(m)
	case 1:
		a.loginPassword, cmd = a.loginPassword.Update(m)
	case 2:
		a.loginName, cmd = a.loginName.Update(m)
	}
	return a, cmd
}

func (a *App) cycleLoginFocus(dir int) {
	fields := 2
	if a.registering {
		fields = 3
	}
	a.loginFocus = (a.loginFocus + dir + fields) % fields
	a.focusLoginField()
}

func (a *App) focusLoginField() {
	a.loginEmail.Blur()
	a.loginPassword.Blur()
	a.loginName.Blur()
	switch a.loginFocus {
	case 0:
		a.loginEmail.Focus()
	case 1:
		a.loginPassword.Focus()
	case 2:
		a.loginName.Focus()
	}
}

func (a *App) submitLoginCmd() tea.Cmd {
	email := strings.TrimSpace(a.loginEmail.Value())
	password := a.loginPassword.Value()
	name := strings.TrimSpace(a.loginName.Value())
	register := a.registering

	a.loginBusy = true
	a.status = "signing in..."
	if register {
		a.status = "creating account..."
	}
	return func() tea.Msg {
		if register {
			u, err := a.session.Register(a.ctx, email, password, name)
			if err != nil {
				return errMsg{err}
			}
			return loginDoneMsg{user: u}
		}
		u, err := a.session.Login(a.ctx, email, password)
		if err != nil {
			return errMsg{err}
		}
		return loginDoneMsg{user: u}
	}
}

func (a *App) renderLogin() string {
	heading := "Sign in"
	if a.registering {
		heading = "Create account"
	}
	if a.tenantInfo != nil && a.tenantInfo.Name != "" {
		style := titleStyle
		if c := a.tenantInfo.PrimaryColor; c != "" {
			style = style.Foreground(lipgloss.Color(c))
		}
		heading = style.Render(a.tenantInfo.Name) + "  " + heading
	} else {
		heading = titleStyle.Render(heading)
	}

	out := heading + "\n\n"
	out += "Email\n" + a.loginEmail.View() + "\n"
	out += "Password\n" + a.loginPassword.View() + "\n"
	if a.registering {
		out += "Name\n" + a.loginName.View() + "\n"
	}
	mode := "[ctrl+r] Register instead"
	if a.registering {
		mode = "[ctrl+r] Sign in instead"
	}
	out += fmt.Sprintf("\n[enter] Submit  [tab] Next field  %s  [ctrl+c] Quit", mode)
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}
