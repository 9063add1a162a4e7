// Package tui is the operator console: login, data source management, the
// CSV import wizard, import browsing, and user administration over the
// backend API.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/reconsole/internal/api"
	"github.com/jask/reconsole/internal/config"
	"github.com/jask/reconsole/internal/imports"
	"github.com/jask/reconsole/internal/journal"
	"github.com/jask/reconsole/internal/registry"
	"github.com/jask/reconsole/internal/session"
	"github.com/jask/reconsole/internal/tenant"
	"github.com/jask/reconsole/internal/users"
	"github.com/jask/reconsole/internal/wizard"
)

// App ties together views.
type App struct {
	ctx      context.Context
	cfg      config.Config
	session  *session.Store
	registry *registry.Client
	imports  *imports.Client
	users    *users.Client
	tenant   *tenant.Resolver
	journal  *journal.Repo
	client   *api.Client

	state  appState
	modal  modalState
	status string
	width  int

	tenantInfo *tenant.Tenant

	// login
	loginEmail    textinput.Model
	loginPassword textinput.Model
	loginName     textinput.Model
	loginFocus    int
	registering   bool
	loginBusy     bool
	returnTo      appState

	// data sources
	searchInput textinput.Model
	searcher    *registry.Searcher
	debounce    registry.Debouncer
	sources     []registry.DataSource
	sourcePage  api.Pagination
	srcCursor   int
	detail      *registry.DataSource
	fieldCursor int

	// wizard
	wiz        *wizard.Wizard
	pathInput  textinput.Model
	mapCursor  int
	priorSubs  []journal.Submission
	lastImport *wizard.ProcessResponse

	// imports browser
	importList    []imports.Record
	importPage    api.Pagination
	impCursor     int
	currentImport *imports.Record
	rows          []imports.RawTransaction
	rowPage       api.Pagination
	rowCursor     int

	// users admin
	userList   []users.User
	userCursor int
	userRoles  map[string][]string
	selfAdmin  bool

	// modal input
	inputBuffer string
	editingID   string
	draftName   string
}

type appState string

const (
	viewLogin    appState = "login"
	viewSources  appState = "sources"
	viewDetail   appState = "detail"
	viewWizard   appState = "wizard"
	viewImports  appState = "imports"
	viewRows     appState = "rows"
	viewUsers    appState = "users"
	viewSettings appState = "settings"
)

type modalState string

const (
	modalNone          modalState = ""
	modalNewSourceName modalState = "newSourceName"
	modalNewSourceDesc modalState = "newSourceDesc"
	modalDeleteSource  modalState = "deleteSource"
	modalDeleteImport  modalState = "deleteImport"
	modalAddField      modalState = "addField"
	modalEditMapping   modalState = "editMapping"
	modalAddRole       modalState = "addRole"
	modalRemoveRole    modalState = "removeRole"
	modalNewUser       modalState = "newUser"
	modalConfirmSubmit modalState = "confirmSubmit"
)

// Deps carries everything the console talks to.
type Deps struct {
	Session  *session.Store
	Registry *registry.Client
	Imports  *imports.Client
	Users    *users.Client
	Tenant   *tenant.Resolver
	Journal  *journal.Repo
	Client   *api.Client
}

func New(ctx context.Context, cfg config.Config, d Deps) *App {
	email := textinput.New()
	email.Placeholder = "email"
	email.Prompt = "> "
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "> "
	password.EchoMode = textinput.EchoPassword

	name := textinput.New()
	name.Placeholder = "name"
	name.Prompt = "> "

	search := textinput.New()
	search.Placeholder = "search data sources"
	search.Prompt = "/ "

	path := textinput.New()
	path.Placeholder = "statements/latest.csv"
	path.Prompt = "> "

	pageSize := cfg.UI.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	state := viewLogin
	if d.Session.Authenticated() {
		state = viewSources
	}

	a := &App{
		ctx:           ctx,
		cfg:           cfg,
		session:       d.Session,
		registry:      d.Registry,
		imports:       d.Imports,
		users:         d.Users,
		tenant:        d.Tenant,
		journal:       d.Journal,
		client:        d.Client,
		state:         state,
		loginEmail:    email,
		loginPassword: password,
		loginName:     name,
		searchInput:   search,
		pathInput:     path,
		searcher:      registry.NewSearcher(d.Registry, pageSize),
		userRoles:     make(map[string][]string),
	}
	a.session.SetRoute(string(a.state))
	return a
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, a.resolveTenantCmd()}
	if a.state != viewLogin {
		cmds = append(cmds, a.searchCmd(), a.loadRolesCmd())
	}
	return tea.Batch(cmds...)
}

// SessionExpiredMsg arrives from the session watcher when the token
// lapses. ReturnTo names the view to restore after re-authentication.
type SessionExpiredMsg struct {
	ReturnTo string
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
		return a, nil

	case SessionExpiredMsg:
		a.returnTo = appState(m.ReturnTo)
		a.setState(viewLogin)
		a.modal = modalNone
		a.status = "session expired, sign in to continue"
		a.loginEmail.Focus()
		a.loginFocus = 0
		return a, nil

	case tea.KeyMsg:
		if a.state == viewLogin {
			return a.handleLoginKey(m)
		}
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		return a.handleKey(m)

	case tenantMsg:
		t := tenant.Tenant(m)
		a.tenantInfo = &t
		return a, nil

	case loginDoneMsg:
		a.loginBusy = false
		a.status = "signed in as " + m.user.Email
		next := a.returnTo
		if next == "" || next == viewLogin {
			next = viewSources
		}
		a.returnTo = ""
		a.setState(next)
		a.loginPassword.SetValue("")
		return a, tea.Batch(a.searchCmd(), a.loadRolesCmd())

	case debounceMsg:
		if !a.debounce.Current(int(m)) {
			return a, nil // superseded keystroke
		}
		return a, a.runSearchCmd()

	case searchResultMsg:
		if !a.searcher.Apply(m.res) {
			return a, nil // stale response, a newer one already landed
		}
		a.sources = m.res.Page.Data
		a.sourcePage = m.res.Page.Pagination
		if a.srcCursor >= len(a.sources) {
			a.srcCursor = 0
		}
		return a, nil

	case sourceDetailMsg:
		ds := registry.DataSource(m)
		a.detail = &ds
		a.fieldCursor = 0
		a.setState(viewDetail)
		return a, nil

	case sourceSavedMsg:
		a.status = m.note
		a.modal = modalNone
		if m.detail != nil {
			a.detail = m.detail
		}
		return a, a.runSearchCmd()

	case importListMsg:
		a.importList = m.page.Data
		a.importPage = m.page.Pagination
		if a.impCursor >= len(a.importList) {
			a.impCursor = 0
		}
		return a, nil

	case rowListMsg:
		a.rows = m.page.Data
		a.rowPage = m.page.Pagination
		if a.rowCursor >= len(a.rows) {
			a.rowCursor = 0
		}
		return a, nil

	case userListMsg:
		a.userList = []users.User(m)
		if a.userCursor >= len(a.userList) {
			a.userCursor = 0
		}
		cmds := make([]tea.Cmd, 0, len(a.userList))
		for _, u := range a.userList {
			cmds = append(cmds, a.loadUserRolesCmd(u.ID))
		}
		return a, tea.Batch(cmds...)

	case userRolesMsg:
		a.userRoles[m.id] = m.roles
		if me, ok := a.session.CurrentUser(); ok && me.ID == m.id {
			a.selfAdmin = users.IsAdmin(m.roles)
		}
		return a, nil

	case uploadDoneMsg:
		a.mapCursor = 0
		a.status = fmt.Sprintf("previewed %s: %d columns, %d rows", a.wiz.FileName(), len(a.wiz.Columns()), len(a.wiz.Preview()))
		if a.wiz.Step() == wizard.StepConfirm {
			a.status += " (all required fields mapped)"
			return a, a.priorSubsCmd()
		}
		return a, nil

	case priorSubsMsg:
		a.priorSubs = []journal.Submission(m)
		return a, nil

	case processDoneMsg:
		a.lastImport = &m.resp
		a.status = fmt.Sprintf("submitted: %s", m.resp.Message)
		a.wiz = nil
		a.priorSubs = nil
		a.setState(viewImports)
		return a, a.loadImportsCmd()

	case statusMsg:
		a.status = string(m)
		return a, nil

	case errMsg:
		a.loginBusy = false
		a.status = "error: " + m.Error()
		return a, nil
	}

	return a.updateInputs(msg)
}

// updateInputs forwards non-key messages (cursor blink ticks) to whichever
// text input is active.
func (a *App) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	switch a.state {
	case viewLogin:
		a.loginEmail, cmd = a.loginEmail.Update(msg)
		cmds = append(cmds, cmd)
		a.loginPassword, cmd = a.loginPassword.Update(msg)
		cmds = append(cmds, cmd)
		a.loginName, cmd = a.loginName.Update(msg)
		cmds = append(cmds, cmd)
	case viewSources:
		a.searchInput, cmd = a.searchInput.Update(msg)
		cmds = append(cmds, cmd)
	case viewWizard:
		a.pathInput, cmd = a.pathInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

func (a *App) setState(s appState) {
	a.state = s
	a.session.SetRoute(string(s))
}

func (a *App) View() string {
	var body string
	switch a.state {
	case viewLogin:
		body = a.renderLogin()
	case viewSources:
		body = a.renderSources()
	case viewDetail:
		body = a.renderDetail()
	case viewWizard:
		body = a.renderWizard()
	case viewImports:
		body = a.renderImports()
	case viewRows:
		body = a.renderRows()
	case viewUsers:
		body = a.renderUsers()
	case viewSettings:
		body = a.renderSettings()
	}
	if a.modal != modalNone {
		body += "\n\n" + a.renderModal()
	}
	return body
}

// commands

func (a *App) resolveTenantCmd() tea.Cmd {
	return func() tea.Msg {
		t, err := a.tenant.Resolve(a.ctx)
		if err != nil {
			return statusMsg("tenant branding unavailable")
		}
		return tenantMsg(t)
	}
}

func (a *App) searchCmd() tea.Cmd {
	v := a.debounce.Touch()
	return tea.Tick(registry.DebounceQuiet, func(time.Time) tea.Msg {
		return debounceMsg(v)
	})
}

func (a *App) runSearchCmd() tea.Cmd {
	return func() tea.Msg {
		res, err := a.searcher.Run(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return searchResultMsg{res}
	}
}

func (a *App) loadDetailCmd(id string) tea.Cmd {
	return func() tea.Msg {
		ds, err := a.registry.Get(a.ctx, id)
		if err != nil {
			return errMsg{err}
		}
		return sourceDetailMsg(ds)
	}
}

func (a *App) loadImportsCmd() tea.Cmd {
	if a.detail == nil {
		return func() tea.Msg { return errMsg{fmt.Errorf("select a data source first")} }
	}
	id := a.detail.ID
	offset := a.importPage.Offset
	return func() tea.Msg {
		page, err := a.imports.ListByDataSource(a.ctx, id, a.pageSize(), offset)
		if err != nil {
			return errMsg{err}
		}
		return importListMsg{page}
	}
}

func (a *App) loadRowsCmd() tea.Cmd {
	if a.currentImport == nil {
		return nil
	}
	id := a.currentImport.ID
	offset := a.rowPage.Offset
	return func() tea.Msg {
		page, err := a.imports.RawTransactions(a.ctx, id, a.pageSize(), offset)
		if err != nil {
			return errMsg{err}
		}
		return rowListMsg{page}
	}
}

func (a *App) loadRolesCmd() tea.Cmd {
	me, ok := a.session.CurrentUser()
	if !ok {
		return nil
	}
	return a.loadUserRolesCmd(me.ID)
}

func (a *App) loadUserRolesCmd(id string) tea.Cmd {
	return func() tea.Msg {
		roles, err := a.users.Roles(a.ctx, id)
		if err != nil {
			return errMsg{err}
		}
		return userRolesMsg{id: id, roles: roles}
	}
}

func (a *App) loadUsersCmd() tea.Cmd {
	return func() tea.Msg {
		list, err := a.users.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return userListMsg(list)
	}
}

func (a *App) priorSubsCmd() tea.Cmd {
	if a.journal == nil || a.wiz == nil {
		return nil
	}
	url := a.wiz.PreviewURL()
	return func() tea.Msg {
		subs, err := a.journal.PriorSubmissions(a.ctx, url)
		if err != nil {
			return errMsg{err}
		}
		return priorSubsMsg(subs)
	}
}

func (a *App) pageSize() int {
	if a.cfg.UI.PageSize > 0 {
		return a.cfg.UI.PageSize
	}
	return 10
}

// messages

type tenantMsg tenant.Tenant

type loginDoneMsg struct{ user session.User }

type debounceMsg int

type searchResultMsg struct{ res registry.Result }

type sourceDetailMsg registry.DataSource

type sourceSavedMsg struct {
	note   string
	detail *registry.DataSource
}

type importListMsg struct{ page api.Page[imports.Record] }

type rowListMsg struct{ page api.Page[imports.RawTransaction] }

type userListMsg []users.User

type userRolesMsg struct {
	id    string
	roles []string
}

type uploadDoneMsg struct{}

type priorSubsMsg []journal.Submission

type processDoneMsg struct{ resp wizard.ProcessResponse }

type statusMsg string

type errMsg struct{ error }

// styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	dangerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)
