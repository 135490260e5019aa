package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/temirov/contextkit/internal/controller"
	"github.com/temirov/contextkit/internal/types"
)

type inputPurpose int

const (
	inputNone inputPurpose = iota
	inputFilter
	inputPrompt
	inputPromptName
	inputPromptBody
	inputEditBody
)

const (
	filterPlaceholder     = "Filter files..."
	promptPlaceholder     = "Instructions for the model..."
	promptNamePlaceholder = "Saved prompt name"
	promptBodyPlaceholder = "Saved prompt body"
	inputCharLimit        = 4096
	reservedLines         = 8
	minimumTreeLines      = 3

	messageNoWorkspace  = "No workspace folder is open."
	messageOpenFormat   = "Open %s"
	messageAssembled    = "Payload assembled; the clipboard is unavailable."
	messageSessionEnded = "Session ended."
	messageSubmitFormat = "Request failed: %v"
)

type eventMsg struct {
	event controller.Event
}

type eventsClosedMsg struct{}

type submitFailedMsg struct {
	err error
}

// model is the panel state: the latest controller snapshot plus local cursor and input state.
type model struct {
	ctx     context.Context
	session Session

	state   types.UIState
	files   []string
	summary *controller.SummaryEvent
	status  *controller.StatusEvent
	loading bool

	rootsExpanded bool
	cursor        int
	offset        int
	height        int
	width         int

	input        textinput.Model
	purpose      inputPurpose
	matches      []string
	pendingName  string
	editPromptID string
}

func newModel(ctx context.Context, session Session) model {
	input := textinput.New()
	input.CharLimit = inputCharLimit
	return model{
		ctx:     ctx,
		session: session,
		input:   input,
		state:   types.UIState{ViewMode: types.ViewModeMain},
		loading: true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.submit(controller.Ready{}))
}

// waitForEvent delivers the next controller event as a message.
func (m model) waitForEvent() tea.Cmd {
	events := m.session.Events()
	return func() tea.Msg {
		event, open := <-events
		if !open {
			return eventsClosedMsg{}
		}
		return eventMsg{event: event}
	}
}

func (m model) submit(intent controller.Intent) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		if err := session.Submit(ctx, intent); err != nil {
			return submitFailedMsg{err: err}
		}
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case eventMsg:
		return m.handleEvent(typed.event)
	case eventsClosedMsg:
		m.status = &controller.StatusEvent{Level: types.StatusLevelWarning, Message: messageSessionEnded}
		return m, tea.Quit
	case submitFailedMsg:
		m.status = &controller.StatusEvent{Level: types.StatusLevelWarning, Message: fmt.Sprintf(messageSubmitFormat, typed.err)}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.input.Width = max(typed.Width-4, 10)
		m.scrollToCursor()
		return m, nil
	case tea.KeyMsg:
		if m.purpose != inputNone {
			return m.updateInput(typed)
		}
		if m.state.ViewMode == types.ViewModeManage {
			return m.updateManage(typed)
		}
		return m.updateMain(typed)
	}
	return m, nil
}

func (m model) handleEvent(event controller.Event) (tea.Model, tea.Cmd) {
	commands := []tea.Cmd{m.waitForEvent()}
	switch event.Kind {
	case controller.EventKindLoading:
		m.loading = true
	case controller.EventKindIdle:
		m.loading = false
	case controller.EventKindSnapshot:
		if event.State != nil {
			m.state = *event.State
		}
		if !m.rootsExpanded && len(m.state.Nodes) > 0 {
			m.rootsExpanded = true
			if len(m.state.Expanded) == 0 {
				rootPaths := make([]string, 0, len(m.state.Nodes))
				for _, node := range m.state.Nodes {
					rootPaths = append(rootPaths, node.Path)
				}
				commands = append(commands, m.submit(controller.ExpandedChanged{Paths: rootPaths}))
			}
		}
		m.clampCursor()
	case controller.EventKindFileIndex:
		m.files = event.Files
		if m.purpose == inputFilter {
			m.matches = filterFiles(m.input.Value(), m.files)
			m.clampCursor()
		}
	case controller.EventKindSummary:
		m.summary = event.Summary
	case controller.EventKindStatus:
		m.status = event.Status
	case controller.EventKindNoWorkspace:
		m.status = &controller.StatusEvent{Level: types.StatusLevelWarning, Message: messageNoWorkspace}
	case controller.EventKindCopied:
		if event.Copy != nil && !event.Copy.Clipboard {
			m.status = &controller.StatusEvent{Level: types.StatusLevelWarning, Message: messageAssembled}
		}
	case controller.EventKindOpenFile:
		if event.Open != nil {
			m.status = &controller.StatusEvent{Level: types.StatusLevelInfo, Message: fmt.Sprintf(messageOpenFormat, event.Open.Handle)}
		}
	}
	return m, tea.Batch(commands...)
}

func (m model) updateMain(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.rows()
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		m.moveCursor(1, len(rows))
	case "k", "up":
		m.moveCursor(-1, len(rows))
	case "enter", "l", "right":
		if node, ok := m.currentNode(rows); ok {
			if node.IsFolder() {
				return m, m.submit(controller.ToggleExpanded{Path: node.Path, Expanded: !m.isExpanded(node.Path)})
			}
			return m, m.submit(controller.OpenFile{Path: node.Path})
		}
	case "h", "left":
		if node, ok := m.currentNode(rows); ok && node.IsFolder() && m.isExpanded(node.Path) {
			return m, m.submit(controller.ToggleExpanded{Path: node.Path, Expanded: false})
		}
	case " ":
		if node, ok := m.currentNode(rows); ok {
			return m, m.submit(controller.ToggleSelection{Path: node.Path, Selected: node.Selection != types.TriStateFull})
		}
	case "a":
		return m, m.submit(controller.SelectAll{})
	case "x":
		return m, m.submit(controller.ClearSelection{})
	case "/":
		m.cursor, m.offset = 0, 0
		return m, m.beginInput(inputFilter, filterPlaceholder, "")
	case "p":
		return m, m.beginInput(inputPrompt, promptPlaceholder, m.state.Prompt)
	case "i":
		return m, m.submit(controller.IncludePromptChanged{Value: !m.state.IncludePrompt})
	case "s":
		return m, m.submit(controller.IncludeSavedPromptsChanged{Value: !m.state.IncludeSavedPrompts})
	case "f":
		return m, m.submit(controller.IncludeFilesChanged{Value: !m.state.IncludeFiles})
	case "g":
		return m, m.submit(controller.ToggleRespectIgnore{Value: !m.state.RespectIgnore})
	case "r":
		return m, m.submit(controller.Refresh{})
	case "c":
		return m, m.submit(controller.RequestCopy{})
	case "m":
		m.cursor, m.offset = 0, 0
		return m, m.submit(controller.SetViewMode{Mode: types.ViewModeManage})
	}
	return m, nil
}

func (m model) updateManage(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	prompts := m.state.MetaPrompts
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "m":
		m.cursor, m.offset = 0, 0
		return m, m.submit(controller.SetViewMode{Mode: types.ViewModeMain})
	case "j", "down":
		m.moveCursor(1, len(prompts))
	case "k", "up":
		m.moveCursor(-1, len(prompts))
	case " ":
		if m.cursor < len(prompts) {
			return m, m.submit(controller.SetSelectedMetaPrompts{IDs: toggleID(m.state.SelectedMetaPromptIDs, prompts[m.cursor].ID)})
		}
	case "n":
		return m, m.beginInput(inputPromptName, promptNamePlaceholder, "")
	case "e":
		if m.cursor < len(prompts) {
			m.editPromptID = prompts[m.cursor].ID
			m.pendingName = prompts[m.cursor].Name
			return m, m.beginInput(inputEditBody, promptBodyPlaceholder, prompts[m.cursor].Body)
		}
	case "d":
		if m.cursor < len(prompts) {
			return m, m.submit(controller.DeleteMetaPrompt{ID: prompts[m.cursor].ID})
		}
	}
	return m, nil
}

func (m model) updateInput(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.endInput()
		return m, nil
	}
	if m.purpose == inputFilter {
		switch key.String() {
		case "down", "ctrl+n":
			m.moveCursor(1, len(m.matches))
			return m, nil
		case "up", "ctrl+p":
			m.moveCursor(-1, len(m.matches))
			return m, nil
		case "tab", "enter":
			var command tea.Cmd
			if m.cursor < len(m.matches) {
				match := m.matches[m.cursor]
				command = m.submit(controller.ToggleSelection{Path: match, Selected: !m.isSelected(match)})
			}
			if key.String() == "enter" {
				m.endInput()
			}
			return m, command
		}
	}
	if key.String() == "enter" {
		return m.submitInput()
	}
	var command tea.Cmd
	m.input, command = m.input.Update(key)
	if m.purpose == inputFilter {
		m.matches = filterFiles(m.input.Value(), m.files)
		m.cursor, m.offset = 0, 0
	}
	return m, command
}

func (m model) submitInput() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	switch m.purpose {
	case inputPrompt:
		m.endInput()
		return m, m.submit(controller.PromptChanged{Value: value})
	case inputPromptName:
		if strings.TrimSpace(value) == "" {
			return m, nil
		}
		m.pendingName = value
		return m, m.beginInput(inputPromptBody, promptBodyPlaceholder, "")
	case inputPromptBody:
		name := m.pendingName
		m.endInput()
		return m, m.submit(controller.CreateMetaPrompt{Name: name, Body: value})
	case inputEditBody:
		id, name := m.editPromptID, m.pendingName
		m.endInput()
		return m, m.submit(controller.UpdateMetaPrompt{ID: id, Name: name, Body: value})
	}
	m.endInput()
	return m, nil
}

func (m *model) beginInput(purpose inputPurpose, placeholder string, value string) tea.Cmd {
	m.purpose = purpose
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.matches = nil
	return m.input.Focus()
}

func (m *model) endInput() {
	if m.purpose == inputFilter {
		m.cursor, m.offset = 0, 0
	}
	m.purpose = inputNone
	m.input.Blur()
	m.input.SetValue("")
	m.matches = nil
	m.pendingName = ""
	m.editPromptID = ""
}

func (m model) rows() []row {
	return visibleRows(m.state.Nodes, m.state.Expanded)
}

func (m model) currentNode(rows []row) (types.Node, bool) {
	if m.cursor < 0 || m.cursor >= len(rows) {
		return types.Node{}, false
	}
	return rows[m.cursor].node, true
}

func (m model) isExpanded(folderPath string) bool {
	for _, expandedPath := range m.state.Expanded {
		if expandedPath == folderPath {
			return true
		}
	}
	return false
}

func (m model) isSelected(filePath string) bool {
	for _, selectedPath := range m.state.Selection {
		if selectedPath == filePath {
			return true
		}
	}
	return false
}

func (m *model) moveCursor(delta int, count int) {
	if count == 0 {
		m.cursor = 0
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), count-1)
	m.scrollToCursor()
}

func (m *model) clampCursor() {
	count := len(m.rows())
	switch {
	case m.purpose == inputFilter:
		count = len(m.matches)
	case m.state.ViewMode == types.ViewModeManage:
		count = len(m.state.MetaPrompts)
	}
	if m.cursor >= count {
		m.cursor = max(count-1, 0)
	}
	m.scrollToCursor()
}

func (m *model) scrollToCursor() {
	visible := m.treeLines()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

func (m model) treeLines() int {
	if m.height == 0 {
		return 1 << 16
	}
	return max(m.height-reservedLines, minimumTreeLines)
}

func toggleID(ids []string, id string) []string {
	toggled := make([]string, 0, len(ids)+1)
	found := false
	for _, existing := range ids {
		if existing == id {
			found = true
			continue
		}
		toggled = append(toggled, existing)
	}
	if !found {
		toggled = append(toggled, id)
	}
	return toggled
}
