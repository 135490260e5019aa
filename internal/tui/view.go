package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/temirov/contextkit/internal/types"
)

const (
	titleText        = "contextkit"
	manageTitleText  = "contextkit · saved prompts"
	loadingText      = " loading…"
	cursorMarker     = "> "
	noCursorMarker   = "  "
	indentUnit       = "  "
	expandedMarker   = "▾ "
	collapsedMarker  = "▸ "
	fileMarker       = "  "
	checkboxFull     = "[x] "
	checkboxPartial  = "[-] "
	checkboxNone     = "[ ] "
	ignoredLabel     = " (ignored)"
	emptyTreeText    = "Nothing to show."
	noMatchesText    = "No matching files."
	noPromptsText    = "No saved prompts. Press n to add one."
	summaryFormat    = "Selected: %d files · %s · ~%d tokens"
	flagsFormat      = "%sinstructions  %ssaved prompts  %sfiles  gitignore: %s"
	promptLineFormat = "Prompt: %s"
	emptyPromptText  = "(none)"
	onText           = "on"
	offText          = "off"

	mainHelp   = "space select · enter expand/open · / filter · p prompt · i/s/f include · g gitignore · a all · x clear · c copy · m prompts · r refresh · q quit"
	filterHelp = "type to filter · ↑/↓ move · tab toggle · enter toggle and close · esc close"
	inputHelp  = "enter confirm · esc cancel"
	manageHelp = "space attach · n new · e edit · d delete · m/esc back · q quit"

	dividerRune   = "─"
	dividerMinLen = 20
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	ignoredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	dividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (m model) View() string {
	var lines []string
	title := titleText
	if m.state.ViewMode == types.ViewModeManage {
		title = manageTitleText
	}
	if m.loading {
		title += loadingText
	}
	lines = append(lines, titleStyle.Render(title))

	switch {
	case m.purpose == inputFilter:
		lines = append(lines, m.input.View())
		lines = append(lines, m.window(m.matchLines(), noMatchesText)...)
	case m.state.ViewMode == types.ViewModeManage:
		lines = append(lines, m.window(m.promptLines(), noPromptsText)...)
	default:
		lines = append(lines, m.window(m.treeRowLines(), emptyTreeText)...)
	}

	lines = append(lines, dividerStyle.Render(strings.Repeat(dividerRune, max(m.width, dividerMinLen))))
	lines = append(lines, summaryStyle.Render(m.summaryLine()))
	lines = append(lines, m.flagsLine())
	if m.purpose != inputNone && m.purpose != inputFilter {
		lines = append(lines, m.input.View())
	} else {
		lines = append(lines, m.promptLine())
	}
	lines = append(lines, m.statusLine())
	lines = append(lines, helpStyle.Render(m.helpText()))
	return strings.Join(lines, "\n")
}

func (m model) window(content []string, emptyText string) []string {
	if len(content) == 0 {
		return []string{helpStyle.Render(emptyText)}
	}
	end := min(m.offset+m.treeLines(), len(content))
	start := min(m.offset, end)
	return content[start:end]
}

func (m model) treeRowLines() []string {
	rows := m.rows()
	lines := make([]string, 0, len(rows))
	for index, current := range rows {
		node := current.node
		marker := fileMarker
		if node.IsFolder() {
			marker = collapsedMarker
			if m.isExpanded(node.Path) {
				marker = expandedMarker
			}
		}
		text := strings.Repeat(indentUnit, current.depth) + marker + checkbox(node.Selection) + node.Label
		if node.Ignored {
			text = ignoredStyle.Render(text + ignoredLabel)
		}
		lines = append(lines, m.decorate(index, text))
	}
	return lines
}

func (m model) matchLines() []string {
	lines := make([]string, 0, len(m.matches))
	for index, match := range m.matches {
		state := types.TriStateNone
		if m.isSelected(match) {
			state = types.TriStateFull
		}
		lines = append(lines, m.decorate(index, checkbox(state)+match))
	}
	return lines
}

func (m model) promptLines() []string {
	attached := map[string]struct{}{}
	for _, id := range m.state.SelectedMetaPromptIDs {
		attached[id] = struct{}{}
	}
	lines := make([]string, 0, len(m.state.MetaPrompts))
	for index, prompt := range m.state.MetaPrompts {
		state := types.TriStateNone
		if _, isAttached := attached[prompt.ID]; isAttached {
			state = types.TriStateFull
		}
		lines = append(lines, m.decorate(index, checkbox(state)+prompt.Name))
	}
	return lines
}

func (m model) decorate(index int, text string) string {
	if index == m.cursor {
		return cursorStyle.Render(cursorMarker + text)
	}
	return noCursorMarker + text
}

func (m model) summaryLine() string {
	if m.summary == nil {
		return fmt.Sprintf(summaryFormat, 0, "0 B", 0)
	}
	return fmt.Sprintf(summaryFormat, m.summary.Count, m.summary.FormattedSize, m.summary.TokenCount)
}

func (m model) flagsLine() string {
	gitignore := offText
	if m.state.RespectIgnore {
		gitignore = onText
	}
	return fmt.Sprintf(flagsFormat, flagBox(m.state.IncludePrompt), flagBox(m.state.IncludeSavedPrompts), flagBox(m.state.IncludeFiles), gitignore)
}

func (m model) promptLine() string {
	prompt := strings.TrimSpace(m.state.Prompt)
	if prompt == "" {
		prompt = emptyPromptText
	}
	return fmt.Sprintf(promptLineFormat, prompt)
}

func (m model) statusLine() string {
	if m.status == nil {
		return ""
	}
	if m.status.Level == types.StatusLevelWarning {
		return warningStyle.Render(m.status.Message)
	}
	return infoStyle.Render(m.status.Message)
}

func (m model) helpText() string {
	switch {
	case m.purpose == inputFilter:
		return filterHelp
	case m.purpose != inputNone:
		return inputHelp
	case m.state.ViewMode == types.ViewModeManage:
		return manageHelp
	default:
		return mainHelp
	}
}

func checkbox(state types.TriState) string {
	switch state {
	case types.TriStateFull:
		return checkboxFull
	case types.TriStatePartial:
		return checkboxPartial
	default:
		return checkboxNone
	}
}

func flagBox(enabled bool) string {
	if enabled {
		return checkboxFull
	}
	return checkboxNone
}
