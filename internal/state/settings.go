package state

import "github.com/temirov/contextkit/internal/types"

// RespectIgnore reports whether ignored entries are excluded from loads.
func (state *State) RespectIgnore() bool {
	return state.respectIgnore
}

// SetRespectIgnore records the ignore mode.
func (state *State) SetRespectIgnore(respectIgnore bool) {
	state.respectIgnore = respectIgnore
}

// Prompt returns the free-text prompt.
func (state *State) Prompt() string {
	return state.prompt
}

// SetPrompt records the free-text prompt.
func (state *State) SetPrompt(prompt string) {
	state.prompt = prompt
}

// SetIncludePrompt records whether the free-text prompt is copied.
func (state *State) SetIncludePrompt(includePrompt bool) {
	state.includePrompt = includePrompt
}

// SetIncludeSavedPrompts records whether selected saved prompts are copied.
func (state *State) SetIncludeSavedPrompts(includeSavedPrompts bool) {
	state.includeSavedPrompts = includeSavedPrompts
}

// SetIncludeFiles records whether file contents are copied.
func (state *State) SetIncludeFiles(includeFiles bool) {
	state.includeFiles = includeFiles
}

// ViewMode returns the active panel view.
func (state *State) ViewMode() string {
	return state.viewMode
}

// SetViewMode switches the panel view. Unknown modes are rejected.
func (state *State) SetViewMode(viewMode string) bool {
	if viewMode != types.ViewModeMain && viewMode != types.ViewModeManage {
		return false
	}
	state.viewMode = viewMode
	return true
}

// MetaPrompts returns the saved prompts.
func (state *State) MetaPrompts() []types.MetaPrompt {
	return append([]types.MetaPrompt{}, state.metaPrompts...)
}

// SetMetaPrompts replaces the saved prompts and drops selected ids that no longer exist.
func (state *State) SetMetaPrompts(prompts []types.MetaPrompt) {
	state.metaPrompts = append([]types.MetaPrompt{}, prompts...)
	state.SetSelectedMetaPromptIDs(state.selectedMetaPromptIDs)
}

// SetSelectedMetaPromptIDs replaces the selected saved prompt ids, keeping known ids only.
func (state *State) SetSelectedMetaPromptIDs(ids []string) {
	known := make(map[string]struct{}, len(state.metaPrompts))
	for _, prompt := range state.metaPrompts {
		known[prompt.ID] = struct{}{}
	}
	retained := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		if _, isKnown := known[id]; !isKnown {
			continue
		}
		if _, duplicate := seen[id]; duplicate {
			continue
		}
		seen[id] = struct{}{}
		retained = append(retained, id)
	}
	state.selectedMetaPromptIDs = retained
}

// SelectedMetaPromptIDs returns the selected saved prompt ids.
func (state *State) SelectedMetaPromptIDs() []string {
	return append([]string{}, state.selectedMetaPromptIDs...)
}

// SelectedMetaPrompts returns the selected saved prompts in saved-list order.
func (state *State) SelectedMetaPrompts() []types.MetaPrompt {
	selected := make(map[string]struct{}, len(state.selectedMetaPromptIDs))
	for _, id := range state.selectedMetaPromptIDs {
		selected[id] = struct{}{}
	}
	var prompts []types.MetaPrompt
	for _, prompt := range state.metaPrompts {
		if _, isSelected := selected[prompt.ID]; isSelected {
			prompts = append(prompts, prompt)
		}
	}
	return prompts
}

// CopyConfiguration stores every override into the session and returns the resulting
// configuration of one copy.
func (state *State) CopyConfiguration(overrides types.CopyOverrides) types.CopyConfiguration {
	if overrides.PromptText != nil {
		state.prompt = *overrides.PromptText
	}
	if overrides.IncludePrompt != nil {
		state.includePrompt = *overrides.IncludePrompt
	}
	if overrides.IncludeSavedPrompts != nil {
		state.includeSavedPrompts = *overrides.IncludeSavedPrompts
	}
	if overrides.IncludeFiles != nil {
		state.includeFiles = *overrides.IncludeFiles
	}
	if overrides.SelectedMetaPromptIDs != nil {
		state.SetSelectedMetaPromptIDs(overrides.SelectedMetaPromptIDs)
	}
	return types.CopyConfiguration{
		PromptText:            state.prompt,
		IncludePrompt:         state.includePrompt,
		IncludeSavedPrompts:   state.includeSavedPrompts,
		IncludeFiles:          state.includeFiles,
		SelectedMetaPromptIDs: state.SelectedMetaPromptIDs(),
	}
}
