package controller

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/temirov/contextkit/internal/types"
)

// IntentKind names an inbound message shape.
type IntentKind string

const (
	IntentReady                      IntentKind = "ready"
	IntentRefresh                    IntentKind = "requestRefresh"
	IntentToggleRespectIgnore        IntentKind = "toggleRespectGitignore"
	IntentSelectionChanged           IntentKind = "selectionChanged"
	IntentToggleSelection            IntentKind = "toggleSelection"
	IntentSelectAll                  IntentKind = "selectAll"
	IntentClearSelection             IntentKind = "clearSelection"
	IntentExpandedChanged            IntentKind = "expandedChanged"
	IntentToggleExpanded             IntentKind = "toggleExpanded"
	IntentRequestChildren            IntentKind = "requestChildren"
	IntentPromptChanged              IntentKind = "promptChanged"
	IntentIncludePromptChanged       IntentKind = "includePromptChanged"
	IntentIncludeSavedPromptsChanged IntentKind = "includeSavedPromptsChanged"
	IntentIncludeFilesChanged        IntentKind = "includeFilesChanged"
	IntentSetSelectedMetaPrompts     IntentKind = "setSelectedMetaPrompts"
	IntentSetViewMode                IntentKind = "setViewMode"
	IntentCreateMetaPrompt           IntentKind = "createMetaPrompt"
	IntentUpdateMetaPrompt           IntentKind = "updateMetaPrompt"
	IntentDeleteMetaPrompt           IntentKind = "deleteMetaPrompt"
	IntentRequestCopy                IntentKind = "requestCopy"
	IntentOpenFile                   IntentKind = "openFile"
)

var (
	// ErrUnknownIntent is returned by ParseIntent for a message whose type is not recognised.
	ErrUnknownIntent = errors.New("unknown intent")
	// ErrMalformedIntent is returned by ParseIntent for a recognised type with missing or mistyped fields.
	ErrMalformedIntent = errors.New("malformed intent")
)

const (
	jsonNull                 = "null"
	errorUnknownIntentFormat = "%w: %q"
	errorMalformedFormat     = "%w: %v"
	errorMissingFieldFormat  = "%w: %s requires %q"
	fieldType                = "type"
	fieldValue               = "value"
	fieldPaths               = "paths"
	fieldPath                = "path"
	fieldSelected            = "selected"
	fieldExpanded            = "expanded"
	fieldIDs                 = "ids"
	fieldMode                = "mode"
	fieldID                  = "id"
	fieldName                = "name"
	fieldBody                = "body"
)

// Intent is one validated inbound message. The set of implementations is closed.
type Intent interface {
	Kind() IntentKind
}

// Ready loads saved prompts and performs the first refresh.
type Ready struct{}

// Refresh reloads the workspace.
type Refresh struct{}

// ToggleRespectIgnore switches ignore mode; selection and expansion are cleared.
type ToggleRespectIgnore struct{ Value bool }

// SelectionChanged replaces the selection.
type SelectionChanged struct{ Paths []string }

// ToggleSelection selects or deselects a file or everything beneath a folder.
type ToggleSelection struct {
	Path     string
	Selected bool
}

// SelectAll selects every known file.
type SelectAll struct{}

// ClearSelection empties the selection.
type ClearSelection struct{}

// ExpandedChanged replaces the expansion set.
type ExpandedChanged struct{ Paths []string }

// ToggleExpanded expands or collapses one folder.
type ToggleExpanded struct {
	Path     string
	Expanded bool
}

// RequestChildren loads one folder level.
type RequestChildren struct{ Path string }

// PromptChanged updates the free-text prompt.
type PromptChanged struct{ Value string }

// IncludePromptChanged toggles copying of the free-text prompt.
type IncludePromptChanged struct{ Value bool }

// IncludeSavedPromptsChanged toggles copying of the selected saved prompts.
type IncludeSavedPromptsChanged struct{ Value bool }

// IncludeFilesChanged toggles copying of file contents.
type IncludeFilesChanged struct{ Value bool }

// SetSelectedMetaPrompts replaces the selected saved prompt ids.
type SetSelectedMetaPrompts struct{ IDs []string }

// SetViewMode switches between the main and manage panels.
type SetViewMode struct{ Mode string }

// CreateMetaPrompt saves a new prompt.
type CreateMetaPrompt struct {
	Name string
	Body string
}

// UpdateMetaPrompt edits a saved prompt.
type UpdateMetaPrompt struct {
	ID   string
	Name string
	Body string
}

// DeleteMetaPrompt removes a saved prompt.
type DeleteMetaPrompt struct{ ID string }

// RequestCopy assembles and copies the payload. Set override fields replace the
// session configuration and are kept for later copies.
type RequestCopy struct{ Overrides types.CopyOverrides }

// OpenFile asks the host to open a file.
type OpenFile struct{ Path string }

func (Ready) Kind() IntentKind                      { return IntentReady }
func (Refresh) Kind() IntentKind                    { return IntentRefresh }
func (ToggleRespectIgnore) Kind() IntentKind        { return IntentToggleRespectIgnore }
func (SelectionChanged) Kind() IntentKind           { return IntentSelectionChanged }
func (ToggleSelection) Kind() IntentKind            { return IntentToggleSelection }
func (SelectAll) Kind() IntentKind                  { return IntentSelectAll }
func (ClearSelection) Kind() IntentKind             { return IntentClearSelection }
func (ExpandedChanged) Kind() IntentKind            { return IntentExpandedChanged }
func (ToggleExpanded) Kind() IntentKind             { return IntentToggleExpanded }
func (RequestChildren) Kind() IntentKind            { return IntentRequestChildren }
func (PromptChanged) Kind() IntentKind              { return IntentPromptChanged }
func (IncludePromptChanged) Kind() IntentKind       { return IntentIncludePromptChanged }
func (IncludeSavedPromptsChanged) Kind() IntentKind { return IntentIncludeSavedPromptsChanged }
func (IncludeFilesChanged) Kind() IntentKind        { return IntentIncludeFilesChanged }
func (SetSelectedMetaPrompts) Kind() IntentKind     { return IntentSetSelectedMetaPrompts }
func (SetViewMode) Kind() IntentKind                { return IntentSetViewMode }
func (CreateMetaPrompt) Kind() IntentKind           { return IntentCreateMetaPrompt }
func (UpdateMetaPrompt) Kind() IntentKind           { return IntentUpdateMetaPrompt }
func (DeleteMetaPrompt) Kind() IntentKind           { return IntentDeleteMetaPrompt }
func (RequestCopy) Kind() IntentKind                { return IntentRequestCopy }
func (OpenFile) Kind() IntentKind                   { return IntentOpenFile }

// wireIntent is the JSON envelope of every intent; absent fields stay nil.
type wireIntent struct {
	Type                *string         `json:"type"`
	Value               json.RawMessage `json:"value"`
	Paths               *[]string       `json:"paths"`
	Path                *string         `json:"path"`
	Selected            *bool           `json:"selected"`
	Expanded            *bool           `json:"expanded"`
	IDs                 *[]string       `json:"ids"`
	Mode                *string         `json:"mode"`
	ID                  *string         `json:"id"`
	Name                *string         `json:"name"`
	Body                *string         `json:"body"`
	Prompt              *string         `json:"prompt"`
	IncludePrompt       *bool           `json:"includePrompt"`
	IncludeSavedPrompts *bool           `json:"includeSavedPrompts"`
	IncludeFiles        *bool           `json:"includeFiles"`
	MetaPromptIDs       *[]string       `json:"metaPromptIds"`
}

// ParseIntent validates a JSON message against the closed set of intent shapes.
func ParseIntent(data []byte) (Intent, error) {
	var wire wireIntent
	if decodeError := json.Unmarshal(data, &wire); decodeError != nil {
		return nil, fmt.Errorf(errorMalformedFormat, ErrMalformedIntent, decodeError)
	}
	if wire.Type == nil {
		return nil, fmt.Errorf(errorMissingFieldFormat, ErrMalformedIntent, "message", fieldType)
	}
	kind := IntentKind(*wire.Type)
	missing := func(field string) error {
		return fmt.Errorf(errorMissingFieldFormat, ErrMalformedIntent, kind, field)
	}

	switch kind {
	case IntentReady:
		return Ready{}, nil
	case IntentRefresh:
		return Refresh{}, nil
	case IntentSelectAll:
		return SelectAll{}, nil
	case IntentClearSelection:
		return ClearSelection{}, nil
	case IntentToggleRespectIgnore, IntentIncludePromptChanged, IntentIncludeSavedPromptsChanged, IntentIncludeFilesChanged:
		var value bool
		if decodeError := decodeValue(wire.Value, &value); decodeError != nil {
			return nil, missing(fieldValue)
		}
		switch kind {
		case IntentToggleRespectIgnore:
			return ToggleRespectIgnore{Value: value}, nil
		case IntentIncludePromptChanged:
			return IncludePromptChanged{Value: value}, nil
		case IntentIncludeSavedPromptsChanged:
			return IncludeSavedPromptsChanged{Value: value}, nil
		default:
			return IncludeFilesChanged{Value: value}, nil
		}
	case IntentPromptChanged:
		var value string
		if decodeError := decodeValue(wire.Value, &value); decodeError != nil {
			return nil, missing(fieldValue)
		}
		return PromptChanged{Value: value}, nil
	case IntentSelectionChanged, IntentExpandedChanged:
		if wire.Paths == nil {
			return nil, missing(fieldPaths)
		}
		if kind == IntentSelectionChanged {
			return SelectionChanged{Paths: *wire.Paths}, nil
		}
		return ExpandedChanged{Paths: *wire.Paths}, nil
	case IntentToggleSelection:
		if wire.Path == nil {
			return nil, missing(fieldPath)
		}
		if wire.Selected == nil {
			return nil, missing(fieldSelected)
		}
		return ToggleSelection{Path: *wire.Path, Selected: *wire.Selected}, nil
	case IntentToggleExpanded:
		if wire.Path == nil {
			return nil, missing(fieldPath)
		}
		if wire.Expanded == nil {
			return nil, missing(fieldExpanded)
		}
		return ToggleExpanded{Path: *wire.Path, Expanded: *wire.Expanded}, nil
	case IntentRequestChildren, IntentOpenFile:
		if wire.Path == nil {
			return nil, missing(fieldPath)
		}
		if kind == IntentRequestChildren {
			return RequestChildren{Path: *wire.Path}, nil
		}
		return OpenFile{Path: *wire.Path}, nil
	case IntentSetSelectedMetaPrompts:
		if wire.IDs == nil {
			return nil, missing(fieldIDs)
		}
		return SetSelectedMetaPrompts{IDs: *wire.IDs}, nil
	case IntentSetViewMode:
		if wire.Mode == nil {
			return nil, missing(fieldMode)
		}
		return SetViewMode{Mode: *wire.Mode}, nil
	case IntentCreateMetaPrompt:
		if wire.Name == nil {
			return nil, missing(fieldName)
		}
		if wire.Body == nil {
			return nil, missing(fieldBody)
		}
		return CreateMetaPrompt{Name: *wire.Name, Body: *wire.Body}, nil
	case IntentUpdateMetaPrompt:
		if wire.ID == nil {
			return nil, missing(fieldID)
		}
		if wire.Name == nil {
			return nil, missing(fieldName)
		}
		if wire.Body == nil {
			return nil, missing(fieldBody)
		}
		return UpdateMetaPrompt{ID: *wire.ID, Name: *wire.Name, Body: *wire.Body}, nil
	case IntentDeleteMetaPrompt:
		if wire.ID == nil {
			return nil, missing(fieldID)
		}
		return DeleteMetaPrompt{ID: *wire.ID}, nil
	case IntentRequestCopy:
		overrides := types.CopyOverrides{
			PromptText:          wire.Prompt,
			IncludePrompt:       wire.IncludePrompt,
			IncludeSavedPrompts: wire.IncludeSavedPrompts,
			IncludeFiles:        wire.IncludeFiles,
		}
		if wire.MetaPromptIDs != nil {
			overrides.SelectedMetaPromptIDs = *wire.MetaPromptIDs
			if overrides.SelectedMetaPromptIDs == nil {
				overrides.SelectedMetaPromptIDs = []string{}
			}
		}
		return RequestCopy{Overrides: overrides}, nil
	default:
		return nil, fmt.Errorf(errorUnknownIntentFormat, ErrUnknownIntent, *wire.Type)
	}
}

func decodeValue(raw json.RawMessage, target any) error {
	if len(raw) == 0 || string(raw) == jsonNull {
		return ErrMalformedIntent
	}
	return json.Unmarshal(raw, target)
}
