// Package types defines every cross‑package data structure used by contextkit.
package types

import "github.com/temirov/contextkit/internal/services/filesystem"

const (
	NodeKindFolder = "folder"
	NodeKindFile   = "file"

	FormatRaw  = "raw"
	FormatJSON = "json"

	ViewModeMain   = "main"
	ViewModeManage = "manage"
)

// TriState describes the derived checkbox state of a folder.
type TriState string

const (
	TriStateNone    TriState = "none"
	TriStatePartial TriState = "partial"
	TriStateFull    TriState = "full"
)

// StatusLevel classifies user-visible status messages.
type StatusLevel string

const (
	StatusLevelInfo    StatusLevel = "info"
	StatusLevelWarning StatusLevel = "warning"
)

// Node is one entry of the workspace tree. A folder whose Loaded flag is false
// has not been listed yet; its Children are nil regardless of what is on disk.
type Node struct {
	Label       string   `json:"label"`
	Path        string   `json:"path"`
	Kind        string   `json:"type"`
	Ignored     bool     `json:"ignored,omitempty"`
	Loaded      bool     `json:"loaded,omitempty"`
	HasChildren bool     `json:"hasChildren,omitempty"`
	Selection   TriState `json:"selection,omitempty"`
	Children    []Node   `json:"children,omitempty"`
}

// IsFolder reports whether the node represents a directory.
func (node Node) IsFolder() bool {
	return node.Kind == NodeKindFolder
}

// FileRecord is a file discovered by a directory listing.
type FileRecord struct {
	Path   string            `json:"path"`
	Handle filesystem.Handle `json:"-"`
	Size   *int64            `json:"size,omitempty"`
}

// HasSize reports whether the record already carries a cached size.
func (record *FileRecord) HasSize() bool {
	return record != nil && record.Size != nil
}

// SetSize caches the file size on the record.
func (record *FileRecord) SetSize(size int64) {
	value := size
	record.Size = &value
}

// TreeData is the result of a full recursive workspace load.
type TreeData struct {
	Nodes []Node
	Files []FileRecord
}

// MetaPrompt is a saved instruction that can be attached to a copy.
type MetaPrompt struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Body string `json:"body"`
}

// CopyConfiguration holds the inputs of a single payload assembly.
type CopyConfiguration struct {
	PromptText            string
	IncludePrompt         bool
	IncludeSavedPrompts   bool
	IncludeFiles          bool
	SelectedMetaPromptIDs []string
}

// CopyOverrides replaces any subset of the session copy configuration for one request.
type CopyOverrides struct {
	PromptText            *string
	IncludePrompt         *bool
	IncludeSavedPrompts   *bool
	IncludeFiles          *bool
	SelectedMetaPromptIDs []string
}

// SelectionSummary is the live estimate shown next to the selection.
type SelectionSummary struct {
	Count      int   `json:"count"`
	TokenCount int   `json:"tokenCount"`
	TotalBytes int64 `json:"totalBytes"`
}

// UIState is the presentation snapshot emitted after every state change.
type UIState struct {
	Nodes                 []Node       `json:"nodes"`
	Selection             []string     `json:"selection"`
	Expanded              []string     `json:"expanded"`
	RespectIgnore         bool         `json:"respectGitignore"`
	Prompt                string       `json:"prompt"`
	IncludePrompt         bool         `json:"includePrompt"`
	IncludeSavedPrompts   bool         `json:"includeSavedPrompts"`
	IncludeFiles          bool         `json:"includeFiles"`
	MetaPrompts           []MetaPrompt `json:"metaPrompts"`
	SelectedMetaPromptIDs []string     `json:"selectedMetaPromptIds"`
	ViewMode              string       `json:"viewMode"`
}
