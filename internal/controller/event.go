package controller

import (
	"github.com/temirov/contextkit/internal/payload"
	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/types"
)

// SchemaVersion versions the outbound event shape.
const SchemaVersion = 1

// EventKind names an outbound message.
type EventKind string

const (
	EventKindLoading        EventKind = "loading"
	EventKindSnapshot       EventKind = "snapshot"
	EventKindFileIndex      EventKind = "fileIndex"
	EventKindChildrenLoaded EventKind = "childrenLoaded"
	EventKindSummary        EventKind = "summary"
	EventKindStatus         EventKind = "status"
	EventKindNoWorkspace    EventKind = "noWorkspace"
	EventKindCopied         EventKind = "copied"
	EventKindOpenFile       EventKind = "openFile"
	EventKindIdle           EventKind = "idle"
)

// Event is one outbound message. Exactly the payload field matching Kind is set.
type Event struct {
	Version    int       `json:"version"`
	Kind       EventKind `json:"kind"`
	Generation uint64    `json:"generation"`

	State    *types.UIState `json:"state,omitempty"`
	Files    []string       `json:"files,omitempty"`
	Children *ChildrenEvent `json:"children,omitempty"`
	Summary  *SummaryEvent  `json:"summary,omitempty"`
	Status   *StatusEvent   `json:"status,omitempty"`
	Copy     *CopyEvent     `json:"copy,omitempty"`
	Open     *OpenFileEvent `json:"open,omitempty"`
}

// ChildrenEvent carries one lazily loaded folder level.
type ChildrenEvent struct {
	Path     string       `json:"path"`
	Children []types.Node `json:"children"`
}

// SummaryEvent carries the live selection estimate.
type SummaryEvent struct {
	types.SelectionSummary
	FormattedSize string `json:"formattedSize"`
}

// StatusEvent is a user-visible, non-blocking message.
type StatusEvent struct {
	Level   types.StatusLevel `json:"level"`
	Message string            `json:"message"`
}

// CopyEvent reports an assembled payload.
type CopyEvent struct {
	Text      string                `json:"text"`
	Skipped   []payload.SkippedFile `json:"skipped,omitempty"`
	Clipboard bool                  `json:"clipboard"`
}

// OpenFileEvent asks the host to open a file.
type OpenFileEvent struct {
	Path   string            `json:"path"`
	Handle filesystem.Handle `json:"handle"`
}
