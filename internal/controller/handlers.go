package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/contextkit/internal/estimate"
	"github.com/temirov/contextkit/internal/payload"
	"github.com/temirov/contextkit/internal/prompts"
	"github.com/temirov/contextkit/internal/types"
	"github.com/temirov/contextkit/internal/utils"
)

const (
	messageLoadFailed          = "Failed to load workspace files."
	messagePromptsUnavailable  = "Saved prompts are unavailable."
	messagePromptsFailedFormat = "Failed to update saved prompts: %v"
	messageClipboardFormat     = "Failed to write to clipboard: %v"
	messageUnknownViewFormat   = "Unknown view mode: %s"
	logMessageStaleDiscarded   = "stale result discarded"
	logMessageChildrenFailed   = "folder children unavailable"
	logMessagePromptsLoad      = "saved prompts unavailable"
	logMessageCopyFailed       = "copy failed"
	logMessageSummaryFailed    = "selection summary failed"
	logMessageIndexFailed      = "file index failed"
	logFieldFolder             = "folder"
	logFieldGeneration         = "generation"
	logFieldTask               = "task"
	taskChildren               = "children"
	taskIndex                  = "index"
)

func (controller *Controller) handle(ctx context.Context, intent Intent) {
	switch typed := intent.(type) {
	case Ready:
		controller.loadPrompts(ctx)
		controller.emitSnapshot(ctx)
		controller.refresh(ctx)
	case Refresh:
		controller.refresh(ctx)
	case ToggleRespectIgnore:
		controller.state.SetRespectIgnore(typed.Value)
		controller.state.ClearSelection()
		controller.state.ClearExpanded()
		controller.refresh(ctx)
	case SelectionChanged:
		controller.state.SetSelection(typed.Paths)
		controller.selectionChanged(ctx)
	case ToggleSelection:
		foldersToLoad := controller.state.ToggleSelection(typed.Path, typed.Selected)
		for _, folderPath := range foldersToLoad {
			controller.requestChildren(ctx, folderPath)
		}
		controller.selectionChanged(ctx)
	case SelectAll:
		controller.state.SelectAll()
		controller.selectionChanged(ctx)
	case ClearSelection:
		controller.state.ClearSelection()
		controller.selectionChanged(ctx)
	case ExpandedChanged:
		controller.state.SetExpanded(typed.Paths)
		for _, folderPath := range controller.state.ExpandedFoldersToLoad() {
			controller.requestChildren(ctx, folderPath)
		}
		controller.emitSnapshot(ctx)
	case ToggleExpanded:
		if controller.state.ToggleExpanded(typed.Path, typed.Expanded) {
			controller.requestChildren(ctx, typed.Path)
		}
		controller.emitSnapshot(ctx)
	case RequestChildren:
		controller.requestChildren(ctx, typed.Path)
	case PromptChanged:
		controller.state.SetPrompt(typed.Value)
		controller.emitSnapshot(ctx)
	case IncludePromptChanged:
		controller.state.SetIncludePrompt(typed.Value)
		controller.emitSnapshot(ctx)
	case IncludeSavedPromptsChanged:
		controller.state.SetIncludeSavedPrompts(typed.Value)
		controller.emitSnapshot(ctx)
	case IncludeFilesChanged:
		controller.state.SetIncludeFiles(typed.Value)
		controller.emitSnapshot(ctx)
	case SetSelectedMetaPrompts:
		controller.state.SetSelectedMetaPromptIDs(typed.IDs)
		controller.emitSnapshot(ctx)
	case SetViewMode:
		if !controller.state.SetViewMode(typed.Mode) {
			controller.status(ctx, types.StatusLevelWarning, fmt.Sprintf(messageUnknownViewFormat, typed.Mode))
			return
		}
		controller.emitSnapshot(ctx)
	case CreateMetaPrompt:
		controller.mutatePrompts(ctx, func(store *prompts.Store) ([]types.MetaPrompt, error) {
			return store.Add(typed.Name, typed.Body)
		})
	case UpdateMetaPrompt:
		controller.mutatePrompts(ctx, func(store *prompts.Store) ([]types.MetaPrompt, error) {
			return store.Update(typed.ID, typed.Name, typed.Body)
		})
	case DeleteMetaPrompt:
		controller.mutatePrompts(ctx, func(store *prompts.Store) ([]types.MetaPrompt, error) {
			return store.Delete(typed.ID)
		})
	case RequestCopy:
		controller.copy(ctx, typed.Overrides)
	case OpenFile:
		controller.openFile(ctx, typed.Path)
	}
}

// refresh starts a new generation. Results of earlier generations are discarded when they complete.
func (controller *Controller) refresh(ctx context.Context) {
	controller.generation++
	generation := controller.generation
	controller.emit(ctx, Event{Kind: EventKindLoading})

	if len(controller.options.Roots) == 0 {
		controller.state.SetRoots(nil)
		controller.state.SetFiles(nil)
		controller.state.ClearSelection()
		controller.state.ClearExpanded()
		controller.emit(ctx, Event{Kind: EventKindFileIndex, Files: []string{}})
		controller.emit(ctx, Event{Kind: EventKindNoWorkspace})
		controller.scheduleSummary(ctx)
		controller.emitSnapshot(ctx)
		return
	}

	controller.loader.Reset()
	controller.loader.SetRespectIgnore(controller.state.RespectIgnore())
	if controller.options.Lazy {
		controller.state.SetRoots(controller.loader.LoadRoots(controller.options.Roots))
		controller.emitSnapshot(ctx)
		for _, folderPath := range controller.state.ExpandedFoldersToLoad() {
			controller.requestChildren(ctx, folderPath)
		}
	}

	roots := controller.options.Roots
	controller.spawn(ctx, func(workerCtx context.Context) completion {
		treeData, loadError := controller.loader.LoadTree(workerCtx, roots)
		return func(ctx context.Context) {
			if generation != controller.generation {
				controller.logger.Debug(logMessageStaleDiscarded, zap.String(logFieldTask, taskIndex), zap.Uint64(logFieldGeneration, generation))
				return
			}
			if loadError != nil {
				controller.logger.Debug(logMessageIndexFailed, zap.Error(loadError))
				return
			}
			controller.applyIndex(ctx, treeData)
		}
	})
	controller.scheduleSummary(ctx)
}

func (controller *Controller) applyIndex(ctx context.Context, treeData types.TreeData) {
	if controller.options.Lazy {
		controller.state.PruneExpandedAgainstTree(treeData.Nodes)
	} else {
		controller.state.ReplaceTree(treeData.Nodes)
	}
	controller.state.SetFiles(treeData.Files)
	paths := make([]string, 0, len(treeData.Files))
	for _, record := range treeData.Files {
		paths = append(paths, record.Path)
	}
	controller.emit(ctx, Event{Kind: EventKindFileIndex, Files: paths})
	if len(treeData.Nodes) == 0 {
		controller.status(ctx, types.StatusLevelWarning, messageLoadFailed)
	}
	controller.scheduleSummary(ctx)
	controller.emitSnapshot(ctx)
}

// requestChildren loads one level of an unloaded folder unless a request is already outstanding.
func (controller *Controller) requestChildren(ctx context.Context, folderPath string) {
	node, known := controller.state.Node(folderPath)
	if !known || !node.IsFolder() || node.Loaded {
		return
	}
	if !controller.state.BeginChildrenRequest(folderPath) {
		return
	}
	generation := controller.generation
	controller.spawn(ctx, func(workerCtx context.Context) completion {
		children, files, loadError := controller.loader.LoadChildren(workerCtx, folderPath)
		return func(ctx context.Context) {
			controller.applyChildren(ctx, generation, folderPath, children, files, loadError)
		}
	})
}

func (controller *Controller) applyChildren(ctx context.Context, generation uint64, folderPath string, children []types.Node, files []types.FileRecord, loadError error) {
	if generation != controller.generation {
		controller.logger.Debug(logMessageStaleDiscarded, zap.String(logFieldTask, taskChildren), zap.String(logFieldFolder, folderPath))
		return
	}
	if loadError != nil {
		controller.state.FinishChildrenRequest(folderPath)
		controller.logger.Debug(logMessageChildrenFailed, zap.String(logFieldFolder, folderPath), zap.Error(loadError))
		return
	}
	foldersToLoad := controller.state.ApplyChildren(folderPath, children, files)
	loaded := make([]types.Node, 0, len(children))
	for _, child := range children {
		if node, known := controller.state.Node(child.Path); known {
			loaded = append(loaded, node)
		}
	}
	controller.emit(ctx, Event{Kind: EventKindChildrenLoaded, Children: &ChildrenEvent{Path: folderPath, Children: loaded}})
	for _, nextPath := range foldersToLoad {
		controller.requestChildren(ctx, nextPath)
	}
	controller.scheduleSummary(ctx)
	controller.emitSnapshot(ctx)
}

func (controller *Controller) selectionChanged(ctx context.Context) {
	controller.scheduleSummary(ctx)
	controller.emitSnapshot(ctx)
}

// scheduleSummary estimates the current selection. Only the latest request publishes.
func (controller *Controller) scheduleSummary(ctx context.Context) {
	controller.summaryToken++
	token := controller.summaryToken
	entries := controller.state.GetSelectionEntries()
	controller.spawn(ctx, func(workerCtx context.Context) completion {
		result, summarizeError := estimate.Summarize(workerCtx, controller.fileSystem, entries, controller.options.Concurrency, controller.logger)
		return func(ctx context.Context) {
			if summarizeError != nil {
				controller.logger.Debug(logMessageSummaryFailed, zap.Error(summarizeError))
				return
			}
			controller.state.RecordSizes(result.Sizes)
			if token != controller.summaryToken {
				return
			}
			controller.emit(ctx, Event{Kind: EventKindSummary, Summary: &SummaryEvent{
				SelectionSummary: result.Summary,
				FormattedSize:    utils.FormatFileSize(result.Summary.TotalBytes),
			}})
		}
	})
}

func (controller *Controller) copy(ctx context.Context, overrides types.CopyOverrides) {
	configuration := controller.state.CopyConfiguration(overrides)
	controller.emitSnapshot(ctx)
	entries := controller.state.GetSelectionEntries()
	metaPrompts := controller.state.SelectedMetaPrompts()
	copier := controller.clipboard
	options := payload.Options{
		MaxFileSize: controller.options.MaxFileSize,
		Concurrency: controller.options.Concurrency,
		Logger:      controller.logger,
	}
	controller.spawn(ctx, func(workerCtx context.Context) completion {
		assembled, assembleError := payload.Assemble(workerCtx, controller.fileSystem, entries, metaPrompts, configuration, options)
		var copyError error
		if assembleError == nil && !assembled.IsEmpty() && copier != nil {
			copyError = copier.Copy(assembled.Text)
		}
		return func(ctx context.Context) {
			controller.finishCopy(ctx, assembled, assembleError, copier != nil, copyError)
		}
	})
}

func (controller *Controller) finishCopy(ctx context.Context, assembled payload.Payload, assembleError error, hasClipboard bool, copyError error) {
	if assembleError != nil {
		controller.logger.Debug(logMessageCopyFailed, zap.Error(assembleError))
		return
	}
	controller.state.RecordSizes(assembled.Sizes)
	if assembled.IsEmpty() {
		controller.status(ctx, types.StatusLevelWarning, assembled.EmptyReason)
		return
	}
	copied := hasClipboard && copyError == nil
	controller.emit(ctx, Event{Kind: EventKindCopied, Copy: &CopyEvent{Text: assembled.Text, Skipped: assembled.Skipped, Clipboard: copied}})
	switch {
	case copyError != nil:
		controller.logger.Warn(logMessageCopyFailed, zap.Error(copyError))
		controller.status(ctx, types.StatusLevelWarning, fmt.Sprintf(messageClipboardFormat, copyError))
	case copied:
		message, level := assembled.StatusMessage()
		controller.status(ctx, level, message)
	}
}

func (controller *Controller) openFile(ctx context.Context, filePath string) {
	record, known := controller.state.FileRecord(filePath)
	if !known {
		controller.refresh(ctx)
		return
	}
	controller.emit(ctx, Event{Kind: EventKindOpenFile, Open: &OpenFileEvent{Path: record.Path, Handle: record.Handle}})
}

func (controller *Controller) loadPrompts(ctx context.Context) {
	if controller.prompts == nil {
		return
	}
	loaded, loadError := controller.prompts.Load()
	if loadError != nil {
		controller.logger.Warn(logMessagePromptsLoad, zap.Error(loadError))
		controller.status(ctx, types.StatusLevelWarning, fmt.Sprintf(messagePromptsFailedFormat, loadError))
		return
	}
	controller.state.SetMetaPrompts(loaded)
}

func (controller *Controller) mutatePrompts(ctx context.Context, mutate func(store *prompts.Store) ([]types.MetaPrompt, error)) {
	if controller.prompts == nil {
		controller.status(ctx, types.StatusLevelWarning, messagePromptsUnavailable)
		return
	}
	updated, mutateError := mutate(controller.prompts)
	if mutateError != nil {
		controller.status(ctx, types.StatusLevelWarning, fmt.Sprintf(messagePromptsFailedFormat, mutateError))
		return
	}
	controller.state.SetMetaPrompts(updated)
	controller.emitSnapshot(ctx)
}

func (controller *Controller) status(ctx context.Context, level types.StatusLevel, message string) {
	controller.emit(ctx, Event{Kind: EventKindStatus, Status: &StatusEvent{Level: level, Message: message}})
}
