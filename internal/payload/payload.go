// Package payload assembles the clipboard document from the selection and prompts.
package payload

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/types"
	"github.com/temirov/contextkit/internal/utils"
)

// Reasons a selected file is left out of the payload.
const (
	SkipReasonTooLarge   = "too large"
	SkipReasonBinary     = "binary"
	SkipReasonUnreadable = "unreadable"
)

// Reasons nothing was assembled.
const (
	EmptyReasonEnableInstructions = `Enable "Include user instructions" to copy without selected files.`
	EmptyReasonNoFilesSelected    = "No files selected"
	EmptyReasonNoEligibleFiles    = "No eligible files to copy."
)

const (
	copiedMessage            = "Context copied to clipboard"
	copiedWithSkippedFormat  = "Context copied to clipboard. Skipped: %s"
	skippedEntryFormat       = "%s (%s)"
	skippedSeparator         = ", "
	blockSeparator           = "\n\n"
	lineSeparator            = "\n"
	contextOpenTag           = "<context>"
	contextCloseTag          = "</context>"
	fileTreeOpenTag          = "<fileTree>"
	fileTreeCloseTag         = "</fileTree>"
	fileOpenTagFormat        = `<file path="%s">`
	fileCloseTag             = "</file>"
	codeFence                = "```"
	escapedCodeFence         = "\\`\\`\\`"
	metaInstructionsOpenTag  = "<metaInstructions>"
	metaInstructionsCloseTag = "</metaInstructions>"
	metaInstructionOpenFmt   = `<metaInstruction name="%s">`
	metaInstructionEmptyFmt  = `<metaInstruction name="%s" />`
	metaInstructionCloseTag  = "</metaInstruction>"
	userInstructionsOpenTag  = "<userInstructions>"
	userInstructionsCloseTag = "</userInstructions>"
	logMessageFileSkipped    = "file skipped"
	logFieldPath             = "path"
	logFieldReason           = "reason"
)

// Options tunes assembly.
type Options struct {
	// MaxFileSize is the largest file copied; zero selects utils.MaxFileSizeBytes.
	MaxFileSize int64
	// Concurrency bounds simultaneous file reads; zero selects the default.
	Concurrency int
	Logger      *zap.Logger
}

// SkippedFile names a selected file that produced no block.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// String renders the entry as "path (reason)".
func (skippedFile SkippedFile) String() string {
	return fmt.Sprintf(skippedEntryFormat, skippedFile.Path, skippedFile.Reason)
}

// Payload is the outcome of one assembly. Text is empty exactly when EmptyReason is set.
type Payload struct {
	Text        string
	Skipped     []SkippedFile
	EmptyReason string
	// Sizes holds sizes learned by stat during assembly, keyed by file path.
	Sizes map[string]int64
}

// IsEmpty reports whether nothing should be written to the clipboard.
func (payload Payload) IsEmpty() bool {
	return payload.Text == utils.EmptyString
}

// StatusMessage returns the user-facing outcome and its level.
func (payload Payload) StatusMessage() (string, types.StatusLevel) {
	if payload.IsEmpty() {
		return payload.EmptyReason, types.StatusLevelWarning
	}
	if len(payload.Skipped) == 0 {
		return copiedMessage, types.StatusLevelInfo
	}
	skippedEntries := make([]string, 0, len(payload.Skipped))
	for _, skippedFile := range payload.Skipped {
		skippedEntries = append(skippedEntries, skippedFile.String())
	}
	return fmt.Sprintf(copiedWithSkippedFormat, strings.Join(skippedEntries, skippedSeparator)), types.StatusLevelWarning
}

// fileOutcome is the result of reading one selected entry.
type fileOutcome struct {
	block   string
	skipped *SkippedFile
	size    *int64
}

// Assemble builds the payload for entries (in selection order) and the selected saved prompts.
// Per-file failures become skipped entries; only context cancellation is returned as an error.
func Assemble(ctx context.Context, fileSystem filesystem.FileSystem, entries []types.FileRecord, metaPrompts []types.MetaPrompt, configuration types.CopyConfiguration, options Options) (Payload, error) {
	logger := utils.LoggerOrNop(options.Logger)
	maxFileSize := options.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = utils.MaxFileSizeBytes
	}
	result := Payload{Sizes: map[string]int64{}}

	var fileTreeBlock, fileSection string
	if configuration.IncludeFiles && len(entries) > 0 {
		paths := make([]string, 0, len(entries))
		for _, entry := range entries {
			paths = append(paths, entry.Path)
		}
		if treeText := BuildFileTree(paths); treeText != utils.EmptyString {
			fileTreeBlock = fileTreeOpenTag + lineSeparator + utils.EscapeXML(treeText) + lineSeparator + fileTreeCloseTag
		}

		outcomes := make([]fileOutcome, len(entries))
		readError := utils.ForEachBounded(ctx, len(entries), options.Concurrency, func(workerCtx context.Context, index int) error {
			outcome, outcomeError := readEntry(workerCtx, fileSystem, entries[index], maxFileSize)
			if outcomeError != nil {
				return outcomeError
			}
			outcomes[index] = outcome
			return nil
		})
		if readError != nil {
			return Payload{}, readError
		}
		var blocks []string
		for index, outcome := range outcomes {
			if outcome.size != nil {
				result.Sizes[entries[index].Path] = *outcome.size
			}
			if outcome.skipped != nil {
				logger.Debug(logMessageFileSkipped, zap.String(logFieldPath, outcome.skipped.Path), zap.String(logFieldReason, outcome.skipped.Reason))
				result.Skipped = append(result.Skipped, *outcome.skipped)
				continue
			}
			blocks = append(blocks, outcome.block)
		}
		fileSection = strings.Join(blocks, blockSeparator)
	}

	var trimmedInstructions string
	if configuration.IncludePrompt {
		trimmedInstructions = strings.TrimSpace(configuration.PromptText)
	}
	var metaBlock string
	if configuration.IncludeSavedPrompts && len(metaPrompts) > 0 {
		metaBlock = buildMetaBlock(metaPrompts)
	}

	if fileTreeBlock == utils.EmptyString && fileSection == utils.EmptyString && trimmedInstructions == utils.EmptyString && metaBlock == utils.EmptyString {
		result.EmptyReason = emptyReason(entries, configuration)
		return result, nil
	}

	sections := []string{contextOpenTag}
	for _, block := range []string{fileTreeBlock, fileSection, metaBlock, buildInstructionsBlock(trimmedInstructions)} {
		if block != utils.EmptyString {
			sections = append(sections, block)
		}
	}
	sections = append(sections, contextCloseTag)
	result.Text = strings.Join(sections, blockSeparator)
	return result, nil
}

func emptyReason(entries []types.FileRecord, configuration types.CopyConfiguration) string {
	switch {
	case strings.TrimSpace(configuration.PromptText) != utils.EmptyString && !configuration.IncludePrompt:
		return EmptyReasonEnableInstructions
	case len(entries) == 0:
		return EmptyReasonNoFilesSelected
	default:
		return EmptyReasonNoEligibleFiles
	}
}

func readEntry(ctx context.Context, fileSystem filesystem.FileSystem, entry types.FileRecord, maxFileSize int64) (fileOutcome, error) {
	var outcome fileOutcome
	skip := func(reason string) (fileOutcome, error) {
		outcome.skipped = &SkippedFile{Path: entry.Path, Reason: reason}
		return outcome, nil
	}

	size := entry.Size
	if size == nil {
		if info, statError := fileSystem.Stat(ctx, entry.Handle); statError == nil {
			statSize := info.Size
			size = &statSize
			outcome.size = &statSize
		} else if ctxError := ctx.Err(); ctxError != nil {
			return fileOutcome{}, ctxError
		}
	}
	if size != nil && *size > maxFileSize {
		return skip(SkipReasonTooLarge)
	}

	content, readError := fileSystem.ReadFile(ctx, entry.Handle)
	if readError != nil {
		if ctxError := ctx.Err(); ctxError != nil {
			return fileOutcome{}, ctxError
		}
		return skip(SkipReasonUnreadable)
	}
	if int64(len(content)) > maxFileSize {
		return skip(SkipReasonTooLarge)
	}
	if utils.IsBinary(content) {
		return skip(SkipReasonBinary)
	}

	opener := codeFence
	if language := utils.InferLanguage(entry.Path); language != utils.EmptyString {
		opener = codeFence + language
	}
	text := strings.ReplaceAll(string(content), codeFence, escapedCodeFence)
	outcome.block = strings.Join([]string{
		fmt.Sprintf(fileOpenTagFormat, utils.EscapeXML(entry.Path)),
		opener,
		text,
		codeFence,
		fileCloseTag,
	}, lineSeparator)
	return outcome, nil
}

func buildMetaBlock(metaPrompts []types.MetaPrompt) string {
	lines := []string{metaInstructionsOpenTag}
	for _, metaPrompt := range metaPrompts {
		name := utils.EscapeXML(metaPrompt.Name)
		body := utils.EscapeXML(strings.TrimSpace(metaPrompt.Body))
		if body == utils.EmptyString {
			lines = append(lines, fmt.Sprintf(metaInstructionEmptyFmt, name))
			continue
		}
		lines = append(lines, fmt.Sprintf(metaInstructionOpenFmt, name), body, metaInstructionCloseTag)
	}
	lines = append(lines, metaInstructionsCloseTag)
	return strings.Join(lines, lineSeparator)
}

func buildInstructionsBlock(trimmedInstructions string) string {
	if trimmedInstructions == utils.EmptyString {
		return utils.EmptyString
	}
	return userInstructionsOpenTag + lineSeparator + utils.EscapeXML(trimmedInstructions) + lineSeparator + userInstructionsCloseTag
}
