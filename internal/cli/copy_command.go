package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/contextkit/internal/controller"
	"github.com/temirov/contextkit/internal/services/clipboard"
	"github.com/temirov/contextkit/internal/types"
)

const (
	promptFlagName              = "prompt"
	includePromptFlagName       = "include-prompt"
	includeSavedPromptsFlagName = "include-saved-prompts"
	includeFilesFlagName        = "include-files"
	metaFlagName                = "meta"
	clipboardFlagName           = "clipboard"

	promptFlagDescription              = "user instructions appended to the payload"
	includePromptFlagDescription       = "include the user instructions"
	includeSavedPromptsFlagDescription = "include the selected saved prompts"
	includeFilesFlagDescription        = "include the file tree and file contents"
	metaFlagDescription                = "saved prompt id or name to include (repeatable)"
	clipboardFlagDescription           = "write the payload to the clipboard instead of standard output"

	copyUse              = "copy [paths...]"
	copyAlias            = "c"
	copyShortDescription = "assemble the selection into a payload (" + copyAlias + ")"
	copyLongDescription  = `Select the given paths (the working directory when none is given), assemble the
payload with the file tree, file contents, saved prompts and user instructions, and copy it.
Binary files, files larger than the size limit and unreadable files are skipped and reported.`
	copyUsageExample = `  # Copy two folders with instructions
  contextkit copy ./cmd ./internal --prompt "Explain the startup sequence"

  # Print the payload instead of using the clipboard
  contextkit copy --clipboard=false main.go`

	skippedListPrefix = "Skipped: "
	skippedSeparator  = ", "
)

var errNothingCopied = errors.New("nothing to copy")

// createCopyCommand returns the copy subcommand.
func createCopyCommand(application *application) *cobra.Command {
	var promptText string
	var includePrompt, includeSavedPrompts, includeFiles, useClipboard *bool
	var metaReferences []string

	copyCommand := &cobra.Command{
		Use:     copyUse,
		Aliases: []string{copyAlias},
		Short:   copyShortDescription,
		Long:    copyLongDescription,
		Example: copyUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if err := application.load(); err != nil {
				return err
			}
			if len(arguments) == 0 {
				arguments = []string{application.workingDirectory}
			}
			writeClipboard := boolOr(useClipboard, application.settings.Clipboard)
			var copier clipboard.Copier
			if writeClipboard {
				copier = application.dependencies.clipboard
			}
			ctx := command.Context()
			activeSession := application.startSession(ctx, sessionOptions{
				respectIgnore: application.settings.RespectGitignore,
				copier:        copier,
			})
			defer activeSession.close()
			if err := activeSession.send(ctx, controller.Ready{}); err != nil {
				return err
			}
			application.printStatuses(activeSession.takeStatuses())

			nodePaths, err := application.selectPaths(activeSession, arguments)
			if err != nil {
				return err
			}
			for _, nodePath := range nodePaths {
				if err := activeSession.send(ctx, controller.ToggleSelection{Path: nodePath, Selected: true}); err != nil {
					return err
				}
			}

			overrides := types.CopyOverrides{
				IncludePrompt:       includePrompt,
				IncludeSavedPrompts: includeSavedPrompts,
				IncludeFiles:        includeFiles,
			}
			if command.Flags().Changed(promptFlagName) {
				overrides.PromptText = &promptText
			}
			if len(metaReferences) > 0 {
				var available []types.MetaPrompt
				if activeSession.snapshot != nil {
					available = activeSession.snapshot.MetaPrompts
				}
				ids, err := metaPromptIDs(available, metaReferences)
				if err != nil {
					return err
				}
				overrides.SelectedMetaPromptIDs = ids
			}
			if err := activeSession.send(ctx, controller.RequestCopy{Overrides: overrides}); err != nil {
				return err
			}

			statuses := activeSession.takeStatuses()
			if activeSession.copied == nil {
				for _, status := range statuses {
					if status.Level == types.StatusLevelWarning {
						return fmt.Errorf("%w: %s", errNothingCopied, status.Message)
					}
				}
				return errNothingCopied
			}
			application.printStatuses(statuses)
			if !activeSession.copied.Clipboard {
				if _, err := fmt.Fprintln(application.dependencies.stdout, activeSession.copied.Text); err != nil {
					return fmt.Errorf(errorWriteStdoutFormat, err)
				}
				if !writeClipboard && len(activeSession.copied.Skipped) > 0 {
					skippedEntries := make([]string, 0, len(activeSession.copied.Skipped))
					for _, skipped := range activeSession.copied.Skipped {
						skippedEntries = append(skippedEntries, skipped.String())
					}
					application.printer.Print(types.StatusLevelWarning, skippedListPrefix+strings.Join(skippedEntries, skippedSeparator))
				}
			}
			return nil
		},
	}
	copyCommand.Flags().StringVar(&promptText, promptFlagName, "", promptFlagDescription)
	registerOptionalBooleanFlag(copyCommand.Flags(), &includePrompt, includePromptFlagName, includePromptFlagDescription)
	registerOptionalBooleanFlag(copyCommand.Flags(), &includeSavedPrompts, includeSavedPromptsFlagName, includeSavedPromptsFlagDescription)
	registerOptionalBooleanFlag(copyCommand.Flags(), &includeFiles, includeFilesFlagName, includeFilesFlagDescription)
	registerOptionalBooleanFlag(copyCommand.Flags(), &useClipboard, clipboardFlagName, clipboardFlagDescription)
	copyCommand.Flags().StringArrayVar(&metaReferences, metaFlagName, nil, metaFlagDescription)
	return copyCommand
}
