package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/contextkit/internal/controller"
	"github.com/temirov/contextkit/internal/estimate"
	"github.com/temirov/contextkit/internal/output"
	"github.com/temirov/contextkit/internal/tokenizer"
	"github.com/temirov/contextkit/internal/types"
	"github.com/temirov/contextkit/internal/utils"
)

const (
	modelFlagName        = "model"
	modelFlagDescription = "count tokens exactly with this model's tokenizer instead of estimating"

	summaryUse              = "summary [paths...]"
	summaryAlias            = "s"
	summaryShortDescription = "estimate the size of a selection (" + summaryAlias + ")"
	summaryLongDescription  = `Select the given paths (the working directory when none is given) and report the
file count, total size and token count. Tokens are estimated from the byte size unless a model is
given with --model or configured under tokens.model.`
	summaryUsageExample = `  # Estimate the whole workspace
  contextkit summary

  # Count tokens exactly for one folder
  contextkit summary --model gpt-4o ./internal`
)

// createSummaryCommand returns the summary subcommand.
func createSummaryCommand(application *application) *cobra.Command {
	var model string

	summaryCommand := &cobra.Command{
		Use:     summaryUse,
		Aliases: []string{summaryAlias},
		Short:   summaryShortDescription,
		Long:    summaryLongDescription,
		Example: summaryUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if err := application.load(); err != nil {
				return err
			}
			if len(arguments) == 0 {
				arguments = []string{application.workingDirectory}
			}
			if strings.TrimSpace(model) == "" {
				model = application.settings.TokenModel
			}
			ctx := command.Context()
			activeSession := application.startSession(ctx, sessionOptions{respectIgnore: application.settings.RespectGitignore})
			defer activeSession.close()
			if err := activeSession.send(ctx, controller.Ready{}); err != nil {
				return err
			}
			application.printStatuses(activeSession.takeStatuses())
			nodePaths, err := application.selectPaths(activeSession, arguments)
			if err != nil {
				return err
			}
			activeSession.summary = nil
			intents := make([]controller.Intent, 0, len(nodePaths))
			for _, nodePath := range nodePaths {
				intents = append(intents, controller.ToggleSelection{Path: nodePath, Selected: true})
			}
			if err := activeSession.send(ctx, intents...); err != nil {
				return err
			}

			summary := output.Summary{}
			formattedSize := utils.FormatFileSize(0)
			if activeSession.summary != nil {
				summary.Files = activeSession.summary.Count
				summary.Bytes = activeSession.summary.TotalBytes
				summary.Tokens = activeSession.summary.TokenCount
				formattedSize = activeSession.summary.FormattedSize
			}
			if strings.TrimSpace(model) != "" {
				counter, err := tokenizer.ForModel(model)
				if err != nil {
					return err
				}
				var selection []string
				if activeSession.snapshot != nil {
					selection = activeSession.snapshot.Selection
				}
				entries := make([]types.FileRecord, 0, len(selection))
				for _, filePath := range selection {
					handle, err := handleForNodePath(application.dependencies.fileSystem, application.roots, filePath)
					if err != nil {
						return err
					}
					entries = append(entries, types.FileRecord{Path: filePath, Handle: handle})
				}
				counted, err := estimate.CountTokens(ctx, application.dependencies.fileSystem, entries, counter, application.settings.Concurrency, application.logger)
				if err != nil {
					return err
				}
				summary.Tokens = counted.Tokens
				summary.Skipped = counted.Skipped
				summary.Model = counter.Name()
			}
			if _, err := fmt.Fprintln(application.dependencies.stdout, output.FormatSummaryLine(formattedSize, summary)); err != nil {
				return fmt.Errorf(errorWriteStdoutFormat, err)
			}
			return nil
		},
	}
	summaryCommand.Flags().StringVar(&model, modelFlagName, "", modelFlagDescription)
	return summaryCommand
}
