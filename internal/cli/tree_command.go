package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/contextkit/internal/controller"
	"github.com/temirov/contextkit/internal/output"
	"github.com/temirov/contextkit/internal/types"
)

const (
	formatFlagName                  = "format"
	noGitignoreFlagName             = "no-gitignore"
	formatFlagDescription           = "output format (raw or json)"
	disableGitignoreFlagDescription = "do not apply .gitignore rules"
	invalidFormatMessage            = "Invalid format value '%s'"

	treeUse              = "tree [paths...]"
	treeAlias            = "t"
	treeShortDescription = "display the workspace tree (" + treeAlias + ")"
	treeLongDescription  = `List the workspace tree, or the subtrees of the given paths.
Ignored entries are hidden unless --no-gitignore is set, in which case they are marked.`
	treeUsageExample = `  # Render the whole workspace
  contextkit tree

  # Render one folder as JSON, including ignored files
  contextkit tree --format json --no-gitignore ./internal`
)

// isSupportedFormat reports whether the provided format is recognized.
func isSupportedFormat(format string) bool {
	switch format {
	case types.FormatRaw, types.FormatJSON:
		return true
	default:
		return false
	}
}

// createTreeCommand returns the tree subcommand.
func createTreeCommand(application *application) *cobra.Command {
	var outputFormat = types.FormatRaw
	var disableGitignore bool

	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Example: treeUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			outputFormatLower := strings.ToLower(outputFormat)
			if !isSupportedFormat(outputFormatLower) {
				return fmt.Errorf(invalidFormatMessage, outputFormatLower)
			}
			if err := application.load(); err != nil {
				return err
			}
			activeSession := application.startSession(command.Context(), sessionOptions{
				respectIgnore: application.settings.RespectGitignore && !disableGitignore,
			})
			defer activeSession.close()
			if err := activeSession.send(command.Context(), controller.Ready{}); err != nil {
				return err
			}
			application.printStatuses(activeSession.takeStatuses())

			nodes := activeSession.nodes()
			if len(arguments) > 0 {
				nodePaths, err := application.selectPaths(activeSession, arguments)
				if err != nil {
					return err
				}
				selected := make([]types.Node, 0, len(nodePaths))
				for _, nodePath := range nodePaths {
					node, _ := findNode(nodes, nodePath)
					selected = append(selected, node)
				}
				nodes = selected
			}
			if outputFormatLower == types.FormatJSON {
				return output.WriteTreesJSON(application.dependencies.stdout, nodes)
			}
			return output.WriteTreesRaw(application.dependencies.stdout, nodes)
		},
	}
	treeCommand.Flags().StringVar(&outputFormat, formatFlagName, types.FormatRaw, formatFlagDescription)
	treeCommand.Flags().BoolVar(&disableGitignore, noGitignoreFlagName, false, disableGitignoreFlagDescription)
	return treeCommand
}

func (application *application) printStatuses(statuses []controller.StatusEvent) {
	for _, status := range statuses {
		application.printer.Print(status.Level, status.Message)
	}
}
