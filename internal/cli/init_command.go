package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/contextkit/internal/config"
	"github.com/temirov/contextkit/internal/output"
	"github.com/temirov/contextkit/internal/types"
)

const (
	globalFlagName        = "global"
	forceFlagName         = "force"
	globalFlagDescription = "write the global configuration instead of the local one"
	forceFlagDescription  = "overwrite an existing configuration file"

	initUse              = "init"
	initShortDescription = "write a default configuration file"
	initLongDescription  = `Write the default configuration to ./.contextkit.yaml, or to the global
configuration directory with --global. An existing file is kept unless --force is set.`
	initCreatedFormat = "Configuration written to %s"
)

// createInitCommand returns the init subcommand.
func createInitCommand(application *application) *cobra.Command {
	var global, force bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Long:  initLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, err := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: application.dependencies.workingDirectory,
			})
			if err != nil {
				return err
			}
			printer := output.NewStatusPrinter(application.dependencies.stderr, output.IsTerminal(application.dependencies.stderr))
			printer.Print(types.StatusLevelInfo, fmt.Sprintf(initCreatedFormat, path))
			return nil
		},
	}
	initCommand.Flags().BoolVar(&global, globalFlagName, false, globalFlagDescription)
	initCommand.Flags().BoolVar(&force, forceFlagName, false, forceFlagDescription)
	return initCommand
}
