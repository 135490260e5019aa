// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/contextkit/internal/config"
	"github.com/temirov/contextkit/internal/output"
	"github.com/temirov/contextkit/internal/prompts"
	"github.com/temirov/contextkit/internal/services/clipboard"
	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/services/storage"
	"github.com/temirov/contextkit/internal/state"
	"github.com/temirov/contextkit/internal/tui"
	"github.com/temirov/contextkit/internal/utils"
	"github.com/temirov/contextkit/internal/workspace"
)

const (
	configFlagName       = "config"
	rootFlagName         = "root"
	logLevelFlagName     = "log-level"
	versionTemplate      = "contextkit version: {{.Version}}\n"
	rootUse              = "contextkit"
	rootShortDescription = "contextkit command line interface"
	rootLongDescription  = `contextkit assembles workspace files and instructions into a single clipboard payload
for a language-model chat. It renders the workspace tree, estimates the token cost of a selection,
manages saved prompts and runs an interactive selection panel.
Use --root to add workspace folders; the working directory is used when none is given.`

	configFlagDescription   = "configuration file (defaults to ./" + utils.ConfigFileName + ")"
	rootFlagDescription     = "workspace root folder (repeatable)"
	logLevelFlagDescription = "log level (debug, info, warn, error)"

	workingDirectoryErrorFormat = "unable to determine working directory: %w"
	errorLoadConfigFormat       = "load configuration: %w"
	errorCreateLoggerFormat     = "create logger: %w"
	errorWriteStdoutFormat      = "write output: %w"
)

// dependencies are the host services the commands run against.
type dependencies struct {
	fileSystem       filesystem.FileSystem
	clipboard        clipboard.Copier
	stdout           io.Writer
	stderr           io.Writer
	workingDirectory string
	runInterface     func(ctx context.Context, options tui.Options) error
}

// application is the per-invocation state shared by every command.
type application struct {
	dependencies dependencies

	configPath    string
	rootArguments []string
	logLevel      string

	loaded           bool
	workingDirectory string
	settings         config.Settings
	logger           *zap.Logger
	roots            []workspace.Root
	prompts          *prompts.Store
	printer          *output.StatusPrinter
}

// Execute runs the contextkit application.
func Execute() error {
	rootCommand := createRootCommand(dependencies{
		fileSystem:   filesystem.NewOS(),
		clipboard:    clipboard.NewService(),
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		runInterface: tui.Run,
	})
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(context.Background())
}

// createRootCommand builds the root Cobra command.
func createRootCommand(hostDependencies dependencies) *cobra.Command {
	application := &application{dependencies: hostDependencies}

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Version:       utils.GetApplicationVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	rootCommand.SetVersionTemplate(versionTemplate)
	rootCommand.SetOut(hostDependencies.stdout)
	rootCommand.SetErr(hostDependencies.stderr)
	rootCommand.PersistentFlags().StringVar(&application.configPath, configFlagName, "", configFlagDescription)
	rootCommand.PersistentFlags().StringArrayVar(&application.rootArguments, rootFlagName, nil, rootFlagDescription)
	rootCommand.PersistentFlags().StringVar(&application.logLevel, logLevelFlagName, "", logLevelFlagDescription)
	rootCommand.AddCommand(
		createTreeCommand(application),
		createCopyCommand(application),
		createSummaryCommand(application),
		createPromptsCommand(application),
		createUICommand(application),
		createServeCommand(application),
		createInitCommand(application),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// load reads configuration and builds the logger, roots and prompt store once per invocation.
func (application *application) load() error {
	if application.loaded {
		return nil
	}
	workingDirectory := application.dependencies.workingDirectory
	if workingDirectory == "" {
		current, err := os.Getwd()
		if err != nil {
			return fmt.Errorf(workingDirectoryErrorFormat, err)
		}
		workingDirectory = current
	}
	loadedConfiguration, err := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: application.configPath,
	})
	if err != nil {
		return fmt.Errorf(errorLoadConfigFormat, err)
	}
	settings := loadedConfiguration.Settings()
	if strings.TrimSpace(application.logLevel) != "" {
		settings.LogLevel = application.logLevel
	}
	logger, err := utils.NewApplicationLogger(settings.LogLevel)
	if err != nil {
		return fmt.Errorf(errorCreateLoggerFormat, err)
	}
	roots, err := rootsFromArguments(workingDirectory, application.rootArguments)
	if err != nil {
		return err
	}

	application.workingDirectory = workingDirectory
	application.settings = settings
	application.logger = logger
	application.roots = roots
	if settings.StoragePath != "" {
		application.prompts = prompts.NewStore(storage.NewFileStore(settings.StoragePath), logger)
	}
	application.printer = output.NewStatusPrinter(application.dependencies.stderr, output.IsTerminal(application.dependencies.stderr))
	application.loaded = true
	return nil
}

func (application *application) defaults() state.Defaults {
	return state.Defaults{
		RespectIgnore:       application.settings.RespectGitignore,
		IncludePrompt:       application.settings.IncludePrompt,
		IncludeSavedPrompts: application.settings.IncludeSavedPrompts,
		IncludeFiles:        application.settings.IncludeFiles,
	}
}

// selectPaths maps arguments onto node paths that exist in the loaded tree.
func (application *application) selectPaths(activeSession *session, arguments []string) ([]string, error) {
	nodePaths := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		nodePath, err := nodePathFor(application.roots, application.workingDirectory, argument)
		if err != nil {
			return nil, err
		}
		if _, found := findNode(activeSession.nodes(), nodePath); !found {
			return nil, fmt.Errorf(errorPathNotInWorkspace, argument)
		}
		nodePaths = append(nodePaths, nodePath)
	}
	return nodePaths, nil
}
