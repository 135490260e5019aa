package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/contextkit/internal/controller"
	"github.com/temirov/contextkit/internal/services/clipboard"
	"github.com/temirov/contextkit/internal/services/watch"
	"github.com/temirov/contextkit/internal/tui"
)

const (
	lazyFlagName         = "lazy"
	watchFlagName        = "watch"
	lazyFlagDescription  = "load folders on expansion instead of all at once"
	watchFlagDescription = "refresh the tree when files under the roots change"

	uiUse              = "ui"
	uiShortDescription = "open the interactive selection panel"
	uiLongDescription  = `Open a terminal panel over the workspace roots. Select files and folders,
attach saved prompts, write instructions and copy the assembled payload to the clipboard.`

	logMessageWatchUnavailable = "file watching unavailable"
)

// interactiveOptions are the flags shared by the long-running commands.
type interactiveOptions struct {
	lazy         *bool
	watchChanges *bool
}

func (options *interactiveOptions) register(command *cobra.Command) {
	registerOptionalBooleanFlag(command.Flags(), &options.lazy, lazyFlagName, lazyFlagDescription)
	registerOptionalBooleanFlag(command.Flags(), &options.watchChanges, watchFlagName, watchFlagDescription)
}

// createUICommand returns the ui subcommand.
func createUICommand(application *application) *cobra.Command {
	var options interactiveOptions

	uiCommand := &cobra.Command{
		Use:   uiUse,
		Short: uiShortDescription,
		Long:  uiLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if err := application.load(); err != nil {
				return err
			}
			runCtx, instance, stop := application.startInteractive(command.Context(), options)
			defer stop()
			return application.dependencies.runInterface(runCtx, tui.Options{Session: instance})
		},
	}
	options.register(uiCommand)
	return uiCommand
}

// startInteractive runs a controller, optionally driven by a watcher, until stop is called.
func (application *application) startInteractive(ctx context.Context, options interactiveOptions) (context.Context, *controller.Controller, func()) {
	controllerOptions := controller.Options{
		Roots:       application.roots,
		Lazy:        boolOr(options.lazy, application.settings.Lazy),
		Concurrency: application.settings.Concurrency,
		MaxFileSize: application.settings.MaxFileSize,
		Defaults:    application.defaults(),
	}
	var watcher *watch.Watcher
	if boolOr(options.watchChanges, application.settings.Watch) {
		rootPaths := make([]string, 0, len(application.roots))
		for _, root := range application.roots {
			rootPaths = append(rootPaths, string(root.Handle))
		}
		created, err := watch.New(rootPaths, watch.Options{Logger: application.logger})
		if err != nil {
			application.logger.Warn(logMessageWatchUnavailable, zap.Error(err))
		} else {
			watcher = created
			controllerOptions.Changes = watcher.Changes()
		}
	}

	var copier clipboard.Copier
	if application.settings.Clipboard {
		copier = application.dependencies.clipboard
	}
	instance := controller.New(controller.Dependencies{
		FileSystem: application.dependencies.fileSystem,
		Clipboard:  copier,
		Prompts:    application.prompts,
		Logger:     application.logger,
	}, controllerOptions)

	runCtx, cancel := context.WithCancel(ctx)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = instance.Run(runCtx)
	}()
	stop := func() {
		cancel()
		<-finished
		if watcher != nil {
			_ = watcher.Close()
		}
	}
	return runCtx, instance, stop
}
