package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/contextkit/internal/host"
	"github.com/temirov/contextkit/internal/types"
)

const (
	addressFlagName        = "address"
	addressFlagDescription = "listen address for the host endpoint"
	defaultServeAddress    = "127.0.0.1:0"

	serveUse              = "serve"
	serveShortDescription = "serve the selection session to an editor host"
	serveLongDescription  = `Run a selection session and expose it over HTTP. The host posts intent messages to
/intents and reads event messages from /events, one JSON object per line. The bound address is printed
once the listener is ready.`
	serveListeningFormat = "Listening on http://%s"
)

// createServeCommand returns the serve subcommand.
func createServeCommand(application *application) *cobra.Command {
	var options interactiveOptions
	var address string

	serveCommand := &cobra.Command{
		Use:   serveUse,
		Short: serveShortDescription,
		Long:  serveLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if err := application.load(); err != nil {
				return err
			}
			runCtx, instance, stop := application.startInteractive(command.Context(), options)
			defer stop()
			server := host.NewServer(instance, host.Config{Address: address, Logger: application.logger})
			return server.Run(runCtx, func(boundAddress string) {
				application.printer.Print(types.StatusLevelInfo, fmt.Sprintf(serveListeningFormat, boundAddress))
			})
		},
	}
	options.register(serveCommand)
	serveCommand.Flags().StringVar(&address, addressFlagName, defaultServeAddress, addressFlagDescription)
	return serveCommand
}
