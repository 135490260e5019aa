package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/temirov/contextkit/internal/types"
)

const (
	nameFlagName        = "name"
	bodyFlagName        = "body"
	nameFlagDescription = "saved prompt name"
	bodyFlagDescription = "saved prompt body"

	promptsUse              = "prompts"
	promptsShortDescription = "manage saved prompts"
	promptsLongDescription  = `List, add, update and delete the saved prompts that copy can attach to a payload.
Saved prompts are stored in the state file shared by every workspace.`
	promptsListUse     = "list"
	promptsAddUse      = "add"
	promptsUpdateUse   = "update <id>"
	promptsDeleteUse   = "delete <id>"
	promptsListShort   = "list saved prompts"
	promptsAddShort    = "add a saved prompt"
	promptsUpdateShort = "update a saved prompt"
	promptsDeleteShort = "delete a saved prompt"

	promptLineFormat    = "%s\t%s\n"
	promptAddedFormat   = "Saved prompt %q added (%s)"
	promptUpdatedFormat = "Saved prompt %s updated"
	promptDeletedFormat = "Saved prompt %s deleted"
	noPromptsMessage    = "No saved prompts"
)

var errPromptStorageUnavailable = errors.New("saved prompt storage is unavailable: no storage path configured")

// createPromptsCommand returns the prompts command group.
func createPromptsCommand(application *application) *cobra.Command {
	promptsCommand := &cobra.Command{
		Use:   promptsUse,
		Short: promptsShortDescription,
		Long:  promptsLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	listCommand := &cobra.Command{
		Use:   promptsListUse,
		Short: promptsListShort,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if err := application.requirePrompts(); err != nil {
				return err
			}
			saved, err := application.prompts.Load()
			if err != nil {
				return err
			}
			return writePrompts(application.dependencies.stdout, saved)
		},
	}

	var addName, addBody string
	addCommand := &cobra.Command{
		Use:   promptsAddUse,
		Short: promptsAddShort,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if err := application.requirePrompts(); err != nil {
				return err
			}
			saved, err := application.prompts.Add(addName, addBody)
			if err != nil {
				return err
			}
			added := saved[len(saved)-1]
			application.printer.Print(types.StatusLevelInfo, fmt.Sprintf(promptAddedFormat, added.Name, added.ID))
			return nil
		},
	}
	addCommand.Flags().StringVar(&addName, nameFlagName, "", nameFlagDescription)
	addCommand.Flags().StringVar(&addBody, bodyFlagName, "", bodyFlagDescription)

	var updateName, updateBody string
	updateCommand := &cobra.Command{
		Use:   promptsUpdateUse,
		Short: promptsUpdateShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			if err := application.requirePrompts(); err != nil {
				return err
			}
			saved, err := application.prompts.Load()
			if err != nil {
				return err
			}
			name, body := updateName, updateBody
			for _, prompt := range saved {
				if prompt.ID != arguments[0] {
					continue
				}
				if !command.Flags().Changed(nameFlagName) {
					name = prompt.Name
				}
				if !command.Flags().Changed(bodyFlagName) {
					body = prompt.Body
				}
			}
			if _, err := application.prompts.Update(arguments[0], name, body); err != nil {
				return err
			}
			application.printer.Print(types.StatusLevelInfo, fmt.Sprintf(promptUpdatedFormat, arguments[0]))
			return nil
		},
	}
	updateCommand.Flags().StringVar(&updateName, nameFlagName, "", nameFlagDescription)
	updateCommand.Flags().StringVar(&updateBody, bodyFlagName, "", bodyFlagDescription)

	deleteCommand := &cobra.Command{
		Use:   promptsDeleteUse,
		Short: promptsDeleteShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			if err := application.requirePrompts(); err != nil {
				return err
			}
			if _, err := application.prompts.Delete(arguments[0]); err != nil {
				return err
			}
			application.printer.Print(types.StatusLevelInfo, fmt.Sprintf(promptDeletedFormat, arguments[0]))
			return nil
		},
	}

	promptsCommand.AddCommand(listCommand, addCommand, updateCommand, deleteCommand)
	return promptsCommand
}

func (application *application) requirePrompts() error {
	if err := application.load(); err != nil {
		return err
	}
	if application.prompts == nil {
		return errPromptStorageUnavailable
	}
	return nil
}

func writePrompts(writer io.Writer, saved []types.MetaPrompt) error {
	if len(saved) == 0 {
		if _, err := fmt.Fprintln(writer, noPromptsMessage); err != nil {
			return fmt.Errorf(errorWriteStdoutFormat, err)
		}
		return nil
	}
	for _, prompt := range saved {
		if _, err := fmt.Fprintf(writer, promptLineFormat, prompt.ID, prompt.Name); err != nil {
			return fmt.Errorf(errorWriteStdoutFormat, err)
		}
	}
	return nil
}
