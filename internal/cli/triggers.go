package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTriggersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "Inspect and cancel scheduled triggers",
	}
	cmd.AddCommand(newTriggersListCommand(), newTriggersCancelCommand())
	return cmd
}

func newTriggersListCommand() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a session's active triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			triggers, err := a.triggers.ListActive(sessionID)
			if err != nil {
				return err
			}
			if len(triggers) == 0 {
				cmd.Println("no active triggers")
				return nil
			}
			for _, t := range triggers {
				line := fmt.Sprintf("%s  %s  %s", t.ID, t.ScheduledTime.Format(time.RFC3339), t.Title)
				if t.Kind != "" {
					line += fmt.Sprintf("  [%s", t.Kind)
					if t.Recurrence != "" {
						line += " " + t.Recurrence
					}
					line += "]"
				}
				cmd.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "default", "conversation session id")
	return cmd
}

func newTriggersCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <trigger-id>",
		Short: "Cancel a trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.triggers.Deactivate(args[0]); err != nil {
				return err
			}
			cmd.Println("cancelled", args[0])
			return nil
		},
	}
}
