package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/valet/internal/domain"
)

func newMessageCommand() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "message <text>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			action, err := a.conductor.Handle(cmd.Context(), domain.InboundTurn{
				SessionID: sessionID,
				Body:      strings.Join(args, " "),
				Kind:      domain.TurnUser,
				Timestamp: time.Now(),
			})
			if err != nil {
				return err
			}
			if action.Kind == domain.ActionSuppress {
				return nil
			}
			cmd.Println(action.Reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "default", "conversation session id")
	return cmd
}
