package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage research sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently active first",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			sessions := rt.store.List()
			if len(sessions) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			for _, sess := range sessions {
				fmt.Printf("%s  %-30s  last active %s\n",
					sess.ID, sess.Name, sess.LastActiveAt.Format(time.DateTime))
			}
			return nil
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			sess := rt.store.Get(args[0])
			if sess == nil {
				return fmt.Errorf("session %s not found", args[0])
			}

			fmt.Printf("%s (%s)\n\n", sess.Name, sess.ID)
			for _, msg := range sess.Messages {
				label := "user"
				if msg.Role != "user" {
					label = "agent"
				}
				switch {
				case msg.Chart != nil:
					fmt.Printf("[%s] chart: %s\n", label, msg.Chart.Title)
				case msg.Attachment != nil:
					fmt.Printf("[%s] %s (attachment: %s)\n", label, msg.Text, msg.Attachment.Name)
				default:
					fmt.Printf("[%s] %s\n", label, msg.Text)
				}
			}
			return nil
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.store.Get(args[0]) == nil {
				return fmt.Errorf("session %s not found", args[0])
			}
			rt.store.Delete(args[0])
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}
