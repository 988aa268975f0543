package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/agent"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/llm"
)

// consoleSink prints orchestrator events for the interactive chat.
type consoleSink struct{}

func (consoleSink) MessageAppended(_ string, msg domain.Message) {
	if msg.Chart != nil {
		fmt.Printf("[chart] %s (%s, %d points)\n", msg.Chart.Title, msg.Chart.Kind, len(msg.Chart.Points))
	}
}

func (consoleSink) ConflictAdvisory(_ string, notice string, ttl time.Duration) {
	fmt.Printf("[advisory] %s\n", notice)
}

func (consoleSink) ConflictCleared(string) {}

func (consoleSink) ActiveSessionChanged(sessionID string) {
	fmt.Printf("[session] switched to %s\n", sessionID)
}

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Research a company interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			orch := rt.orchestrator(consoleSink{})

			if sessionID != "" {
				if err := orch.SetActiveSession(sessionID); err != nil {
					return err
				}
			} else {
				sess := orch.StartSession("")
				fmt.Printf("Started session %s\n", sess.ID)
			}

			fmt.Println("Type a research request, or /help for commands.")
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())

				if strings.HasPrefix(line, "/") {
					if done := runChatCommand(orch, rt, line); done {
						return nil
					}
					continue
				}

				out, err := orch.RunTurn(cmd.Context(), agent.TurnInput{
					SessionID: orch.ActiveSessionID(),
					Text:      line,
				})
				if err != nil {
					fmt.Printf("(%s)\n", err)
					continue
				}
				if out.Reply != nil && out.Reply.Text != "" {
					fmt.Println(out.Reply.Text)
					for _, src := range out.Reply.Sources {
						fmt.Printf("  [source] %s — %s\n", src.Title, src.URI)
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session id")
	return cmd
}

// runChatCommand handles slash commands. Returns true when the REPL should exit.
func runChatCommand(orch *agent.Orchestrator, rt *runtime, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/help":
		fmt.Println("/sessions            list sessions")
		fmt.Println("/switch <id>         switch to a session")
		fmt.Println("/new [name]          start a new session")
		fmt.Println("/persona <name>      change persona (precise, default, creative)")
		fmt.Println("/report              print the current account plan")
		fmt.Println("/quit                exit")

	case "/sessions":
		for _, sess := range rt.store.List() {
			marker := " "
			if sess.ID == orch.ActiveSessionID() {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  (last active %s)\n",
				marker, sess.ID, sess.Name, sess.LastActiveAt.Format(time.DateTime))
		}

	case "/switch":
		if len(fields) < 2 {
			fmt.Println("usage: /switch <id>")
			break
		}
		if err := orch.SetActiveSession(fields[1]); err != nil {
			fmt.Printf("(%s)\n", err)
		}

	case "/new":
		name := strings.TrimSpace(strings.TrimPrefix(line, "/new"))
		sess := orch.StartSession(name)
		fmt.Printf("Started session %s\n", sess.ID)

	case "/persona":
		if len(fields) < 2 {
			fmt.Println("usage: /persona <precise|default|creative>")
			break
		}
		p, err := llm.ParsePersona(fields[1])
		if err != nil {
			fmt.Printf("(%s)\n", err)
			break
		}
		orch.SetPersona(p)
		fmt.Printf("Persona set to %s\n", p)

	case "/report":
		sess := rt.store.Get(orch.ActiveSessionID())
		if sess == nil {
			fmt.Println("(no active session)")
			break
		}
		fmt.Println(sess.Document.Report())

	case "/quit", "/exit":
		return true

	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
	return false
}
