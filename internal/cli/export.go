package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session's account plan as plain text",
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

			report := fmt.Sprintf("# %s\n\n%s", sess.Name, sess.Document.Report())

			if outPath == "" {
				if err := paths.EnsureDirs(); err != nil {
					return err
				}
				outPath = filepath.Join(paths.Exports, exportFileName(sess.Name))
			}
			if outPath == "-" {
				fmt.Print(report)
				return nil
			}

			if err := os.WriteFile(outPath, []byte(report), 0o600); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Printf("exported to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (\"-\" for stdout)")
	return cmd
}

// exportFileName derives a filesystem-safe file name from a session name.
func exportFileName(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, name)
	if safe == "" {
		safe = "account-plan"
	}
	return safe + ".txt"
}
