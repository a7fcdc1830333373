package cmd

import (
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ivankomartin/deposit-console/internal/app"
	"github.com/ivankomartin/deposit-console/internal/listview"
	"github.com/ivankomartin/deposit-console/internal/tui"
	"github.com/ivankomartin/deposit-console/pkg/logger"
)

var errNoTerminal = errors.New("browse needs an interactive terminal; use \"console products list\" instead")

func newBrowseCmd(opts *rootOptions) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse products interactively",
		Long: `Open the interactive product browser. The flags set the initial list
state; typing in the name and company boxes filters as you type.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return errNoTerminal
			}

			// Logging stays off on the alternate screen unless --log-level is given.
			log := logger.Discard()
			if opts.logLevel != "" {
				log = opts.cliLogger(cmd)
			}

			return opts.withConsole(cmd, log, func(c *app.Console) error {
				ctrl := c.NewController(listview.NewMemoryLocation(f.values().Encode()))
				defer ctrl.Close()

				p := tea.NewProgram(tui.New(ctrl), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
				_, err := p.Run()
				if errors.Is(err, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
					return nil
				}
				return err
			})
		},
	}
	f.register(cmd.Flags())
	return cmd
}
