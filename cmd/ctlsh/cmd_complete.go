package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/ctlsh/pkg/command"
	"github.com/newtron-network/ctlsh/pkg/desc"
	"github.com/newtron-network/ctlsh/pkg/grammar"
	"github.com/newtron-network/ctlsh/pkg/store"
)

var (
	completeMode string
	completeHelp bool
)

var completeCmd = &cobra.Command{
	Use:   "complete <partial line>",
	Short: "Print completion candidates for a partial line",
	Long: `Print the words that may replace the last word of a partial line, one
per line. A line ending in a space completes the next word.

Examples:
  ctlsh complete "sh"
  ctlsh complete --mode config "snmp-server "
  ctlsh complete --help-words --mode config "forwarding access-priority "`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if completeMode != grammar.LoginMode {
			a.session.Push(command.ModeFrame{Mode: completeMode})
		}

		ctx := context.Background()
		complete := a.engine.Complete
		if completeHelp {
			complete = a.engine.Help
		}
		candidates, err := complete(ctx, a.session, args[0])
		if err != nil {
			return err
		}
		for _, c := range candidates {
			fmt.Println(c.Name)
		}
		return nil
	},
}

var runningConfigCmd = &cobra.Command{
	Use:   "running-config [name [word]]",
	Short: "Print the running configuration",
	Long: `Print the running configuration rebuilt from the object store, or only
the part rendered by one entry.

Examples:
  ctlsh running-config
  ctlsh running-config snmp
  ctlsh running-config switch 00:00:00:00:00:00:00:01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		text, err := a.engine.RenderRunningConfig(context.Background(), args)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check every built-in command description",
	Long: `Load every built-in object type and command description, report
descriptor problems, and check that every documented example parses in
its command's mode. No controller is contacted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := desc.NewEngine(command.Options{
			Backend: store.NewMemoryBackend(),
			Out:     os.Stdout,
		})
		if err != nil {
			return err
		}

		errs := e.CheckExamples()
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, err)
		}
		if len(errs) > 0 {
			return fmt.Errorf("%d documented examples do not parse", len(errs))
		}
		fmt.Printf("%d commands, %d running-config entries: ok\n",
			len(e.Commands()), len(e.RunConfig().Entries()))
		return nil
	},
}

func init() {
	completeCmd.Flags().StringVar(&completeMode, "mode", grammar.LoginMode, "Mode to complete in (login, config, config-switch, ...)")
	completeCmd.Flags().BoolVar(&completeHelp, "help-words", false, "Include value placeholders and <cr>, as '?' does")
}
