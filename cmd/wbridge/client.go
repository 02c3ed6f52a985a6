package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wbridge/wbridge/internal/control"
	"github.com/wbridge/wbridge/internal/protocol"
	"github.com/wbridge/wbridge/internal/selection"
)

func client() *control.Client {
	return control.NewClient(socketPath)
}

// emit prints one client result: indented JSON data on success ("OK"
// when the data is empty), the error string to stderr plus the mapped
// exit code on failure.
func emit(ok bool, resp protocol.Response) error {
	if !ok {
		fmt.Fprintln(os.Stderr, resp.Error)
		os.Exit(control.ExitCode(ok, resp))
	}
	if len(resp.Data) == 0 {
		fmt.Println("OK")
		return nil
	}
	out, err := json.MarshalIndent(resp.Data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// usageErr reports a client-side argument error on stderr and exits 2,
// the same code the server maps INVALID_ARG to.
func usageErr(msg string) error {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
	return nil
}

// whichArg maps an optional positional channel argument, defaulting to
// the clipboard.
func whichArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return selection.Clipboard
}

func uiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ui",
		Short:   "Control the agent's user interface",
		GroupID: "control",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Ask the running agent to present its window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, resp := client().Do(protocol.Request{Op: protocol.OpUIShow})
			return emit(ok, resp)
		},
	})
	return cmd
}

func selectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "selection",
		Aliases: []string{"sel"},
		Short:   "Read or write the current selections",
		GroupID: "control",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [clipboard|primary]",
		Short: "Read the current selection text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, resp := client().Do(protocol.Request{
				Op:    protocol.OpSelectionGet,
				Which: whichArg(args),
			})
			return emit(ok, resp)
		},
	})

	var text string
	set := &cobra.Command{
		Use:   "set [clipboard|primary]",
		Short: "Replace the current selection text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" {
				return usageErr("--text is required for selection set")
			}
			ok, resp := client().Do(protocol.Request{
				Op:    protocol.OpSelectionSet,
				Which: whichArg(args),
				Text:  &text,
			})
			return emit(ok, resp)
		},
	}
	set.Flags().StringVar(&text, "text", "", "text to set")
	cmd.AddCommand(set)
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Browse and replay selection history",
		GroupID: "control",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list [clipboard|primary]",
		Short: "List recent entries, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, resp := client().Do(protocol.Request{
				Op:    protocol.OpHistoryList,
				Which: whichArg(args),
				Limit: limit,
			})
			return emit(ok, resp)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 10, "maximum entries to return")
	cmd.AddCommand(list)

	var index int
	apply := &cobra.Command{
		Use:   "apply [clipboard|primary]",
		Short: "Apply a history entry back to its selection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, resp := client().Do(protocol.Request{
				Op:    protocol.OpHistoryApply,
				Which: whichArg(args),
				Index: index,
			})
			return emit(ok, resp)
		},
	}
	apply.Flags().IntVarP(&index, "index", "i", 0, "entry position, 0 is newest")
	apply.MarkFlagRequired("index")
	cmd.AddCommand(apply)

	cmd.AddCommand(&cobra.Command{
		Use:   "swap [clipboard|primary]",
		Short: "Swap the two newest entries and apply the winner",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, resp := client().Do(protocol.Request{
				Op:    protocol.OpHistorySwap,
				Which: whichArg(args),
			})
			return emit(ok, resp)
		},
	})

	return cmd
}

func triggerCmd() *cobra.Command {
	var (
		name          string
		text          string
		fromClipboard bool
		fromPrimary   bool
	)

	cmd := &cobra.Command{
		Use:     "trigger [CMD]",
		Short:   "Run a configured action by trigger alias or name",
		GroupID: "control",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildTriggerRequest(
				args, name, text,
				cmd.Flags().Changed("text"), fromClipboard, fromPrimary,
			)
			if err != nil {
				return usageErr(err.Error())
			}
			ok, resp := client().Do(req)
			return emit(ok, resp)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "run this action directly, skipping alias lookup")
	cmd.Flags().StringVar(&text, "text", "", "use this literal text as the action input")
	cmd.Flags().BoolVar(&fromClipboard, "from-clipboard", false, "take the input from the clipboard")
	cmd.Flags().BoolVar(&fromPrimary, "from-primary", false, "take the input from the primary selection")
	cmd.MarkFlagsMutuallyExclusive("text", "from-clipboard", "from-primary")
	return cmd
}

// buildTriggerRequest maps the trigger command surface onto one wire
// request: --name runs the action directly, a positional CMD resolves
// through the trigger aliases.
func buildTriggerRequest(args []string, name, text string, useText, fromClipboard, fromPrimary bool) (protocol.Request, error) {
	req := protocol.Request{}
	switch {
	case name != "":
		req.Op = protocol.OpActionRun
		req.Name = name
	case len(args) == 1:
		req.Op = protocol.OpTrigger
		req.Cmd = args[0]
	default:
		return protocol.Request{}, errors.New("trigger requires a CMD argument or --name")
	}

	switch {
	case useText:
		req.Source = &protocol.Source{From: protocol.SourceText}
		req.Text = &text
	case fromPrimary:
		req.Source = &protocol.Source{From: protocol.SourcePrimary}
	case fromClipboard:
		req.Source = &protocol.Source{From: protocol.SourceClipboard}
	}
	return req, nil
}
