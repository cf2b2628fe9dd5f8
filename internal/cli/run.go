package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/encapt"
)

func newRunCmd(g *globals) *cobra.Command {
	var (
		file    string
		example bool
	)

	cmd := &cobra.Command{
		Use:   "run [request]",
		Short: "Process a change request with the bean agents",
		Long: "Run loads the beans, starts one agent per bean plus the coordinator and " +
			"processes the change request given as arguments, via --file or --example.",
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := readRequest(args, file, example)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := encapt.New(ctx, g.cfg, func(o *encapt.Options) { o.Logger = g.logger })
			if err != nil {
				return err
			}
			defer e.Close()

			task, err := e.ProcessChangeRequest(ctx, request)
			if err != nil {
				return fmt.Errorf("change request %s: %w", task.ID, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Change request result:", encapt.Result(task))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the change request from a file ('-' for stdin)")
	cmd.Flags().BoolVar(&example, "example", false, "run the sample order history change request")
	return cmd
}

func readRequest(args []string, file string, example bool) (string, error) {
	sources := 0
	for _, set := range []bool{len(args) > 0, file != "", example} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return "", errors.New("provide exactly one of: request arguments, --file, --example")
	}

	switch {
	case example:
		return encapt.ExampleChangeRequest, nil
	case file == "-":
		data, err := readAll(os.Stdin)
		return strings.TrimSpace(data), err
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading change request: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return strings.Join(args, " "), nil
	}
}

func readAll(f *os.File) (string, error) {
	var sb bytes.Buffer
	if _, err := sb.ReadFrom(f); err != nil {
		return "", fmt.Errorf("reading change request: %w", err)
	}
	return sb.String(), nil
}
