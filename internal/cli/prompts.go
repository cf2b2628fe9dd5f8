package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/encapt"
	"github.com/hupe1980/encapt/agent"
	"github.com/hupe1980/encapt/model"
)

func newPromptsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "prompts [agent]",
		Short: "Render the system instructions of the agents",
		Long:  "Prompts builds the team for the current beans without contacting a model and prints each agent's instructions.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			beans, err := encapt.LoadBeans(cmd.Context(), g.cfg)
			if err != nil {
				return err
			}

			t, err := encapt.BuildTeam(g.cfg, beans, model.NewMockModel("prompts"))
			if err != nil {
				return err
			}

			agents := t.Agents()
			if len(args) == 1 {
				a, ok := t.Find(args[0])
				if !ok {
					return fmt.Errorf("unknown agent %q", args[0])
				}
				agents = []*agent.ModelAgent{a}
			}

			out := cmd.OutOrStdout()
			for i, a := range agents {
				instruction, err := a.Instruction(cmd.Context())
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "=== %s ===\n%s\n", a.Name(), instruction)
			}
			return nil
		},
	}
}
