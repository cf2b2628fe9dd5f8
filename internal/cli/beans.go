package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/encapt"
)

func newBeansCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "beans",
		Short: "List the beans of the project and their doc comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			beans, err := encapt.LoadBeans(cmd.Context(), g.cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(beans) == 0 {
				fmt.Fprintf(out, "No beans found in %s\n", g.cfg.Project.BeansPath())
				return nil
			}

			for _, b := range beans {
				doc := b.Doc
				if doc == "" {
					doc = "(no doc comment)"
				}
				fmt.Fprintf(out, "%s\t%s\n  %s\n", b.Name, b.Path, doc)
			}
			return nil
		},
	}
}
