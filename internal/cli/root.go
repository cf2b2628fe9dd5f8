// Package cli implements the encapt command line.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/encapt/config"
	"github.com/hupe1980/encapt/logging"
)

// globals holds the persistent flags and what PersistentPreRunE derives from them.
type globals struct {
	cfgFile     string
	logLevel    string
	projectRoot string

	cfg    config.Config
	logger logging.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "encapt",
		Short: "Coordinate one agent per bean to implement change requests",
		Long: "encapt assigns one LLM agent to every bean of a Kotlin/Quarkus project plus a coordinating Manager agent, " +
			"and lets them implement change requests together by editing files, running tests and messaging each other.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd.ErrOrStderr())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&g.cfgFile, "config", "encapt.yaml", "config file")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.projectRoot, "project", "", "project root (overrides project.root)")

	cmd.AddCommand(newRunCmd(g))
	cmd.AddCommand(newBeansCmd(g))
	cmd.AddCommand(newPromptsCmd(g))
	cmd.AddCommand(newHistoryCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (g *globals) load(logOut io.Writer) error {
	cfg, err := config.Load(g.cfgFile)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.projectRoot != "" {
		cfg.Project.Root = g.projectRoot
	}
	if err := config.Check(&cfg); err != nil {
		return err
	}

	g.cfg = cfg
	g.logger = logging.NewLogger(&logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: logOut,
	})
	return nil
}

// Execute runs the root command.
func Execute() error {
	cmd := newRootCmd()
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	err := cmd.Execute()
	if err != nil {
		cmd.PrintErrln("Error:", err)
	}
	return err
}
