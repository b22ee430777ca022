package cmd

import (
	"github.com/spf13/cobra"
)

var pageCmd = &cobra.Command{
	Use:   "page <pageKey> [projectDirectory]",
	Short: "Render a single page to stdout",
	Long: `The page command loads the whole project, renders the page stored under
<pageKey> (its path below src/pages without extension, e.g. blog/index) and
prints it instead of writing the site.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		project := "."
		if len(args) > 1 {
			project = args[1]
		}
		cfg, err := initializeConfig(cmd, project)
		if err != nil {
			return err
		}
		cfg.Manifest = ""

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		src, _ := cfg.Directories([]string{project})
		c, closeFn, err := newCompiler(cfg, src, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := c.Setup(cmd.Context(), cfg.Data); err != nil {
			return err
		}
		out, err := c.CompilePage(args[0], nil)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(pageCmd)
}
