package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/christophergorexyz/cosmia-core/internal/config"
	"github.com/christophergorexyz/cosmia-core/internal/namespace"
)

const configName = "cosmia"

var (
	cfgFile    string
	silent     bool
	manifestDB string
	overrides  []string
)

var rootCmd = &cobra.Command{
	Use:   "cosmia [projectDirectory] [outputDirectory]",
	Short: "cosmia - compile a source tree of templates into a static site",
	Long: `cosmia reads partials, data, helpers, layouts, pages and collections
from <projectDirectory>/src and writes one rendered .html file per page to
<projectDirectory>/dist, or to <outputDirectory> when given.`,
	Args:          cobra.MaximumNArgs(2),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		project := "."
		if len(args) > 0 {
			project = args[0]
		}
		cfg, err := initializeConfig(cmd, project)
		if err != nil {
			return err
		}
		src, out := cfg.Directories(args)
		return runBuild(cmd.Context(), cfg, src, out)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Sprint("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <projectDirectory>/cosmia.yaml)")
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false, "only report errors")
	rootCmd.PersistentFlags().StringVar(&manifestDB, "manifest", "", "record written pages in this SQLite database")
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil, "override site data, key=value (repeatable)")
}

func initializeConfig(cmd *cobra.Command, project string) (config.Config, error) {
	var cfg config.Config
	v := viper.New()

	v.SetDefault("source", "")
	v.SetDefault("output", "")
	v.SetDefault("silent", false)
	v.SetDefault("manifest", "")
	v.SetDefault("logLevel", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(project)
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("COSMIA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindPFlag("silent", cmd.Root().PersistentFlags().Lookup("silent")); err != nil {
		return cfg, err
	}
	if err := v.BindPFlag("manifest", cmd.Root().PersistentFlags().Lookup("manifest")); err != nil {
		return cfg, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && cfgFile == "":
		case cfgFile != "" && errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("config file %s not found: %w", cfgFile, err)
		default:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		data, ok, err := config.FileData(used)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config data: %w", err)
		}
		if ok {
			cfg.Data = data
		}
	}
	if cfg.Source != "" && !filepath.IsAbs(cfg.Source) {
		cfg.Source = filepath.Join(project, cfg.Source)
	}
	if cfg.Output != "" && !filepath.IsAbs(cfg.Output) {
		cfg.Output = filepath.Join(project, cfg.Output)
	}

	set, err := config.ParseOverrides(overrides)
	if err != nil {
		return cfg, err
	}
	cfg.Data = namespace.Overlay(cfg.Data, set)
	return cfg, nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
