package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/christophergorexyz/cosmia-core/internal/namespace"
)

// Config is decoded by viper from cosmia.yaml, COSMIA_ environment
// variables and command line flags.
type Config struct {
	Source   string         `mapstructure:"source"`
	Output   string         `mapstructure:"output"`
	Silent   bool           `mapstructure:"silent"`
	Manifest string         `mapstructure:"manifest"`
	LogLevel string         `mapstructure:"logLevel"`
	Data     map[string]any `mapstructure:"data"`
}

// FileData reads the data section of a YAML or JSON config file with the
// case of its keys intact. ok is false for other formats and for files
// without a data mapping.
func FileData(name string) (data map[string]any, ok bool, err error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, false, nil
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, false, err
	}
	doc, err := namespace.Decode(name, raw)
	if err != nil {
		return nil, false, err
	}
	top, _ := doc.(map[string]any)
	for k, v := range top {
		if strings.EqualFold(k, "data") {
			data, ok = v.(map[string]any)
			return data, ok, nil
		}
	}
	return nil, false, nil
}

// Directories resolves the source and output directories from the
// positional arguments: none means ./src and ./dist, a project directory
// means <project>/src and <project>/dist, and a second argument names the
// output directory. Configured paths replace the derived ones; an explicit
// output argument wins over everything.
func (c Config) Directories(args []string) (src, out string) {
	project := "."
	if len(args) > 0 {
		project = args[0]
	}

	src = filepath.Join(project, "src")
	if c.Source != "" {
		src = c.Source
	}

	out = filepath.Join(project, "dist")
	switch {
	case len(args) > 1:
		out = args[1]
	case c.Output != "":
		out = c.Output
	}
	return src, out
}

// Level maps LogLevel onto a slog level. Silent raises it to errors only.
func (c Config) Level() (slog.Level, error) {
	if c.Silent {
		return slog.LevelError, nil
	}
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// ParseOverrides turns key=value pairs into a data override map. Dotted keys
// nest: site.title=x becomes {"site": {"title": "x"}}.
func ParseOverrides(pairs []string) (map[string]any, error) {
	out := map[string]any{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q, expected key=value", pair)
		}
		segments := strings.Split(key, ".")
		node := out
		for _, seg := range segments[:len(segments)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[seg] = child
			}
			node = child
		}
		node[segments[len(segments)-1]] = value
	}
	return out, nil
}
