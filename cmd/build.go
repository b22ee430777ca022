package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/christophergorexyz/cosmia-core/internal/config"
	"github.com/christophergorexyz/cosmia-core/internal/manifest"
	"github.com/christophergorexyz/cosmia-core/internal/output"
	"github.com/christophergorexyz/cosmia-core/internal/site"
	"github.com/christophergorexyz/cosmia-core/internal/source"
)

func runBuild(ctx context.Context, cfg config.Config, src, out string) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logger.Info("Starting build", "source", src, "output", out)
	start := time.Now()

	c, closeFn, err := newCompiler(cfg, src, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := c.Run(ctx, output.NewDir(out), cfg.Data); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	logger.Info("Build completed", "pages", len(c.Pages()), "duration", time.Since(start))
	return nil
}

// newCompiler builds a site compiler for src. The returned func releases
// the manifest database, if one was configured.
func newCompiler(cfg config.Config, src string, logger *slog.Logger) (*site.Compiler, func(), error) {
	opts := []site.Option{
		site.WithLogger(logger),
		site.WithSilent(cfg.Silent),
	}
	closeFn := func() {}
	if cfg.Manifest != "" {
		r, err := manifest.Open(cfg.Manifest)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, site.WithManifest(r))
		closeFn = func() {
			if err := r.Close(); err != nil {
				logger.Warn("Failed to close manifest", "path", cfg.Manifest, "error", err)
			}
		}
	}
	return site.New(source.Dir(src), opts...), closeFn, nil
}
