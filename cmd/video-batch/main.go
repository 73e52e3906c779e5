package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/video-batch"
	"github.com/alanbriolat/video-batch/async"
	"github.com/alanbriolat/video-batch/generic"
	"github.com/alanbriolat/video-batch/input"
)

func main() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level.SetLevel(zap.InfoLevel)
	logger, err := config.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Sugar().Warnf("failed to load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = video_batch.WithLogger(ctx, logger)

	defaults := video_batch.DefaultConfig
	app := &cli.App{
		Name:  "video-batch",
		Usage: "resolve and download a spreadsheet of share links",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "read share links from `FILE` (.xlsx, .csv or .txt)",
				EnvVars:  []string{"VIDEO_BATCH_INPUT"},
				Required: true,
			},
			&cli.StringFlag{
				Name:  "column",
				Usage: "take links from the column with header `NAME`, instead of guessing",
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "load settings from YAML `FILE`",
				EnvVars: []string{"VIDEO_BATCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "resolution service base `URL`, to which the encoded link is appended",
				EnvVars: []string{"VIDEO_BATCH_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "target",
				Value:   defaults.TargetDir,
				Usage:   "save downloaded videos to `DIR`",
				EnvVars: []string{"VIDEO_BATCH_TARGET"},
			},
			&cli.StringFlag{
				Name:  "ext",
				Value: defaults.Ext,
				Usage: "file extension for downloaded videos",
			},
			&cli.Int64Flag{
				Name:    "min-size",
				Value:   defaults.MinValidSize,
				Usage:   "files of `BYTES` or smaller are treated as invalid",
				EnvVars: []string{"VIDEO_BATCH_MIN_SIZE"},
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "only process the first `N` links",
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: defaults.Workers,
				Usage: "process `N` links at once",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				config.Level.SetLevel(zap.DebugLevel)
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			cfg, err := buildConfig(c)
			if err != nil {
				return err
			}
			return run(ctx, cfg, c.String("input"), c.String("column"))
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
	case <-ctx.Done():
		stop()
		err = <-result
	}
	if isFatal(err) {
		logger.Fatal(err.Error())
	}
}

// isFatal reports whether err from the app should give a non-zero exit. Being interrupted isn't fatal, whichever way
// the cancellation reaches us.
func isFatal(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// buildConfig layers the config file (if any) over the defaults, then any flags or environment variables that were
// set over that.
func buildConfig(c *cli.Context) (video_batch.Config, error) {
	cfg := video_batch.DefaultConfig
	if path := c.String("config"); path != "" {
		if err := video_batch.LoadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if c.IsSet("endpoint") {
		cfg.ResolverEndpoint = c.String("endpoint")
	}
	if c.IsSet("target") {
		cfg.TargetDir = c.String("target")
	}
	if c.IsSet("ext") {
		cfg.Ext = c.String("ext")
	}
	if c.IsSet("min-size") {
		cfg.MinValidSize = c.Int64("min-size")
	}
	if c.IsSet("limit") {
		cfg.Limit = c.Int("limit")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg video_batch.Config, inputPath string, column string) error {
	logger := video_batch.Logger(ctx).Sugar()

	links, err := input.ReadLinks(inputPath, column)
	if err != nil {
		return fmt.Errorf("failed to read links: %w", err)
	}
	total := len(links)
	if cfg.Limit > 0 && total > cfg.Limit {
		total = cfg.Limit
	}
	logger.Infof("Starting, %d links to process", total)

	client := &http.Client{}
	bar := progressbar.Default(int64(total), "downloading")
	batch := video_batch.NewBatch(
		cfg,
		video_batch.NewResolver(cfg, client),
		video_batch.NewFetcher(cfg, client, video_batch.LocalStorage{}),
		video_batch.LocalStorage{},
	).WithObserver(func(o video_batch.Outcome) {
		generic.Unwrap_(bar.Add(1))
	})

	report, err := batch.Run(ctx, links)
	if report == nil {
		return err
	}
	_ = bar.Finish()
	if err := report.WriteSummary(os.Stdout); err != nil {
		return err
	}
	return err
}
