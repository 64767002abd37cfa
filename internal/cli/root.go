/*
Package cli implements the reelfeed command line.

Every command loads the layered configuration, opens the viewer's blob store
and catalog, and drives a session.Session. Output goes to the command's
stdout so commands can be tested by capturing it.
*/
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/khanglvm/reelfeed/internal/catalog"
	"github.com/khanglvm/reelfeed/internal/config"
	"github.com/khanglvm/reelfeed/internal/learning"
	"github.com/khanglvm/reelfeed/internal/logging"
	"github.com/khanglvm/reelfeed/internal/queue"
	"github.com/khanglvm/reelfeed/internal/session"
	"github.com/khanglvm/reelfeed/internal/storage"
	"github.com/khanglvm/reelfeed/internal/version"
)

// annotationAllowMissingConfig lets a command run on defaults when the
// --config file does not exist yet.
const annotationAllowMissingConfig = "allowMissingConfig"

// Options holds the persistent flags and the configuration they resolve to.
type Options struct {
	ConfigPath string
	LogLevel   string
	Metrics    bool

	cfg *config.Config
}

// NewRootCmd creates the reelfeed root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "reelfeed",
		Short: "Personalized short-video feed ranking",
		Long: `reelfeed ranks a catalog of short videos for one viewer.

It learns from watch behavior (completion, likes, comments, shares), keeps the
viewer's history in a local store, and serves an endless feed that prefetches
the next batch before the viewer reaches the end.

Configuration is read from ~/.reelfeed/config.yaml (or --config) and can be
overridden with REELFEED_* environment variables.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.ErrOrStderr(), cmd.Annotations[annotationAllowMissingConfig] == "true")
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Metrics {
				return nil
			}
			return writeMetrics(cmd.OutOrStdout(), prometheus.DefaultGatherer)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Config file (default: ~/.reelfeed/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Override log level (trace, debug, info, warn, error, disabled)")
	cmd.PersistentFlags().BoolVar(&opts.Metrics, "metrics", false, "Print collected metrics after the command")

	cmd.AddCommand(NewFeedCmd(opts))
	cmd.AddCommand(NewRecommendCmd(opts))
	cmd.AddCommand(NewTrackCmd(opts))
	cmd.AddCommand(NewSearchCmd(opts))
	cmd.AddCommand(NewLearningCmd(opts))
	cmd.AddCommand(NewConfigCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// load resolves the configuration and initializes logging.
func (o *Options) load(logOutput io.Writer, allowMissing bool) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		var notFound *config.ConfigNotFoundError
		if !allowMissing || !errors.As(err, &notFound) {
			return err
		}
		cfg = config.NewConfig()
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOutput,
	})

	o.cfg = cfg
	return nil
}

// config returns the resolved configuration, loading defaults if a command
// runs without the root pre-run hook.
func (o *Options) config() *config.Config {
	if o.cfg == nil {
		o.cfg = config.NewConfig()
	}
	return o.cfg
}

// openBlobs opens the configured persistence backend.
func (o *Options) openBlobs() (storage.BlobStore, error) {
	cfg := o.config().Storage
	blobs, err := storage.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return blobs, nil
}

// openSource returns the configured catalog behind a circuit breaker.
func (o *Options) openSource() catalog.Source {
	cfg := o.config().Catalog
	return catalog.NewBreakerSource(catalog.Open(cfg.Path), catalog.BreakerConfig{
		Name:             "catalog",
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	})
}

// sessionConfig maps the file configuration to a session.Config.
func (o *Options) sessionConfig() session.Config {
	cfg := o.config()
	return session.Config{
		Queue: queue.Config{
			BatchSize:         cfg.Queue.BatchSize,
			PrefetchThreshold: cfg.Queue.PrefetchThreshold,
			Window:            cfg.Queue.Window,
		},
		MaxInteractions: cfg.Learning.MaxInteractions,
		Journal: learning.JournalConfig{
			Path:       cfg.Learning.Journal.Path,
			MaxSizeMB:  cfg.Learning.Journal.MaxSizeMB,
			MaxBackups: cfg.Learning.Journal.MaxBackups,
			Compress:   cfg.Learning.Journal.Compress,
		},
	}
}

// openSession opens storage and catalog and starts a session. The returned
// func closes both.
func (o *Options) openSession(ctx context.Context) (*session.Session, func(), error) {
	blobs, err := o.openBlobs()
	if err != nil {
		return nil, nil, err
	}

	sess, err := session.New(ctx, o.openSource(), blobs, o.sessionConfig())
	if err != nil {
		blobs.Close()
		return nil, nil, err
	}

	closeAll := func() {
		if err := sess.Close(); err != nil {
			log := logging.Component("cli")
			log.Warn().Err(err).Msg("failed to close session")
		}
		blobs.Close()
	}
	return sess, closeAll, nil
}

// writeMetrics prints the reelfeed collectors in Prometheus text format.
func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	fmt.Fprintln(w)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "reelfeed_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
