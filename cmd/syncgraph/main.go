package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ritzau/syncgraph/pkg/analysis"
	"github.com/ritzau/syncgraph/pkg/bazel"
	"github.com/ritzau/syncgraph/pkg/config"
	"github.com/ritzau/syncgraph/pkg/cycles"
	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/logging"
	"github.com/ritzau/syncgraph/pkg/output"
	"github.com/ritzau/syncgraph/pkg/pubsub"
	"github.com/ritzau/syncgraph/pkg/session"
	"github.com/ritzau/syncgraph/pkg/watcher"
	"github.com/ritzau/syncgraph/pkg/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "syncgraph",
		Short:         "Keep a Bazel target dependency graph in sync with the workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a TOML config file (default ./"+config.DefaultFile+" if present)")
	pf.StringP("workspace", "w", ".", "Path to the Bazel workspace root")
	pf.StringSlice("targets", []string{"//..."}, "Target patterns forming the universe; prefix with - to exclude")
	pf.StringP("verbosity", "v", "info", "Log level: trace, debug, info, warn or error")

	root.AddCommand(newSyncCmd(), newWatchCmd(), newGraphCmd(), newResetCmd(), newClassifyCmd())
	return root
}

// setup loads configuration from the command's flags and configures logging
func setup(cmd *cobra.Command) (*config.Config, io.Closer, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	level, err := logging.ParseLevel(cfg.Verbosity)
	if err != nil {
		return nil, nil, err
	}
	closer := logging.Setup(logging.Options{
		Level:      level,
		JSON:       cfg.Log.JSON,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	return cfg, closer, nil
}

func openSession(ctx context.Context, cfg *config.Config, pub pubsub.Publisher) (*session.Session, error) {
	executor := bazel.NewExecutor(cfg.Bazel.Binary)
	if name := bazel.GetWorkspaceName(ctx, executor, cfg.Workspace); name != "" {
		logging.InfoContext(ctx, "detected workspace", "name", name)
	}
	return session.Open(ctx, cfg, executor, pub)
}

func newSyncCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass and print the target diff",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			s, err := openSession(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			result, err := s.Sync(ctx, session.Options{Full: full})
			if err != nil {
				return err
			}
			output.PrintDiff(cmd.OutOrStdout(), result.Diff, result.Stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Rebuild the graph from scratch")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the workspace and sync on every change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()
			return runWatch(cmd.Context(), cfg, open)
		},
	}
	cmd.Flags().Bool("serve", false, "Serve the graph and sync events over HTTP")
	cmd.Flags().IntP("port", "p", 8080, "Port for the web server (only used with --serve)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the web UI in a browser (only used with --serve)")
	return cmd
}

func runWatch(ctx context.Context, cfg *config.Config, open bool) error {
	pub := pubsub.NewSyncPublisher()
	defer pub.Close()

	s, err := openSession(ctx, cfg, pub)
	if err != nil {
		return err
	}
	defer s.Close(context.WithoutCancel(ctx))

	fw, err := watcher.NewFileWatcher(cfg.Workspace)
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Start(ctx); err != nil {
		return err
	}
	s.Listener().Attach(ctx, fw.Events())

	debouncer := watcher.NewDebouncer(s.Listener().Notify(), cfg.Watch.Quiet, cfg.Watch.MaxWait)
	debouncer.Start(ctx)

	if cfg.Serve {
		srv := web.NewServer(s, pub)
		go func() {
			if err := srv.Start(ctx, cfg.Port); err != nil {
				logging.Error("web server stopped", "error", err)
			}
		}()
		if open {
			openBrowser(fmt.Sprintf("http://localhost:%d", cfg.Port))
		}
	}

	// Initial pass before waiting for changes
	if _, err := s.Sync(ctx, session.Options{}); err != nil {
		logging.WarnContext(ctx, "initial sync failed", "error", err)
	}

	logging.InfoContext(ctx, "watching for changes", "workspace", cfg.Workspace)
	s.Watch(ctx, debouncer.Output())
	logging.Info("shutting down")
	return nil
}

func newGraphCmd() *cobra.Command {
	var packages bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the persisted target graph and its dependency cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			s, err := openSession(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			s.WithGraph(func(g *graph.TargetGraph) {
				output.PrintGraphReport(cmd.OutOrStdout(), cfg.Workspace, g, cycles.FindTargetCycles(g))
				if packages {
					output.PrintPackageDependencies(cmd.OutOrStdout(), analysis.FindPackageDependencies(g))
				}
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&packages, "packages", false, "Also print package-level dependencies")
	return cmd
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the persisted graph; the next sync rediscovers the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			s, err := openSession(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))
			return s.ResetState(ctx)
		},
	}
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify PATH...",
		Short: "Print how the watcher classifies workspace paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", watcher.Classify(filepath.ToSlash(p)), p)
			}
			return nil
		},
	}
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("failed to open browser", "error", err)
	}
}
