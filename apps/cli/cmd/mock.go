package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
	"github.com/abdul-hamid-achik/hitwire/packages/logger"
	"github.com/abdul-hamid-achik/hitwire/packages/metrics"
	"github.com/abdul-hamid-achik/hitwire/packages/mock"
	"github.com/abdul-hamid-achik/hitwire/packages/server"
	"github.com/abdul-hamid-achik/hitwire/packages/session"
)

var (
	mockPortFlag          int
	mockDelayFlag         string
	mockVerboseFlag       bool
	mockWatchFlag         bool
	mockFastFlag          bool
	mockSessionsFlag      string
	mockRequireSignInFlag bool
	mockNoMetricsFlag     bool
)

var mockCmd = &cobra.Command{
	Use:   "mock <routes.yaml>",
	Short: "Start a mock server from a YAML routes file",
	Long: `Start an HTTP mock server that answers with the routes declared in a
YAML file.

The mock server:
- Matches routes by method and path, with {{param}} path segments
- Renders templated headers and bodies from the request and session
- Validates JSON request bodies against a route schema
- Signs visitors in, stores session values and sets cookies
- Can add artificial delays to simulate network latency
- Exposes Prometheus metrics on /metrics

Examples:
  hitwire mock routes.yaml
  hitwire mock routes.yaml --port 3000 --delay 100ms
  hitwire mock routes.yaml --watch --verbose
  hitwire mock routes.yaml --fast --sessions sqlite:sessions.db`,
	Args: cobra.ExactArgs(1),
	RunE: mockCommand,
}

func init() {
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", config.DefaultPort, "Port to run the mock server on")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	mockCmd.Flags().BoolVarP(&mockVerboseFlag, "verbose", "v", false, "Log every matched request")
	mockCmd.Flags().BoolVarP(&mockWatchFlag, "watch", "w", false, "Reload the routes file when it changes")
	mockCmd.Flags().BoolVar(&mockFastFlag, "fast", false, "Serve with fasthttp instead of net/http")
	mockCmd.Flags().StringVar(&mockSessionsFlag, "sessions", "", "Session store: memory, sqlite:<path> or pebble:<dir>")
	mockCmd.Flags().BoolVar(&mockRequireSignInFlag, "require-signin", false, "Redirect visitors without a session to the sign-in path")
	mockCmd.Flags().BoolVar(&mockNoMetricsFlag, "no-metrics", false, "Do not serve /metrics")
}

// mockSettings merges the config file with the flags that were set.
func mockSettings(cmd *cobra.Command, cfg *config.Config) (*config.Config, error) {
	override := &config.Config{}
	flags := cmd.Flags()

	if flags.Changed("port") {
		override.Server.Port = mockPortFlag
	}
	if flags.Changed("fast") {
		override.Server.Fast = config.BoolPtr(mockFastFlag)
	}
	if flags.Changed("sessions") {
		override.Server.Sessions = mockSessionsFlag
	}
	if flags.Changed("delay") && mockDelayFlag != "0" {
		delay, err := time.ParseDuration(mockDelayFlag)
		if err != nil {
			return nil, usageErrorf("invalid delay value %q: %v", mockDelayFlag, err)
		}
		override.Server.Delay = int(delay / time.Millisecond)
	}
	if mockVerboseFlag {
		override.Verbose = config.BoolPtr(true)
	}

	merged := cfg.Merge(override)

	// routes see the full path and "/" is the home page
	merged.Server.APIPrefix = "/"
	merged.Server.HomePagePath = "/"
	s := &merged.Server
	if !mockRequireSignInFlag && !s.GlobalSession && !s.AutoCreateSession && !s.Stateless {
		s.AutoCreateSession = true
	}
	return merged, nil
}

func mockCommand(cmd *cobra.Command, args []string) error {
	cfg, err := mockSettings(cmd, appConfig)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	engine := mock.NewEngine(
		mock.WithDelay(cfg.MockDelay()),
		mock.WithVerbose(cfg.GetVerbose()),
	)
	if err := engine.LoadFile(args[0]); err != nil {
		return withExitCode(ExitParseError, fmt.Errorf("failed to load routes: %w", err))
	}

	opts, store, err := cfg.ToServerOptions()
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	m := metrics.New()
	if mem, ok := store.(*session.MemoryStore); ok {
		_ = m.GaugeFunc("sessions", "Live sessions in the memory store.", func() float64 {
			return float64(mem.Len())
		})
	}
	opts = append(opts,
		server.WithEngine(engine),
		server.WithTemplateEngine(engine),
		server.WithObserver(m),
	)

	handler, err := server.NewHandler(cfg.ToServerConfig(), opts...)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if expirer, ok := store.(session.Expirer); ok && cfg.Server.SweepSchedule != "" {
		sweeper, err := session.NewSweeper(expirer, cfg.Server.SweepSchedule)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		defer sweeper.Start(ctx)()
	}

	if mockWatchFlag {
		go func() {
			err := engine.Watch(ctx, func(err error) {
				if err != nil {
					color.New(color.FgRed).Fprintf(out, "Reload failed: %v\n", err)
					return
				}
				color.New(color.FgGreen).Fprintf(out, "Reloaded %d routes\n", len(engine.Routes()))
			})
			if err != nil {
				logger.Error("mock_watch_failed", "error", err)
			}
		}()
	}

	srvOpts := []mock.ServerOption{
		mock.WithPort(cfg.Server.Port),
		mock.WithFastHTTP(cfg.Server.GetFast()),
	}
	if !mockNoMetricsFlag {
		srvOpts = append(srvOpts, mock.WithHandle("/metrics", m.Handler()))
	}
	srv := mock.NewServer(handler, srvOpts...)

	printRoutes(out, engine.Routes(), args[0])
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(out, "\nListening on %s\n", bold("http://localhost"+srv.Addr()))

	if err := srv.StartWithContext(ctx); err != nil {
		return withExitCode(ExitNetworkError, err)
	}
	fmt.Fprintln(out, "\nShutting down mock server...")
	return nil
}

func printRoutes(w io.Writer, routes []*mock.Route, file string) {
	cyan := color.New(color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(w, "Loaded %d routes from %s\n", len(routes), file)
	for _, r := range routes {
		fmt.Fprintf(w, "  %-6s %s %s\n", cyan(r.Method), r.PathPattern, dim(r.Name))
	}
}
