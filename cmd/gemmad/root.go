package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gemmad/internal/artifact"
	"gemmad/internal/chatlog"
	"gemmad/internal/common/fsutil"
	"gemmad/internal/config"
	"gemmad/internal/download"
	"gemmad/internal/engine"
	"gemmad/internal/httpapi"
	"gemmad/internal/session"
	"gemmad/pkg/types"
)

// envOr returns the environment value for key, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// buildRootCmd constructs the gemmad command tree. The bare command serves;
// `fetch` runs the artifact download standalone and exits.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gemmad",
		Short:         "Local chat daemon with on-device model acquisition and lifecycle",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	pf := root.PersistentFlags()
	pf.String("config", envOr("GEMMAD_CONFIG", ""), "Optional config file (.yaml/.yml/.json/.toml)")
	pf.String("addr", envOr("GEMMAD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	pf.String("data-dir", envOr("GEMMAD_DATA_DIR", "~/.gemmad"), "Directory holding the model artifact and chat log")
	pf.String("model-file", envOr("GEMMAD_MODEL_FILE", "gemma-2b-it.gguf"), "Model artifact file name")
	pf.String("model-url", envOr("GEMMAD_MODEL_URL", ""), "HTTPS source of the model artifact")
	pf.String("auth-token", envOr("GEMMAD_AUTH_TOKEN", ""), "Bearer token for the model source (empty for none)")
	pf.Int("max-tokens", 256, "Generation token budget")
	pf.Int("max-images", 1, "Maximum images per prompt")
	pf.Int("context-size", 2048, "Engine context window")
	pf.Int("threads", 4, "Engine threads")
	pf.Float64("temperature", 0.8, "Sampling temperature")
	pf.Int("top-k", 40, "Sampling top-k")
	pf.Float64("top-p", 0.95, "Sampling top-p")
	pf.String("log-level", envOr("GEMMAD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	pf.Bool("cors", false, "Enable CORS")
	pf.String("cors-origins", "*", "Comma-separated allowed CORS origins")
	pf.String("cors-methods", "GET,POST,OPTIONS", "Comma-separated allowed CORS methods")
	pf.String("cors-headers", "Content-Type,Authorization", "Comma-separated allowed CORS headers")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the artifact lifecycle (default)",
		RunE:  runServe,
	}
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the model artifact and exit",
		RunE:  runFetch,
	}
	root.AddCommand(serveCmd, fetchCmd)
	return root
}

// settings resolves the effective configuration: flag defaults (with env
// backing), overlaid by a config file when given, overlaid by flags the user
// set explicitly.
func settings(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()
	cfg := config.Config{}
	cfg.Addr, _ = f.GetString("addr")
	cfg.DataDir, _ = f.GetString("data-dir")
	cfg.ModelFile, _ = f.GetString("model-file")
	cfg.ModelURL, _ = f.GetString("model-url")
	cfg.AuthToken, _ = f.GetString("auth-token")
	cfg.MaxTokens, _ = f.GetInt("max-tokens")
	cfg.MaxImages, _ = f.GetInt("max-images")
	cfg.ContextSize, _ = f.GetInt("context-size")
	cfg.Threads, _ = f.GetInt("threads")
	cfg.Temperature, _ = f.GetFloat64("temperature")
	cfg.TopK, _ = f.GetInt("top-k")
	cfg.TopP, _ = f.GetFloat64("top-p")
	cfg.LogLevel, _ = f.GetString("log-level")

	path, _ := f.GetString("config")
	if path == "" {
		return cfg, nil
	}
	fileCfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	// File values win over defaults but lose to explicitly set flags.
	if !f.Changed("addr") && fileCfg.Addr != "" {
		cfg.Addr = fileCfg.Addr
	}
	if !f.Changed("data-dir") && fileCfg.DataDir != "" {
		cfg.DataDir = fileCfg.DataDir
	}
	if !f.Changed("model-file") && fileCfg.ModelFile != "" {
		cfg.ModelFile = fileCfg.ModelFile
	}
	if !f.Changed("model-url") && fileCfg.ModelURL != "" {
		cfg.ModelURL = fileCfg.ModelURL
	}
	if !f.Changed("auth-token") && fileCfg.AuthToken != "" {
		cfg.AuthToken = fileCfg.AuthToken
	}
	if !f.Changed("max-tokens") && fileCfg.MaxTokens != 0 {
		cfg.MaxTokens = fileCfg.MaxTokens
	}
	if !f.Changed("max-images") && fileCfg.MaxImages != 0 {
		cfg.MaxImages = fileCfg.MaxImages
	}
	if !f.Changed("context-size") && fileCfg.ContextSize != 0 {
		cfg.ContextSize = fileCfg.ContextSize
	}
	if !f.Changed("threads") && fileCfg.Threads != 0 {
		cfg.Threads = fileCfg.Threads
	}
	if !f.Changed("temperature") && fileCfg.Temperature != 0 {
		cfg.Temperature = fileCfg.Temperature
	}
	if !f.Changed("top-k") && fileCfg.TopK != 0 {
		cfg.TopK = fileCfg.TopK
	}
	if !f.Changed("top-p") && fileCfg.TopP != 0 {
		cfg.TopP = fileCfg.TopP
	}
	if !f.Changed("log-level") && fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// logPublisher forwards orchestrator events to the structured logger.
type logPublisher struct{ l zerolog.Logger }

func (p logPublisher) Publish(e session.Event) {
	ev := p.l.Info().Str("event", e.Name).Str("op_id", e.OpID)
	for k, v := range e.Fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg("session event")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := settings(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	dataDir, err := fsutil.ExpandHome(cfg.DataDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dataDir, err)
	}

	loc := artifact.Locate(dataDir, cfg.ModelFile)
	store, err := chatlog.Open(dataDir)
	if err != nil {
		return err
	}
	bridge := engine.New(engine.NewLlamaRuntime(),
		engine.LoadOptions{
			MaxTokens:   cfg.MaxTokens,
			MaxImages:   cfg.MaxImages,
			ContextSize: cfg.ContextSize,
			Threads:     cfg.Threads,
		},
		engine.GenOptions{
			MaxTokens:   cfg.MaxTokens,
			Temperature: float32(cfg.Temperature),
			TopK:        cfg.TopK,
			TopP:        float32(cfg.TopP),
		})
	orch := session.New(session.Config{
		Location:  loc,
		SourceURL: cfg.ModelURL,
		Fetcher:   download.New(cfg.AuthToken),
		Engine:    bridge,
		Log:       store,
		Publisher: logPublisher{l: logger},
	})

	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	httpapi.SetLogger(logger)
	httpapi.SetBaseContext(baseCtx)
	if corsOn, _ := cmd.Flags().GetBool("cors"); corsOn {
		origins, _ := cmd.Flags().GetString("cors-origins")
		methods, _ := cmd.Flags().GetString("cors-methods")
		headers, _ := cmd.Flags().GetString("cors-headers")
		httpapi.SetCORSOptions(true, splitCSV(origins), splitCSV(methods), splitCSV(headers))
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(orch)}

	go func() {
		if err := orch.Run(baseCtx); err != nil {
			logger.Error().Err(err).Msg("lifecycle sequence failed; POST /retry to restart")
		}
	}()
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("artifact", loc.Path).Msg("gemmad listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	orch.Close()
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := settings(cmd)
	if err != nil {
		return err
	}
	if cfg.ModelURL == "" {
		return fmt.Errorf("fetch requires --model-url (or GEMMAD_MODEL_URL)")
	}
	logger := newLogger(cfg.LogLevel)

	dataDir, err := fsutil.ExpandHome(cfg.DataDir)
	if err != nil {
		return err
	}
	loc := artifact.Locate(dataDir, cfg.ModelFile)
	if artifact.NonEmpty(loc) {
		logger.Info().Str("path", loc.Path).Int64("bytes", artifact.Size(loc)).Msg("artifact already present")
		return nil
	}
	if err := artifact.CleanStale(loc); err != nil {
		return err
	}

	fetcher := download.New(cfg.AuthToken)
	err = fetcher.Fetch(cmd.Context(), cfg.ModelURL, loc.Path, func(p types.DownloadProgress) {
		logger.Info().
			Int64("bytes_written", p.BytesWritten).
			Int64("total_bytes", p.TotalBytes).
			Float64("percent", p.Percent).
			Msg("download progress")
	})
	if err != nil {
		return err
	}
	logger.Info().Str("path", loc.Path).Int64("bytes", artifact.Size(loc)).Msg("artifact published")
	return nil
}
