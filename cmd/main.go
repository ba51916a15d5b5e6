package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"prompt-relay/config"
	"prompt-relay/core"
	"prompt-relay/models"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "prompt-relay",
		Short:         "Relay prompts to a generative-language API without exposing the API key",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env 可选，不存在时直接使用进程环境变量
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file")

	root.AddCommand(
		newServeCmd(&configPath),
		newInvokeCmd(&configPath),
		newFailuresCmd(&configPath),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func newInvokeCmd(configPath *string) *cobra.Command {
	var (
		providerName string
		eventPath    string
		prompt       string
	)

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Handle a single serverless-style event and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, closer, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			router, err := core.NewRouter(cfg, core.NewHTTPClient(), log, nil)
			if err != nil {
				return err
			}

			handler := router.Default()
			if providerName != "" {
				h, ok := router.Route(providerName)
				if !ok {
					return fmt.Errorf("unknown provider %q", providerName)
				}
				handler = h
			}

			event, err := readEvent(cmd.InOrStdin(), eventPath, prompt)
			if err != nil {
				return err
			}

			result := handler.Handle(context.Background(), event)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "", "provider to relay through (default: relay.provider)")
	cmd.Flags().StringVar(&eventPath, "event", "-", "event JSON file, or - for stdin")
	cmd.Flags().StringVar(&prompt, "prompt", "", "build a POST event from this prompt instead of reading --event")
	return cmd
}

func newFailuresCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Print the most recent relay failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := models.OpenDatabase(cfg.FailureLog.DBPath)
			if err != nil {
				return err
			}
			entries, err := models.RecentFailures(db, limit)
			if err != nil {
				return fmt.Errorf("failed to query failure log: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to print")
	return cmd
}

// readEvent 读取事件 JSON；指定 prompt 时直接构造 POST 事件
func readEvent(stdin io.Reader, path, prompt string) (models.Event, error) {
	if prompt != "" {
		body, err := json.Marshal(models.PromptRequest{Prompt: prompt})
		if err != nil {
			return models.Event{}, err
		}
		return models.Event{HTTPMethod: http.MethodPost, Body: string(body)}, nil
	}

	var r io.Reader = stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return models.Event{}, fmt.Errorf("failed to open event file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var event models.Event
	if err := json.NewDecoder(r).Decode(&event); err != nil {
		return models.Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return event, nil
}

// newLogger 创建日志器，配置了日志文件时同时写入轮转文件
func newLogger(cfg *config.Config, stderr io.Writer) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Log.File == "" {
		log.SetOutput(stderr)
		return log, io.NopCloser(nil), nil
	}

	rotator, err := core.NewLogRotator(cfg.Log.File, cfg.Log.MaxSizeMB)
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(io.MultiWriter(stderr, rotator))
	return log, rotator, nil
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, closer, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	// 关闭 Gin Debug 模式输出
	gin.SetMode(gin.ReleaseMode)

	var recorder core.FailureRecorder
	if cfg.FailureLog.Enabled {
		db, err := models.OpenDatabase(cfg.FailureLog.DBPath)
		if err != nil {
			log.Warnf("Failure log disabled: %v", err)
		} else {
			failureLogger := core.NewAsyncFailureLogger(db, log, core.FailureLoggerOptions{
				BufferSize:    cfg.FailureLog.BufferSize,
				BatchSize:     cfg.FailureLog.BatchSize,
				FlushInterval: cfg.FlushInterval(),
				Retain:        cfg.FailureLog.Retain,
			})
			defer failureLogger.Close()
			recorder = failureLogger
			log.Info("Failure log initialized successfully")
		}
	}

	router, err := core.NewRouter(cfg, core.NewHTTPClient(), log, recorder)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newEngine(router, log),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting prompt relay on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited")
	return nil
}
