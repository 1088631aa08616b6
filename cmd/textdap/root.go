package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samiralibabic/textdap/internal/config"
	"github.com/samiralibabic/textdap/internal/server"
)

var (
	cfgPath   string
	useStdio  bool
	tcpListen string
	wsListen  string
	logPath   string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "textdap",
	Short: "Debug adapter that steps through plain text files",
	Long: `textdap speaks the Debug Adapter Protocol and simulates a debugging
session over a text file: launching loads the file, and continue/step
commands move a line cursor according to the breakpoints the editor sets.`,
	Version:       server.ServerVersion,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVar(&cfgPath, "config", "", "path to a TOML config file")
	rootCmd.Flags().BoolVar(&useStdio, "stdio", false, "serve a single session on stdin/stdout")
	rootCmd.Flags().StringVar(&tcpListen, "tcp", "", "listen address for the TCP transport (host:port)")
	rootCmd.Flags().StringVar(&wsListen, "ws", "", "listen address for the WebSocket transport (host:port)")
	rootCmd.Flags().StringVar(&logPath, "log-path", "", "diagnostic log file (overrides config and "+config.EnvLogPath+")")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "process log level: debug, info, warn, error")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if tcpListen != "" {
		cfg.Server.TCPListen = tcpListen
	}
	if wsListen != "" {
		cfg.Server.WSListen = wsListen
	}
	if cmd.Flags().Changed("stdio") {
		cfg.Server.Stdio = useStdio
	}
	if useStdio {
		cfg.Server.TCPListen, cfg.Server.WSListen = "", ""
	}
	if logPath != "" {
		cfg.Diagnostics.Path = logPath
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel(cfg)}))

	svc, err := server.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case cfg.Server.TCPListen != "":
		return server.RunTCP(ctx, svc, cfg.Server.TCPListen)
	case cfg.Server.WSListen != "":
		return server.RunWS(ctx, svc, cfg.Server.WSListen)
	case cfg.Server.Stdio:
		stop := context.AfterFunc(ctx, func() { _ = os.Stdin.Close() })
		defer stop()
		if err := server.RunStdio(ctx, svc, os.Stdin, os.Stdout); err != nil && !errors.Is(err, os.ErrClosed) {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	default:
		return errors.New("no transport configured: use --stdio, --tcp or --ws")
	}
}
