// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command a2arun runs the A2A protocol server.
//
// Usage:
//
//	a2arun serve --config config.yaml
//	a2arun validate --config config.yaml
//	a2arun version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/a2arun/pkg/config"
	"github.com/kadirpekel/a2arun/pkg/logger"
	"github.com/kadirpekel/a2arun/pkg/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the A2A server."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple or verbose; any other value uses slog's plain text format)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("a2arun version %s\n", version)
	return nil
}

// ServeCmd loads the configuration and runs the server until interrupted.
type ServeCmd struct {
	HTTPAddr string `help:"Override server.http_addr."`
	WSAddr   string `help:"Override server.ws_addr."`
	Watch    bool   `help:"Watch the config file; a change is reloaded, validated and logged, but not applied to the running server."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		return err
	}
	logger.Init(level, os.Stderr, cli.LogFormat)
	log := logger.GetLogger()

	loaderOpts := config.LoaderOptions{Type: config.ConfigTypeFile, Path: cli.Config, Watch: c.Watch}
	cfg, loader, err := config.LoadConfigWithLoader(loaderOpts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if loader != nil {
		defer loader.Stop()
	}

	if c.HTTPAddr != "" {
		cfg.Server.HTTPAddr = c.HTTPAddr
	}
	if c.WSAddr != "" {
		cfg.Server.WSAddr = c.WSAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	log.Info("starting a2arun", "http_addr", cfg.Server.HTTPAddr, "ws_addr", cfg.Server.WSAddr)
	return srv.Run(ctx)
}

// ValidateCmd loads and validates a configuration file without starting
// the server, printing the resolved configuration's key settings.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := config.LoadConfig(config.LoaderOptions{Type: config.ConfigTypeFile, Path: cli.Config})
	if err != nil {
		return fmt.Errorf("config is invalid: %w", err)
	}

	fmt.Printf("config OK: %s\n", cli.Config)
	fmt.Printf("  http_addr:  %s\n", cfg.Server.HTTPAddr)
	fmt.Printf("  ws_addr:    %s\n", cfg.Server.WSAddr)
	fmt.Printf("  store:      %s\n", cfg.Store.Dialect)
	fmt.Printf("  auth:       enabled=%t\n", cfg.Auth.Enabled)
	fmt.Printf("  tracing:    enabled=%t\n", cfg.Tracing.Enabled)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("a2arun"),
		kong.Description("A2A protocol runtime."),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli); err != nil {
		slog.Error("a2arun failed", "error", err)
		os.Exit(1)
	}
}
