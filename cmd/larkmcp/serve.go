package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"larkmcp/internal/audit"
	"larkmcp/internal/config"
	"larkmcp/internal/mcp"
)

func serveCmd() *cobra.Command {
	var transport, addr string
	cmd := &cobra.Command{
		Use:       "serve [lark|oss]",
		Short:     "Serve the messaging or storage tools over MCP",
		Long:      "Serves one tool set on stdio (default) or HTTP. Logs go to stderr or general.logFile. Press Ctrl+C to stop.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"lark", "oss"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()
			if transport != "" {
				cfg.Server.Transport = transport
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, args[0])
			if err != nil {
				return err
			}
			defer a.close()

			srv := mcp.NewServer(mcp.ServerConfig{Registry: a.registry, Version: version, Logger: logger})
			switch cfg.Server.Transport {
			case "stdio":
				err = srv.Serve(ctx, os.Stdin, os.Stdout)
			case "http":
				if addr == "" {
					addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
				}
				httpCfg := mcp.HTTPConfig{Addr: addr, APIKey: cfg.Server.APIKey, Logger: logger}
				if cfg.Metrics.Enabled {
					httpCfg.Metrics = a.metrics.Handler()
				}
				err = mcp.NewHTTPServer(srv, httpCfg).ListenAndServe(ctx)
			default:
				return fmt.Errorf("unknown transport %q", cfg.Server.Transport)
			}
			stop()
			if err != nil && ctx.Err() == nil {
				return err
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&transport, "transport", "t", "", "stdio or http (default from server.transport)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default server.host:server.port)")
	return cmd
}

func toolsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools [lark|oss]",
		Short: "List the tools a server exposes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Defaults()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			a, err := buildApp(ctx, cfg, args[0])
			if err != nil {
				return err
			}
			defer a.close()

			defs := a.registry.GetDefinitions()
			if asJSON {
				data, _ := json.MarshalIndent(defs, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			for _, d := range defs {
				color.New(color.FgCyan, color.Bold).Printf("%s", d.Name)
				fmt.Printf("  %s\n", d.Description)
				if props, ok := d.Parameters["properties"].(map[string]any); ok && len(props) > 0 {
					required := map[string]bool{}
					if req, ok := d.Parameters["required"].([]string); ok {
						for _, r := range req {
							required[r] = true
						}
					}
					names := make([]string, 0, len(props))
					for n := range props {
						names = append(names, n)
					}
					sort.Strings(names)
					for _, n := range names {
						mark := ""
						if required[n] {
							mark = color.YellowString(" (required)")
						}
						fmt.Printf("    - %s%s\n", n, mark)
					}
				}
			}
			for _, p := range a.registry.Prompts() {
				color.New(color.FgMagenta).Printf("prompt %s", p.Name)
				fmt.Printf("  %s\n", p.Description)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print definitions as JSON")
	return cmd
}

func callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call [lark|oss] [tool] [json-arguments]",
		Short: "Run one tool and print its result",
		Long:  `Runs a single tool outside MCP, e.g. larkmcp call lark find_feishu_user '{"email":"carol@example.com"}'`,
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			var toolArgs map[string]any
			if len(args) == 3 && strings.TrimSpace(args[2]) != "" {
				if err := json.Unmarshal([]byte(args[2]), &toolArgs); err != nil {
					return fmt.Errorf("arguments must be a JSON object: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			a, err := buildApp(ctx, cfg, args[0])
			if err != nil {
				cancel()
				return err
			}
			out, err := a.registry.Execute(ctx, args[1], toolArgs)
			cancel()
			a.close()
			if err != nil {
				color.Red("error: %v", err)
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and journal summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ok := color.New(color.FgGreen).SprintFunc()
			off := color.New(color.FgHiBlack).SprintFunc()
			state := func(on bool, detail string) string {
				if on {
					return ok("✓ " + detail)
				}
				return off("- " + detail)
			}

			color.New(color.Bold).Printf("larkmcp %s\n", version)
			fmt.Printf("  config     %s\n", cfgPath)
			fmt.Printf("  transport  %s\n", cfg.Server.Transport)
			fmt.Printf("  lark       %s\n", state(cfg.Lark.AppID != "", "credentials "+orNone(cfg.Lark.AppID)))
			fmt.Printf("  oss        %s\n", state(cfg.OSS.Bucket != "", orNone(cfg.OSS.Endpoint)+" / "+orNone(cfg.OSS.Bucket)))
			fmt.Printf("  metrics    %s\n", state(cfg.Metrics.Enabled, cfg.Metrics.Endpoint))
			fmt.Printf("  events     %s\n", state(cfg.Events.Enabled, cfg.Events.Exchange))
			fmt.Printf("  audit      %s\n", state(cfg.Audit.Enabled, cfg.Audit.DBPath))

			if !cfg.Audit.Enabled {
				return nil
			}
			store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger)
			if err != nil {
				color.Red("  audit journal unavailable: %v", err)
				return nil
			}
			defer store.Close()
			st, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("  tool calls %d (%s)\n", st.ToolCalls, color.RedString("%d failed", st.ToolErrors))
			fmt.Printf("  dispatches %d (%s)\n", st.Dispatches, color.RedString("%d failed", st.DispatchFailures))
			fmt.Printf("  storage    %d operations\n", st.StorageOps)

			recent, err := store.RecentDispatches(cmd.Context(), 5)
			if err != nil {
				return err
			}
			for _, d := range recent {
				line := fmt.Sprintf("    %s %-6s %s:%s", d.CreatedAt.Format("01-02 15:04:05"), d.Kind, d.RecipientKind, d.Recipient)
				if d.Error != "" {
					color.Red("%s  %s", line, d.Error)
				} else {
					fmt.Printf("%s  %s\n", line, d.MessageID)
				}
			}
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
