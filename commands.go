package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ust-cache/ust-cache/internal/cache"
	"github.com/ust-cache/ust-cache/internal/server"
	"github.com/ust-cache/ust-cache/internal/server/routes"
)

func newPathCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path <url>",
		Short: "Print the local path of the cached file for url",
		Args:  exactURLArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openRuntime(opts)
			if err != nil {
				return err
			}
			path, err := deps.store.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newGetCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <url>",
		Short: "Print the parsed content of the cached file for url",
		Args:  exactURLArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openRuntime(opts)
			if err != nil {
				return err
			}
			doc, err := deps.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), doc)
		},
	}
}

// listItem 为 list 命令的输出行。
type listItem struct {
	URL       string    `json:"url" yaml:"url"`
	Path      string    `json:"path" yaml:"path"`
	Timestamp int64     `json:"timestamp" yaml:"timestamp"`
	TTL       int64     `json:"ttl" yaml:"ttl"`
	Expired   bool      `json:"expired" yaml:"expired"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
}

func newListCmd(opts *cliOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries",
		Long: `List every entry of the persisted index.

Entries are sorted by URL. The expired column is computed against the current
clock; nothing is downloaded or evicted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format := strings.ToLower(strings.TrimSpace(output))
			switch format {
			case "table", "json", "yaml":
			default:
				return usageError{fmt.Errorf("unsupported output format %q (table, json, yaml)", output)}
			}

			deps, err := openRuntime(opts)
			if err != nil {
				return err
			}
			items := listItems(deps.store.Entries(), deps.store.Now())
			return writeList(cmd.OutOrStdout(), format, items)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json, yaml)")
	return cmd
}

func listItems(entries []cache.Entry, now time.Time) []listItem {
	items := make([]listItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, listItem{
			URL:       entry.URL,
			Path:      entry.Path,
			Timestamp: entry.Timestamp,
			TTL:       entry.TTL,
			Expired:   entry.ExpiredAt(now),
			ExpiresAt: entry.ExpiresAt(),
		})
	}
	return items
}

func writeList(w io.Writer, format string, items []listItem) error {
	switch format {
	case "json":
		return writeJSON(w, items)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(items); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}

	if len(items) == 0 {
		fmt.Fprintln(w, "No cached entries")
		return nil
	}
	fmt.Fprintf(w, "%-60s %-8s %-20s %s\n", "URL", "STATUS", "EXPIRES", "PATH")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, item := range items {
		status := "valid"
		if item.Expired {
			status = "expired"
		}
		fmt.Fprintf(w, "%-60s %-8s %-20s %s\n", item.URL, status, item.ExpiresAt.Format(time.RFC3339), item.Path)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func newServeCmd(opts *cliOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cached artifacts over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := openRuntime(opts)
			if err != nil {
				return err
			}
			addr := deps.cfg.ListenAddr
			if listen != "" {
				addr = listen
			}
			app, err := buildServer(deps)
			if err != nil {
				return err
			}
			return startHTTPServer(cmd.Context(), app, addr, deps.logger)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address host:port (default: ListenAddr from config)")
	return cmd
}

func buildServer(deps *runtimeDeps) (*fiber.App, error) {
	app, err := server.NewApp(server.AppOptions{
		Logger: deps.logger,
		Store:  deps.store,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterCacheRoutes(app, deps.store, deps.logger)
	return app, nil
}

// startHTTPServer 阻塞直到监听失败或 parent 取消；返回时关闭等待 shutdown 的 goroutine。
func startHTTPServer(parent context.Context, app *fiber.App, addr string, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"addr":   addr,
	}).Info("Fiber 服务启动")

	err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	cancel()
	<-shutdownDone
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}
