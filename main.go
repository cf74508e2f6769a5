package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// ConfigEnv 指定配置文件路径的环境变量，优先级低于 --config。
const ConfigEnv = "UST_CACHE_CONFIG"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// cliOptions 汇总全局标志解析后的结果，由各子命令共享。
type cliOptions struct {
	configFlag string
	cacheDir   string
	logLevel   string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

// run 执行 CLI 并返回退出码，方便测试。
func run(ctx context.Context, args []string) int {
	cmd := newRootCmd(&cliOptions{})
	cmd.SetArgs(args)
	cmd.SetOut(stdOut)
	cmd.SetErr(stdErr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stdErr, "Error: %v\n", err)
		if isUsageError(err) {
			return exitUsage
		}
		return exitError
	}
	return exitOK
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ust-cache",
		Short: "Local on-disk cache for remotely fetched JSON artifacts",
		Long: `ust-cache downloads JSON artifacts (optionally bzip2 compressed), keeps them
under a local cache directory keyed by source URL and reuses them until the
TTL embedded in each artifact's metadata runs out.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFlag, "config", "", "config file path (default: $"+ConfigEnv+", none if unset)")
	cmd.PersistentFlags().StringVar(&opts.cacheDir, "cache-dir", "", "cache directory (default: $SNAP_USER_COMMON/.ust_cache or ~/.ust_cache)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	cmd.AddCommand(
		newPathCmd(opts),
		newGetCmd(opts),
		newListCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// configPath 计算最终配置路径：--config 优先，其次 UST_CACHE_CONFIG。
func (o *cliOptions) configPath() string {
	if o.configFlag != "" {
		return o.configFlag
	}
	return os.Getenv(ConfigEnv)
}

// usageError 标记命令行用法错误，对应退出码 2。
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

func (e usageError) Unwrap() error { return e.err }

func isUsageError(err error) bool {
	var usage usageError
	if errors.As(err, &usage) {
		return true
	}
	// cobra 对未知子命令只返回普通 error
	return strings.HasPrefix(err.Error(), "unknown command")
}

// exactURLArg 要求恰好一个 URL 参数。
func exactURLArg(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return usageError{fmt.Errorf("expected exactly one url argument, got %d", len(args))}
	}
	if strings.TrimSpace(args[0]) == "" {
		return usageError{errors.New("url must not be empty")}
	}
	return nil
}
