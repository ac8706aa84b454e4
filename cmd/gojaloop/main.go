// Command gojaloop runs JavaScript files on the poll based event loop.
//
// Usage:
//
//	gojaloop [-config file.toml] [-log-level level] script.js...
//
// Scripts are evaluated in order, in a single runtime, after which the loop
// runs until nothing is left to wait for, or a script calls
// EventLoop.requestExit(). SIGINT or SIGTERM requests exit, a second signal
// aborts.
//
// The optional configuration file sets the loop's table capacities and wait
// bounds:
//
//	[loop]
//	max_timers = 4096
//	max_descriptors = 256
//	min_delay = 1.0
//	min_wait = 1.0
//	max_wait = 60000.0
//	max_expiries = 10
//
//	[log]
//	level = "info"
//
// Logs are written to stderr, as newline-delimited JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-pollloop/eventloop"
	gojaeventloop "github.com/joeycumines/go-pollloop/goja-eventloop"
	"github.com/joeycumines/logiface"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type config struct {
	Loop loopConfig `toml:"loop"`
	Log  logConfig  `toml:"log"`
}

// loopConfig leaves unset keys nil, so an explicit zero (e.g. min_wait) is
// distinguishable from the default.
type loopConfig struct {
	MaxTimers      *int     `toml:"max_timers"`
	MaxDescriptors *int     `toml:"max_descriptors"`
	MinDelay       *float64 `toml:"min_delay"`
	MinWait        *float64 `toml:"min_wait"`
	MaxWait        *float64 `toml:"max_wait"`
	MaxExpiries    *int     `toml:"max_expiries"`
}

type logConfig struct {
	Level string `toml:"level"`
}

func main() {
	ctx, stop := signalContext()
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

// signalContext returns a context canceled by the first SIGINT or SIGTERM.
// A second signal exits immediately.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			cancel()
		}
		select {
		case <-signals:
			os.Exit(130)
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(signals)
		cancel()
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	flags := flag.NewFlagSet("gojaloop", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "path to a TOML configuration file")
	logLevel := flags.String("log-level", "", "minimum log level, e.g. err, info, debug, trace (default info)")
	flags.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "usage: gojaloop [flags] script.js...\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return exitUsage
	}

	cfg := config{Log: logConfig{Level: "info"}}
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			_, _ = fmt.Fprintf(stderr, "gojaloop: %v\n", err)
			return exitUsage
		}
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "gojaloop: %v\n", err)
		return exitUsage
	}
	logger := eventloop.NewJSONLogger(stderr, level)

	if err := runScripts(ctx, logger, cfg.Loop, flags.Args()); err != nil {
		if b := logger.Err(); b != nil {
			b.Err(err).Log("gojaloop failed")
		} else {
			_, _ = fmt.Fprintf(stderr, "gojaloop: %v\n", err)
		}
		return exitError
	}
	return exitOK
}

func loadConfig(path string, cfg *config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return fmt.Errorf("config: unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// parseLevel accepts the short syslog keywords used by [logiface.Level],
// plus the common "error" and "warn" spellings.
func parseLevel(s string) (logiface.Level, error) {
	switch s = strings.ToLower(s); s {
	case "error":
		return logiface.LevelError, nil
	case "warn":
		return logiface.LevelWarning, nil
	}
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown log level: %q", s)
}

func (c loopConfig) options() []eventloop.LoopOption {
	var opts []eventloop.LoopOption
	if c.MaxTimers != nil {
		opts = append(opts, eventloop.WithMaxTimers(*c.MaxTimers))
	}
	if c.MaxDescriptors != nil {
		opts = append(opts, eventloop.WithMaxDescriptors(*c.MaxDescriptors))
	}
	if c.MinDelay != nil {
		opts = append(opts, eventloop.WithMinDelay(*c.MinDelay))
	}
	if c.MinWait != nil || c.MaxWait != nil {
		minWait, maxWait := eventloop.DefaultMinWait, eventloop.DefaultMaxWait
		if c.MinWait != nil {
			minWait = *c.MinWait
		}
		if c.MaxWait != nil {
			maxWait = *c.MaxWait
		}
		opts = append(opts, eventloop.WithWaitBounds(minWait, maxWait))
	}
	if c.MaxExpiries != nil {
		opts = append(opts, eventloop.WithMaxExpiries(*c.MaxExpiries))
	}
	return opts
}

func runScripts(ctx context.Context, logger *logiface.Logger[logiface.Event], cfg loopConfig, paths []string) error {
	runtime := goja.New()

	opts := append(cfg.options(), eventloop.WithLogger(logger))
	adapter, err := gojaeventloop.New(runtime, opts...)
	if err != nil {
		return err
	}

	registry := require.NewRegistry()
	adapter.Register(registry)
	registry.Enable(runtime)
	console.Enable(runtime)
	if err := adapter.Bind(); err != nil {
		return err
	}

	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		logger.Debug().Str("script", path).Log("evaluating script")
		if _, err := runtime.RunScript(path, string(src)); err != nil {
			return err
		}
	}

	// also checked between timer expiries, unlike ctx
	stop := context.AfterFunc(ctx, adapter.Loop().RequestExit)
	defer stop()

	if err := adapter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
