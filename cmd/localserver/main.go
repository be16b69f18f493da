// Command localserver runs the HTTP origin server described by a single
// YAML configuration file, per spec.md §6's CLI contract.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AKMHZJ/go-localserver/internal/config"
	"github.com/AKMHZJ/go-localserver/internal/errs"
	"github.com/AKMHZJ/go-localserver/internal/logging"
	"github.com/AKMHZJ/go-localserver/internal/reactor"
	"github.com/AKMHZJ/go-localserver/internal/router"
)

// defaultMaxBody is the listener-wide client_max_body_size fallback applied
// to a connection until its virtual host (and any host-specific limit) is
// known.
const defaultMaxBody = 1 << 20 // 1 MiB

var logLevel string

func main() {
	root := &cobra.Command{
		Use:           "localserver <config-path>",
		Short:         "Single-threaded, epoll-driven HTTP/1.1 origin server",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "localserver:", err)
		os.Exit(exitCodeFor(err))
	}
}

func run(configPath string) error {
	log := logging.New(logLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	listeners, err := config.BuildListeners(cfg)
	if err != nil {
		return errs.Wrap(errs.KindConfig, err, "building listeners")
	}

	rt := router.New(logging.Component(log, "router"), cfg.CGITimeout.Std())

	rx, err := reactor.New(
		logging.Component(log, "reactor"),
		rt.Dispatch,
		cfg.IdleTimeout.Std(),
		cfg.ReadChunk,
		defaultMaxBody,
	)
	if err != nil {
		return err
	}

	if err := rx.Bind(listeners); err != nil {
		return err
	}

	logging.Component(log, "main").Info("server ready")
	return rx.Run()
}

// exitCodeFor maps a classified error's kind to a process exit code: config
// and bind failures are distinguishable from an internal reactor failure so
// operators and init systems can tell boot-time misconfiguration apart from
// a runtime crash.
func exitCodeFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindConfig:
		return 2
	case errs.KindBind:
		return 3
	default:
		return 1
	}
}
