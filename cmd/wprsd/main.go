// Command wprsd is the application-side daemon: it appears to local
// applications as their compositor and forwards their surfaces to a
// connected wprsc viewer.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/config"
	"github.com/wayland-transpositor/wprs/proto"
	"github.com/wayland-transpositor/wprs/server"
	"github.com/wayland-transpositor/wprs/shard"
	"github.com/wayland-transpositor/wprs/stats"
	"github.com/wayland-transpositor/wprs/transport"
)

func main() {
	app := cli.NewApp()
	app.Name = "wprsd"
	app.Usage = "forward local application surfaces to a remote viewer"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Value: config.DefaultFile("wprsd"), Usage: "config file path"},
		cli.StringFlag{Name: "socket", Usage: "transport socket path (overrides config)"},
		cli.IntFlag{Name: "zstd-level", Usage: "frame compression level (overrides config)"},
		cli.UintFlag{Name: "framerate", Usage: "pacing framerate (overrides config)"},
		cli.BoolFlag{Name: "print-default-config", Usage: "print the default config and exit"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.DefaultServer()
	if c.Bool("print-default-config") {
		return config.PrintDefault(cfg)
	}
	if err := config.MaybeLoad(c.String("config"), &cfg); err != nil {
		return err
	}
	if v := c.String("socket"); v != "" {
		cfg.SocketPath = v
	}
	if v := c.Int("zstd-level"); v != 0 {
		cfg.ZstdLevel = v
	}
	if v := c.Uint("framerate"); v != 0 {
		cfg.Framerate = uint32(v)
	}

	lg, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer lg.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()
	mx := stats.New(reg)

	comp, err := shard.NewCompressor(cfg.CompressorWorkers, cfg.ZstdLevel)
	if err != nil {
		return err
	}

	ln, err := transport.Listen(cfg.SocketPath, transport.Extra{
		Logger:         lg,
		Metrics:        mx,
		LZ4:            cfg.LZ4Transport,
		SendQueueBound: cfg.SendQueueBound,
	})
	if err != nil {
		return err
	}
	defer ln.Close()
	lg.Info("listening", zap.String("socket", cfg.SocketPath))

	g := &errgroup.Group{}
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return http.ListenAndServe(cfg.MetricsAddr,
				promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		})
	}
	g.Go(func() error { return serve(ln, comp, cfg, lg, mx) })
	return g.Wait()
}

// serve accepts one viewer at a time and runs its event loop to completion.
func serve(ln *transport.Listener, comp *shard.Compressor, cfg config.Server, lg *zap.Logger, mx *stats.Metrics) error {
	for {
		ep, clientID, err := ln.Accept()
		if err != nil {
			return err
		}
		pipe := server.New(ep, comp, server.Options{
			Logger:   lg.With(zap.String("client", string(clientID))),
			Metrics:  mx,
			Shards:   cfg.Shards,
			Deadline: cfg.CallbackDeadline(),
		})
		if err := eventLoop(ep, pipe, lg); err != nil {
			lg.Error("viewer session ended", zap.Error(err))
		} else {
			lg.Info("viewer disconnected")
		}
	}
}

// eventLoop drains the viewer's messages; this goroutine owns all surface
// state for the session.
func eventLoop(ep *transport.Endpoint, pipe *server.Pipeline, lg *zap.Logger) error {
	for in := range ep.Recv() {
		if in.Event == nil {
			// raw frames are viewer->server only for selection data, which
			// the compositor integration consumes; nothing to do here
			continue
		}
		if err := dispatch(pipe, in.Event); err != nil {
			if cmn.Fatal(err) {
				ep.Close()
				return err
			}
			lg.Warn("event dropped", zap.Stringer("kind", in.Event.Kind), zap.Error(err))
		}
	}
	return ep.Err()
}

func dispatch(pipe *server.Pipeline, ev *proto.Event) error {
	switch ev.Kind {
	case proto.EvFrameCallback:
		return pipe.OnFrameCallback(ev.Callback.ID)
	case proto.EvToplevelConfigure:
		st := pipe.Surfaces()
		if err := st.ToplevelConfigured(ev.Toplevel.ID); err != nil {
			return err
		}
		if ev.Toplevel.Suspended {
			return st.ToplevelSuspended(ev.Toplevel.ID)
		}
		return nil
	case proto.EvPopupConfigure:
		if ev.Popup.Dismissed {
			return pipe.Surfaces().PopupDismiss(ev.Popup.ID)
		}
		return pipe.Surfaces().PopupConfigured(ev.Popup.ID, nil)
	case proto.EvClientConnect:
		pipe.Reset()
		return nil
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
