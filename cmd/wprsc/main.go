// Command wprsc is the viewer-side client: it connects to a wprsd daemon,
// renders the forwarded surfaces, and feeds local input back.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teris-io/shortid"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/wayland-transpositor/wprs/client"
	"github.com/wayland-transpositor/wprs/config"
	"github.com/wayland-transpositor/wprs/proto"
	"github.com/wayland-transpositor/wprs/shard"
	"github.com/wayland-transpositor/wprs/stats"
	"github.com/wayland-transpositor/wprs/transport"
)

func main() {
	app := cli.NewApp()
	app.Name = "wprsc"
	app.Usage = "render surfaces forwarded by a wprsd daemon"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Value: config.DefaultFile("wprsc"), Usage: "config file path"},
		cli.StringFlag{Name: "socket", Usage: "transport socket path (overrides config)"},
		cli.BoolFlag{Name: "print-default-config", Usage: "print the default config and exit"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.DefaultClient()
	if c.Bool("print-default-config") {
		return config.PrintDefault(cfg)
	}
	if err := config.MaybeLoad(c.String("config"), &cfg); err != nil {
		return err
	}
	if v := c.String("socket"); v != "" {
		cfg.SocketPath = v
	}

	lg, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer lg.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()
	mx := stats.New(reg)

	dec, err := shard.NewDecompressor(cfg.DecompressorWorkers)
	if err != nil {
		return err
	}

	viewerID, err := shortid.Generate()
	if err != nil {
		return err
	}
	ep, err := transport.Dial(cfg.SocketPath, transport.Extra{
		Logger:         lg,
		Metrics:        mx,
		AutoReconnect:  true,
		BackoffCap:     cfg.BackoffCap(),
		LZ4:            cfg.LZ4Transport,
		RecvQueueBound: cfg.RecvQueueBound,
		OnConnect: []*proto.Event{{
			Kind:    proto.EvClientConnect,
			Connect: &proto.ClientConnect{Client: proto.ClientID(viewerID)},
		}},
	})
	if err != nil {
		return err
	}
	defer ep.Close()
	lg.Info("connected", zap.String("socket", cfg.SocketPath), zap.String("viewer", viewerID))

	pipe := client.New(ep, dec, &logPresenter{lg: lg}, client.Options{Logger: lg, Metrics: mx})

	g := &errgroup.Group{}
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return http.ListenAndServe(cfg.MetricsAddr,
				promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		})
	}
	g.Go(func() error { return pipe.Run(ep) })
	return g.Wait()
}

// logPresenter stands in for the display backend: the windowing integration
// (painting, input capture) plugs in through client.Presenter.
type logPresenter struct {
	lg *zap.Logger
}

func (p *logPresenter) Present(id proto.SurfaceID, st *proto.SurfaceState, pixels []byte) error {
	p.lg.Debug("present",
		zap.Uint32("surface", uint32(id.Surface)),
		zap.Int("bytes", len(pixels)),
		zap.Int("children", len(st.Children)))
	return nil
}

func (p *logPresenter) DestroySurface(id proto.SurfaceID) {
	p.lg.Debug("destroy", zap.Uint32("surface", uint32(id.Surface)))
}

func (p *logPresenter) SetCursor(_ proto.ClientID, meta proto.BufferMetadata, hotspot proto.Point, _ []byte) {
	p.lg.Debug("cursor", zap.Int32("w", meta.Width), zap.Int32("h", meta.Height),
		zap.Int32("hx", hotspot.X), zap.Int32("hy", hotspot.Y))
}

func (p *logPresenter) Selection(_ proto.ClientID, mimeType string, data []byte) {
	p.lg.Debug("selection", zap.String("mime", mimeType), zap.Int("bytes", len(data)))
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
