// Package browser implements the schemas.Driver and schemas.Page contracts on
// top of chromedp. It is the only package that talks to a real browser; the
// session layer treats it as an opaque capability.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesmith/api/schemas"
	"github.com/xkilldash9x/pagesmith/internal/config"
)

// Driver owns one Chrome process. Pages are tabs inside it.
type Driver struct {
	logger *zap.Logger
	cfg    *config.Config

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	closeOnce sync.Once
}

var _ schemas.Driver = (*Driver)(nil)

// NewDriver launches a Chrome instance. The parent context bounds the whole
// browser lifetime; canceling it tears the process down.
func NewDriver(parentCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Driver, error) {
	opts := launchOptions(cfg)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, opts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	// Force the browser process to start now so launch failures surface here
	// rather than on the first page operation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserStop()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	d := &Driver{
		logger:      logger.Named("browser"),
		cfg:         cfg,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
	}
	d.logger.Info("Browser launched", zap.Bool("headless", cfg.Browser.Headless))
	return d, nil
}

// launchOptions maps the configuration onto chromedp allocator options,
// including the stability arguments needed in containers.
func launchOptions(cfg *config.Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Browser.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight),
	)
	if cfg.Browser.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if cfg.Browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.Browser.UserAgent))
	}
	for _, arg := range cfg.Browser.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

// NewPage opens a fresh tab.
func (d *Driver) NewPage(ctx context.Context) (schemas.Page, error) {
	select {
	case <-d.browserCtx.Done():
		return nil, fmt.Errorf("browser is closed: %w", d.browserCtx.Err())
	default:
	}
	return newPage(d.browserCtx, d.cfg, d.logger)
}

// Close shuts down the browser process. Safe to call more than once.
func (d *Driver) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.logger.Info("Closing browser")
		d.browserStop()
		d.allocCancel()
	})
	return nil
}
