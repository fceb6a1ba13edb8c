package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
)

var (
	global *GlobalBrowser
	mu     sync.Mutex
)

// Options configure the shared browser.
type Options struct {
	Headless      bool
	ProfileDir    string
	MaxTabs       int
	PageLoadDelay time.Duration
	SeedTimeout   time.Duration
	TabTimeout    time.Duration
	SeedMarker    string
}

func (o *Options) setDefaults() {
	if o.MaxTabs < 1 {
		o.MaxTabs = 2
	}
	if o.SeedTimeout <= 0 {
		o.SeedTimeout = 25 * time.Second
	}
	if o.TabTimeout <= 0 {
		o.TabTimeout = 90 * time.Second
	}
	if o.SeedMarker == "" {
		o.SeedMarker = "predefined/saved"
	}
}

// GlobalBrowser is a singleton browser shared by every region run
type GlobalBrowser struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	semaphore     chan struct{} // limits concurrent tabs
	opts          Options
}

// Init starts the global browser. Must be called once at startup.
func Init(ctx context.Context, opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		return fmt.Errorf("browser already initialized")
	}
	opts.setDefaults()

	allocOpts := ExecAllocatorOptions(opts.Headless)
	if opts.ProfileDir != "" {
		if err := os.MkdirAll(opts.ProfileDir, 0755); err != nil {
			return fmt.Errorf("create profile dir: %w", err)
		}
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}

	global = &GlobalBrowser{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		semaphore:     make(chan struct{}, opts.MaxTabs),
		opts:          opts,
	}

	logger.Log.Info().
		Bool("headless", opts.Headless).
		Int("max_tabs", opts.MaxTabs).
		Dur("seed_timeout", opts.SeedTimeout).
		Msg("global browser initialized")
	return nil
}

// Get returns the global browser instance.
// Panics if browser is not initialized.
func Get() *GlobalBrowser {
	mu.Lock()
	defer mu.Unlock()

	if global == nil {
		panic("browser not initialized, call browser.Init() first")
	}
	return global
}

func IsInitialized() bool {
	mu.Lock()
	defer mu.Unlock()
	return global != nil
}

// Close shuts down the global browser
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if global == nil {
		return
	}

	if global.browserCancel != nil {
		global.browserCancel()
	}
	if global.allocCancel != nil {
		global.allocCancel()
	}

	logger.Log.Info().Msg("global browser closed")
	global = nil
}

// AcquireWithContext acquires a tab slot, respecting context cancellation
func (b *GlobalBrowser) AcquireWithContext(ctx context.Context) error {
	select {
	case b.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *GlobalBrowser) Release() {
	<-b.semaphore
}
