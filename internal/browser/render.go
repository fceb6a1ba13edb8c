package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/yahoo"
)

// Page is a rendered screener page plus the session it left behind.
type Page struct {
	HTML      string
	FinalURL  string
	UserAgent string
	Cookies   []*http.Cookie
	SeedReady bool
	Block     BlockResult
	// Runtime holds JS globals evaluated after load, in probe order.
	Runtime []models.EmbeddedStateCandidate
}

type runtimeProbe struct {
	name string
	expr string
}

var runtimeProbes = []runtimeProbe{
	{"__NEXT_DATA__", "window.__NEXT_DATA__"},
	{"__PRELOADED_STATE__", "window.__PRELOADED_STATE__"},
	{"root.App.main", "(window.root && root.App && root.App.main)"},
	{"App.main", "(window.App && App.main)"},
	{"YAHOO.context", "(window.YAHOO && YAHOO.context)"},
}

const consentClickScript = `(() => {
	const words = ['accept', 'agree', 'consent', 'continue'];
	const buttons = Array.from(document.querySelectorAll('button, input[type=submit]'));
	for (const w of words) {
		for (const b of buttons) {
			const text = ((b.innerText || b.value || '') + ' ' + (b.getAttribute('aria-label') || '')).toLowerCase();
			if (text.includes(w) && !b.disabled && b.offsetParent !== null) {
				b.click();
				return true;
			}
		}
	}
	return false;
})()`

func seedSelector(marker string) string {
	return fmt.Sprintf(`script[data-sveltekit-fetched][data-url*="%s"]`, marker)
}

// Render loads the screener page for region in a new tab. A missing seed
// after SeedTimeout is reported through SeedReady, not as an error.
func (b *GlobalBrowser) Render(ctx context.Context, region string) (*Page, error) {
	log := logger.Log.With().Str("region", region).Logger()

	if err := b.AcquireWithContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire browser slot: %w", err)
	}
	defer b.Release()

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	defer tabCancel()

	// tab must also stop when the caller gives up
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	tabTimeoutCtx, tabTimeoutCancel := context.WithTimeout(tabCtx, b.opts.TabTimeout)
	defer tabTimeoutCancel()

	pageURL := yahoo.PageURL(region)
	var finalURL string

	setup := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(userAgent).
				WithAcceptLanguage("en-US,en;q=0.9").
				WithPlatform("macOS").
				Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetBlockedURLS([]string{
				"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico",
				"*.mp4", "*.webm",
				"*.woff", "*.woff2", "*.ttf", "*.otf",
				"*doubleclick*", "*googletagmanager*", "*google-analytics*",
			}).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetExtraHTTPHeaders(network.Headers{
				"Accept-Language":           "en-US,en;q=0.9",
				"sec-ch-ua":                 `"Chromium";v="140", "Not=A?Brand";v="24", "Google Chrome";v="140"`,
				"sec-ch-ua-mobile":          "?0",
				"sec-ch-ua-platform":        `"macOS"`,
				"Upgrade-Insecure-Requests": "1",
			}).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(StealthScripts()).Do(ctx)
			return err
		}),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
	}
	if err := chromedp.Run(tabTimeoutCtx, setup); err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}

	if IsConsentURL(finalURL) {
		log.Info().Str("url", finalURL).Msg("consent flow detected")
		if err := b.acceptConsent(tabTimeoutCtx, &finalURL); err != nil {
			log.Warn().Err(err).Msg("consent not accepted")
		}
	}

	if b.opts.PageLoadDelay > 0 {
		_ = chromedp.Run(tabTimeoutCtx, chromedp.Sleep(b.opts.PageLoadDelay))
	}

	seedReady := b.waitSeed(tabTimeoutCtx)
	if !seedReady {
		log.Warn().Dur("timeout", b.opts.SeedTimeout).Msg("screener seed not detected in DOM after wait")
	}

	var html, ua string
	if err := chromedp.Run(tabTimeoutCtx,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html),
		chromedp.Evaluate("navigator.userAgent", &ua),
	); err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}

	cookies, err := getCookies(tabTimeoutCtx)
	if err != nil {
		log.Debug().Err(err).Msg("read cookies failed")
	}

	p := &Page{
		HTML:      html,
		FinalURL:  finalURL,
		UserAgent: ua,
		Cookies:   cookies,
		SeedReady: seedReady,
		Block:     DetectBlocking(html, finalURL),
		Runtime:   evaluateRuntime(tabTimeoutCtx),
	}

	log.Info().
		Str("final_url", finalURL).
		Int("html_len", len(html)).
		Int("cookies", len(cookies)).
		Bool("seed_ready", seedReady).
		Bool("blocked", p.Block.Blocked).
		Int("runtime_states", len(p.Runtime)).
		Msg("page rendered")

	return p, nil
}

// RuntimeState renders the page again and returns the JS globals that look
// like application state.
func (b *GlobalBrowser) RuntimeState(ctx context.Context, region string) ([]models.EmbeddedStateCandidate, error) {
	p, err := b.Render(ctx, region)
	if err != nil {
		return nil, err
	}
	return p.Runtime, nil
}

func (b *GlobalBrowser) waitSeed(ctx context.Context) bool {
	var ready bool
	err := chromedp.Run(ctx, chromedp.Poll(
		fmt.Sprintf("!!document.querySelector('%s')", seedSelector(b.opts.SeedMarker)),
		&ready,
		chromedp.WithPollingInterval(500*time.Millisecond),
		chromedp.WithPollingTimeout(b.opts.SeedTimeout),
	))
	if err != nil && !errors.Is(err, chromedp.ErrPollingTimeout) {
		logger.Log.Debug().Err(err).Msg("seed poll failed")
	}
	return err == nil && ready
}

func (b *GlobalBrowser) acceptConsent(ctx context.Context, finalURL *string) error {
	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(consentClickScript, &clicked)); err != nil {
		return fmt.Errorf("click consent: %w", err)
	}
	if !clicked {
		return fmt.Errorf("no consent button found")
	}

	var left bool
	err := chromedp.Run(ctx,
		chromedp.Poll(`!location.href.includes('consent') && !location.href.includes('guce')`, &left,
			chromedp.WithPollingInterval(250*time.Millisecond),
			chromedp.WithPollingTimeout(15*time.Second),
		),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(finalURL),
	)
	if err != nil {
		return fmt.Errorf("wait consent redirect: %w", err)
	}
	logger.Log.Info().Str("url", *finalURL).Msg("consent accepted")
	return nil
}

func evaluateRuntime(ctx context.Context) []models.EmbeddedStateCandidate {
	var out []models.EmbeddedStateCandidate
	for _, probe := range runtimeProbes {
		var raw string
		expr := fmt.Sprintf(`(() => { try { return JSON.stringify(%s || null); } catch (e) { return "null"; } })()`, probe.expr)
		if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &raw)); err != nil {
			continue
		}
		state, ok := decodeState(raw)
		if !ok {
			continue
		}
		out = append(out, models.EmbeddedStateCandidate{Container: probe.name, State: state})
	}
	return out
}

// decodeState keeps only object-shaped state.
func decodeState(raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return m, true
}

func getCookies(ctx context.Context) ([]*http.Cookie, error) {
	var cdpCookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cdpCookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]*http.Cookie, 0, len(cdpCookies))
	for _, c := range cdpCookies {
		cookies = append(cookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return cookies, nil
}
