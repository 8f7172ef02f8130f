package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	logger  *slog.Logger
	timeout time.Duration
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgents     []string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless: true,
		Timeout:  30 * time.Second,
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "th-TH,th;q=0.9,en;q=0.8",
		TimezoneID:     "Asia/Bangkok",
		Locale:         "th-TH",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Encoding": "gzip, deflate, br",
			"DNT":             "1",
		},
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultOptions().UserAgents
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Locale == "" {
		opts.Locale = "th-TH"
	}
	if opts.TimezoneID == "" {
		opts.TimezoneID = "Asia/Bangkok"
	}
	if opts.ViewportWidth == 0 || opts.ViewportHeight == 0 {
		opts.ViewportWidth, opts.ViewportHeight = 1920, 1080
	}

	userAgent := opts.UserAgents[rand.Intn(len(opts.UserAgents))]

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--window-size=1920,1080",
			"--start-maximized",
			"--user-agent=" + userAgent,
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &userAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	}

	browserContext, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: browserContext,
		logger:  slog.Default().With("component", "browser"),
		timeout: opts.Timeout,
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.timeout.Milliseconds()))

	return page, nil
}

func (b *Browser) Context() playwright.BrowserContext {
	return b.context
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// FetchPage renders a product page and returns its final HTML. The page is
// scrolled and retailer spec tabs are expanded before capture so lazy
// content is present in the result.
func (b *Browser) FetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	page, err := b.NewPage()
	if err != nil {
		return "", err
	}
	defer page.Close()

	if err := b.NavigateWithRetry(page, pageURL, 3); err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	retailerID := ""
	if parsed, err := url.Parse(pageURL); err == nil {
		if r, ok := models.RetailerByDomain(parsed.Hostname()); ok {
			retailerID = r.ID
		}
	}
	b.PreparePage(page, retailerID)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}

	return content, nil
}

func (b *Browser) NavigateWithRetry(page playwright.Page, url string, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			b.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			time.Sleep(time.Duration(i+1) * time.Second)
		}

		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(b.timeout.Milliseconds())),
		})

		if err == nil {
			content, cerr := page.Content()
			if cerr != nil {
				lastErr = cerr
				continue
			}
			if marker := detectBotBlock(content); marker != "" {
				b.logger.Warn("bot block detected", "url", url, "marker", marker)
				lastErr = fmt.Errorf("bot block detected: %s", marker)
				continue
			}
			return nil
		}

		lastErr = err
		b.logger.Error("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// botBlockMarkers are strings that only appear on challenge or block pages.
var botBlockMarkers = []string{
	"Access Denied",
	"Just a moment...",
	"Checking your browser before accessing",
	"cf-browser-verification",
	"Pardon Our Interruption",
	"are you a robot",
}

func detectBotBlock(content string) string {
	for _, marker := range botBlockMarkers {
		if strings.Contains(content, marker) {
			return marker
		}
	}
	return ""
}

// PreparePage scrolls through the page and expands the retailer's spec
// section so dimension and specification tables are rendered.
func (b *Browser) PreparePage(page playwright.Page, retailerID string) {
	b.scrollThroughPage(page)

	switch retailerID {
	case models.RetailerThaiWatsadu:
		b.clickIfPresent(page, "#readmorePdp")
	case models.RetailerHomePro:
		b.clickIfPresent(page, "#product-specification-tab")
	case models.RetailerDoHome:
		b.clickIfPresent(page, `button:has(h2:has-text("ข้อมูลจำเพาะ"))`)
	case models.RetailerBoonthavorn:
		b.clickIfPresent(page, `h5[class*="horizontalTab-tabListItem"]:has-text("ข้อมูลจำเพาะ")`)
	}

	// Second pass so content revealed by the click gets loaded too
	b.scrollThroughPage(page)
}

// scrollThroughPage walks the viewport down the page to trigger lazy
// loading, pauses at the middle where spec tables usually render, then
// returns to the top.
func (b *Browser) scrollThroughPage(page playwright.Page) {
	steps := 8
	if result, err := page.Evaluate(`Math.ceil(document.body.scrollHeight / window.innerHeight)`); err == nil {
		switch v := result.(type) {
		case int:
			steps = v + 1
		case float64:
			steps = int(v) + 1
		}
		if steps > 15 {
			steps = 15
		}
	}

	for i := 0; i < steps; i++ {
		if _, err := page.Evaluate(`window.scrollBy(0, window.innerHeight * 0.8)`); err != nil {
			return
		}
		time.Sleep(300 * time.Millisecond)
	}

	page.Evaluate(`window.scrollTo(0, document.body.scrollHeight * 0.5)`)
	time.Sleep(500 * time.Millisecond)
	page.Evaluate(`window.scrollTo(0, 0)`)
	time.Sleep(300 * time.Millisecond)
}

func (b *Browser) clickIfPresent(page playwright.Page, selector string) {
	locator := page.Locator(selector).First()

	count, err := locator.Count()
	if err != nil || count == 0 {
		return
	}

	if err := locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(3000),
	}); err != nil {
		b.logger.Debug("failed to click expander", "selector", selector, "error", err)
		return
	}

	time.Sleep(800 * time.Millisecond)
}
