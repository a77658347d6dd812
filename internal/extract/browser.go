package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// collectLinksJS gathers every anchor href plus the og:url meta tag.
// Reading a.href instead of the attribute makes the browser resolve
// relative URLs for us.
const collectLinksJS = `(() => {
	const urls = Array.from(document.querySelectorAll('a[href]'), a => a.href);
	const og = document.querySelector('meta[property="og:url"]');
	if (og && og.content) {
		urls.push(og.content);
	}
	return urls;
})()`

// BrowserEngine drives a headless Chrome through chromedp. One
// allocator is shared across the engine's lifetime; every Extract or
// CollectLinks call opens its own tab and closes it on return.
type BrowserEngine struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	log         logger.Logger
}

// NewBrowserEngine starts the shared Chrome allocator. Close releases
// it.
func NewBrowserEngine(log logger.Logger) *BrowserEngine {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(browserUserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserEngine{allocCtx: allocCtx, allocCancel: cancel, log: log}
}

// Close shuts down the Chrome allocator and every tab under it.
func (b *BrowserEngine) Close() {
	b.allocCancel()
}

// Extract navigates to pageURL, waits briefly for client-side
// rendering, captures the DOM, and refines it into content.
func (b *BrowserEngine) Extract(ctx context.Context, pageURL string) (*domain.ExtractedContent, error) {
	rawHTML, pageTitle, err := b.capture(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("browser capture %s: %w", pageURL, err)
	}

	content, err := refine(rawHTML, pageURL)
	if err != nil {
		return nil, fmt.Errorf("refine %s: %w", pageURL, err)
	}

	if content.Title == "" {
		content.Title = strings.TrimSpace(pageTitle)
	}
	content.Engine = domain.EngineBrowser

	return content, nil
}

// capture runs the navigate-settle-serialize sequence in a fresh tab.
// Navigation gets its own tight budget; the settle and DOM read share a
// second one so a slow serialization cannot eat the whole job.
func (b *BrowserEngine) capture(ctx context.Context, pageURL string) (rawHTML, pageTitle string, err error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()

	// Propagate caller cancellation into the tab.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	navCtx, cancelNav := context.WithTimeout(tabCtx, navTimeout)
	defer cancelNav()

	if err := chromedp.Run(navCtx, chromedp.Navigate(pageURL)); err != nil {
		return "", "", fmt.Errorf("navigate: %w", err)
	}

	capCtx, cancelCap := context.WithTimeout(tabCtx, captureTimeout)
	defer cancelCap()

	err = chromedp.Run(capCtx,
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &rawHTML),
		chromedp.Title(&pageTitle),
	)
	if err != nil {
		return "", "", fmt.Errorf("capture dom: %w", err)
	}

	return rawHTML, pageTitle, nil
}

// CollectLinks loads the page and pulls every anchor href plus og:url,
// filtered down to http(s) and deduplicated in document order.
func (b *BrowserEngine) CollectLinks(ctx context.Context, pageURL string) ([]string, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	runCtx, cancelRun := context.WithTimeout(tabCtx, linkNavTimeout)
	defer cancelRun()

	var hrefs []string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settleDelay),
		chromedp.Evaluate(collectLinksJS, &hrefs),
	)
	if err != nil {
		return nil, fmt.Errorf("browser links %s: %w", pageURL, err)
	}

	links := filterLinks(hrefs)
	b.log.Debug("browser collected links",
		logger.String("url", pageURL),
		logger.Int("count", len(links)),
	)

	return links, nil
}
