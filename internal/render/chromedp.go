// Package render turns an HTML document into a PNG snapshot using a
// headless Chrome instance driven over the DevTools protocol.
package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

type Config struct {
	// FullPage captures the whole scrollable page instead of the viewport.
	FullPage bool
	// ScaleFactor is the device scale factor; 2 keeps small table text
	// legible for the vision model.
	ScaleFactor float64
	// Timeout bounds one render; zero means no bound beyond the caller's
	// context.
	Timeout time.Duration
}

// Chrome implements pipeline.Renderer. A fresh browser context is
// created per render; renders are strictly sequential, so there is no
// benefit to keeping one alive across runs.
type Chrome struct {
	cfg Config
}

func New(cfg Config) *Chrome {
	if cfg.ScaleFactor <= 0 {
		cfg.ScaleFactor = 2
	}
	return &Chrome{cfg: cfg}
}

const (
	viewportWidth  = 1280
	viewportHeight = 900
)

func (c *Chrome) Render(ctx context.Context, htmlDoc string) ([]byte, error) {
	if htmlDoc == "" {
		return nil, fmt.Errorf("empty html document")
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	url := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))

	var buf []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(viewportWidth, viewportHeight, chromedp.EmulateScale(c.cfg.ScaleFactor)),
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	}
	if c.cfg.FullPage {
		tasks = append(tasks, chromedp.FullScreenshot(&buf, 100))
	} else {
		tasks = append(tasks, chromedp.CaptureScreenshot(&buf))
	}

	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return nil, fmt.Errorf("capture html snapshot: %w", err)
	}
	return buf, nil
}
