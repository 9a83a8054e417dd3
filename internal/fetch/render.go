package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/lisaapatel/partnerscan/internal/extract"
)

// ChromeRenderer renders pages in headless Chrome.
type ChromeRenderer struct {
	userAgent string
	timeout   time.Duration
	execPath  string
	logger    *zap.Logger
}

// NewChromeRenderer returns a renderer. An empty execPath lets chromedp
// find the browser.
func NewChromeRenderer(userAgent string, timeout time.Duration, execPath string, logger *zap.Logger) *ChromeRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ChromeRenderer{userAgent: userAgent, timeout: timeout, execPath: execPath, logger: logger}
}

// Render loads url, waits for the body and returns the rendered markup.
// When screenshotPath is set a full-page PNG is written there.
func (r *ChromeRenderer) Render(ctx context.Context, url, screenshotPath string) (*Result, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(r.userAgent),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	var (
		markup, title, location string
		shot                    []byte
	)
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Location(&location),
	}
	if screenshotPath != "" {
		actions = append(actions, chromedp.FullScreenshot(&shot, 100))
	}

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	res := &Result{
		URL:        url,
		FinalURL:   location,
		StatusCode: 200,
		HTML:       markup,
		Title:      extract.CleanTitle(title),
	}
	if res.FinalURL == "" {
		res.FinalURL = url
	}

	if screenshotPath != "" && len(shot) > 0 {
		if err := writeScreenshot(screenshotPath, shot); err != nil {
			r.logger.Warn("screenshot not saved", zap.String("url", url), zap.Error(err))
		} else {
			res.Screenshot = screenshotPath
		}
	}
	return res, nil
}

func writeScreenshot(path string, png []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}
