package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"planpoint/api/internal/render"
)

// A4 landscape in inches, with the fixed 6 mm margin.
const (
	a4LandscapeWidthIn  = 11.69
	a4LandscapeHeightIn = 8.27
	flattenMarginIn     = 6.0 / 25.4
)

var ErrFlattenDependencyMissing = fmt.Errorf("flatten export dependency missing")

// ChromeFlattener captures a rendered plan surface with headless
// Chrome. It implements render.Flattener.
type ChromeFlattener struct {
	Timeout time.Duration
}

func chromeAvailable() error {
	if _, err := exec.LookPath("chromium-browser"); err != nil {
		if _, fallbackErr := exec.LookPath("chromium"); fallbackErr != nil {
			return fmt.Errorf("%w: chromium not installed", ErrFlattenDependencyMissing)
		}
	}
	return nil
}

func chromeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelTask()
		cancelAlloc()
	}
	return taskCtx, cancel
}

// Flatten navigates to the surface and returns a full screenshot PNG.
func (f *ChromeFlattener) Flatten(ctx context.Context, surfaceURL string) ([]byte, error) {
	if err := chromeAvailable(); err != nil {
		return nil, err
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	taskCtx, cancel := chromeContext(ctx)
	defer cancel()

	var shot []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(surfaceURL),
		chromedp.WaitReady("body"),
		chromedp.FullScreenshot(&shot, 90),
	)
	if err != nil {
		return nil, fmt.Errorf("surface capture failed: %w", err)
	}
	return shot, nil
}

// imageHTML wraps an encoded raster into a minimal full-bleed page.
func imageHTML(imageData []byte) string {
	encoded := base64.StdEncoding.EncodeToString(imageData)
	return `<!doctype html><html><head><style>` +
		`html,body{margin:0;padding:0}` +
		`img{width:100%;display:block}` +
		`</style></head><body>` +
		`<img src="data:image/png;base64,` + encoded + `">` +
		`</body></html>`
}

// percentEncodeForDataURL encodes HTML for use in a data URL. Unlike
// url.QueryEscape it encodes spaces as %20, which data URLs require.
func percentEncodeForDataURL(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~':
			result.WriteRune(r)
		case r == ' ':
			result.WriteString("%20")
		default:
			for _, b := range []byte(string(r)) {
				result.WriteString(fmt.Sprintf("%%%02X", b))
			}
		}
	}
	return result.String()
}

// WrapImagePDF places a captured surface image onto a single landscape
// A4 page with the fixed margin, using headless Chrome's printer.
func WrapImagePDF(ctx context.Context, imageData []byte, title string) (*Result, error) {
	if err := chromeAvailable(); err != nil {
		return nil, err
	}

	ctx, cancelTimeout := context.WithTimeout(ctx, 30*time.Second)
	defer cancelTimeout()

	taskCtx, cancel := chromeContext(ctx)
	defer cancel()

	dataURL := "data:text/html;charset=utf-8," + percentEncodeForDataURL(imageHTML(imageData))

	var pdfData []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithLandscape(true).
				WithPaperWidth(a4LandscapeWidthIn).
				WithPaperHeight(a4LandscapeHeightIn).
				WithMarginTop(flattenMarginIn).
				WithMarginBottom(flattenMarginIn).
				WithMarginLeft(flattenMarginIn).
				WithMarginRight(flattenMarginIn).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome pdf generation failed: %w", err)
	}

	return &Result{
		Data:     pdfData,
		Filename: sanitizeFilename(title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

// FlattenSurface captures the on-screen plan view behind surfaceURL
// and wraps it into a single-page landscape document.
func FlattenSurface(ctx context.Context, flattener render.Flattener, surfaceURL, title string) (*Result, error) {
	shot, err := flattener.Flatten(ctx, surfaceURL)
	if err != nil {
		return nil, err
	}
	return WrapImagePDF(ctx, shot, title)
}
