package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesmith/api/schemas"
	"github.com/xkilldash9x/pagesmith/internal/config"
	"github.com/xkilldash9x/pagesmith/internal/extractor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Page is one Chrome tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	navigationTimeout time.Duration
	elementTimeout    time.Duration
	postLoadWait      time.Duration

	closeOnce sync.Once
}

var _ schemas.Page = (*Page)(nil)

func newPage(browserCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Page, error) {
	ctx, cancel := chromedp.NewContext(browserCtx)

	p := &Page{
		ctx:               ctx,
		cancel:            cancel,
		logger:            logger.Named("page"),
		navigationTimeout: cfg.Network.NavigationTimeout,
		elementTimeout:    cfg.Network.ElementTimeout,
		postLoadWait:      cfg.Network.PostLoadWait,
	}

	// Pages under automation must never hang on alert()/confirm() dialogs.
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if _, ok := ev.(*cdppage.EventJavascriptDialogOpening); ok {
			go func() {
				if err := chromedp.Run(ctx, cdppage.HandleJavaScriptDialog(true)); err != nil {
					p.logger.Warn("Failed to dismiss dialog", zap.Error(err))
				}
			}()
		}
	})

	// Materialize the tab.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return p, nil
}

// run executes chromedp actions under the page context combined with the
// caller's context and the given timeout.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(p.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the URL, waits for the document to be ready and then for the
// configured post-load quiet period.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating", zap.String("url", url))
	if err := p.run(ctx, p.navigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if p.postLoadWait > 0 {
		if err := p.run(ctx, 0, chromedp.Sleep(p.postLoadWait)); err != nil {
			return fmt.Errorf("post-load wait interrupted: %w", err)
		}
	}
	return nil
}

// URL returns the current location.
func (p *Page) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, p.elementTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// Title returns the current document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, p.elementTimeout, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return strings.TrimSpace(title), nil
}

// Snapshots evaluates the collector script and decodes its JSON payload. A
// version mismatch means the shipped script and the engine disagree about the
// record shape; that is a hard error, not a degradation.
func (p *Page) Snapshots(ctx context.Context) ([]schemas.ElementSnapshot, error) {
	var raw string
	if err := p.run(ctx, p.elementTimeout, chromedp.Evaluate(extractor.CollectorScript(), &raw)); err != nil {
		return nil, fmt.Errorf("element collection script failed: %w", err)
	}

	var payload extractor.SnapshotPayload
	if err := json.UnmarshalFromString(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode element snapshots: %w", err)
	}
	if payload.Version != schemas.SnapshotVersion {
		return nil, fmt.Errorf("snapshot contract version mismatch: script=%d engine=%d",
			payload.Version, schemas.SnapshotVersion)
	}
	return payload.Elements, nil
}

// Describe snapshots the first node matching the selector as a plain record.
func (p *Page) Describe(ctx context.Context, sel string) (schemas.ElementSnapshot, error) {
	var raw string
	script := extractor.DescribeScript(firstMatchExpression(sel))
	if err := p.run(ctx, p.elementTimeout, chromedp.Evaluate(script, &raw)); err != nil {
		return schemas.ElementSnapshot{}, fmt.Errorf("describe script for %q failed: %w", sel, err)
	}
	if raw == "null" {
		return schemas.ElementSnapshot{}, fmt.Errorf("selector %q matched nothing: %w", sel, schemas.ErrElementNotFound)
	}
	var snap schemas.ElementSnapshot
	if err := json.UnmarshalFromString(raw, &snap); err != nil {
		return schemas.ElementSnapshot{}, fmt.Errorf("failed to decode element record for %q: %w", sel, err)
	}
	return snap, nil
}

// Count returns the number of nodes the selector matches right now.
func (p *Page) Count(ctx context.Context, sel string) (int, error) {
	var count int
	if err := p.run(ctx, p.elementTimeout, chromedp.Evaluate(countExpression(sel), &count)); err != nil {
		return 0, fmt.Errorf("failed to count matches for %q: %w", sel, err)
	}
	return count, nil
}

// Text returns the trimmed visible text of the first match.
func (p *Page) Text(ctx context.Context, sel string) (string, error) {
	if err := p.requireMatch(ctx, sel); err != nil {
		return "", err
	}
	var text string
	if err := p.run(ctx, p.elementTimeout, chromedp.Text(locator(sel), &text, matchOption(sel))); err != nil {
		return "", fmt.Errorf("failed to read text of %q: %w", sel, err)
	}
	return strings.TrimSpace(text), nil
}

// Value returns the value property of the first match.
func (p *Page) Value(ctx context.Context, sel string) (string, error) {
	if err := p.requireMatch(ctx, sel); err != nil {
		return "", err
	}
	var value string
	if err := p.run(ctx, p.elementTimeout, chromedp.Value(locator(sel), &value, matchOption(sel))); err != nil {
		return "", fmt.Errorf("failed to read value of %q: %w", sel, err)
	}
	return value, nil
}

// Click dispatches a click on the first match. Fails immediately when the
// selector matches nothing; retry policy belongs to the caller.
func (p *Page) Click(ctx context.Context, sel string) error {
	if err := p.requireMatch(ctx, sel); err != nil {
		return err
	}
	if err := p.run(ctx, p.elementTimeout, chromedp.Click(locator(sel), matchOption(sel))); err != nil {
		return fmt.Errorf("click on %q failed: %w", sel, err)
	}
	return nil
}

// Fill clears the first match and types the value.
func (p *Page) Fill(ctx context.Context, sel, value string) error {
	if err := p.requireMatch(ctx, sel); err != nil {
		return err
	}
	if err := p.run(ctx, p.elementTimeout,
		chromedp.Clear(locator(sel), matchOption(sel)),
		chromedp.SendKeys(locator(sel), value, matchOption(sel)),
	); err != nil {
		return fmt.Errorf("fill on %q failed: %w", sel, err)
	}
	return nil
}

// SelectOption selects the option with the given value in a dropdown.
func (p *Page) SelectOption(ctx context.Context, sel, value string) error {
	if err := p.requireMatch(ctx, sel); err != nil {
		return err
	}
	if err := p.run(ctx, p.elementTimeout,
		chromedp.SetValue(locator(sel), value, matchOption(sel)),
	); err != nil {
		return fmt.Errorf("select on %q failed: %w", sel, err)
	}
	return nil
}

// SetChecked forces the checked state of a checkbox or radio input and fires
// a change event so framework listeners observe it.
func (p *Page) SetChecked(ctx context.Context, sel string, checked bool) error {
	if err := p.requireMatch(ctx, sel); err != nil {
		return err
	}
	expr := fmt.Sprintf(`(() => {
		const el = %s;
		if (!el) return false;
		el.checked = %t;
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, firstMatchExpression(sel), checked)

	var ok bool
	if err := p.run(ctx, p.elementTimeout, chromedp.Evaluate(expr, &ok)); err != nil {
		return fmt.Errorf("set-checked on %q failed: %w", sel, err)
	}
	if !ok {
		return fmt.Errorf("set-checked on %q: %w", sel, schemas.ErrElementNotFound)
	}
	return nil
}

// Hover dispatches mouseover on the first match.
func (p *Page) Hover(ctx context.Context, sel string) error {
	if err := p.requireMatch(ctx, sel); err != nil {
		return err
	}
	expr := fmt.Sprintf(`(() => {
		const el = %s;
		if (!el) return false;
		el.dispatchEvent(new MouseEvent('mouseover', { bubbles: true }));
		return true;
	})()`, firstMatchExpression(sel))

	var ok bool
	if err := p.run(ctx, p.elementTimeout, chromedp.Evaluate(expr, &ok)); err != nil {
		return fmt.Errorf("hover on %q failed: %w", sel, err)
	}
	if !ok {
		return fmt.Errorf("hover on %q: %w", sel, schemas.ErrElementNotFound)
	}
	return nil
}

// WaitVisible blocks until the selector matches a visible node or the timeout
// elapses.
func (p *Page) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.elementTimeout
	}
	if err := p.run(ctx, timeout, chromedp.WaitVisible(locator(sel), matchOption(sel))); err != nil {
		return fmt.Errorf("wait for %q failed: %w", sel, err)
	}
	return nil
}

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.elementTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Close releases the tab. Safe to call more than once.
func (p *Page) Close(ctx context.Context) error {
	p.closeOnce.Do(p.cancel)
	return nil
}

// requireMatch fails fast with ErrElementNotFound when the selector matches
// nothing on the live page.
func (p *Page) requireMatch(ctx context.Context, sel string) error {
	count, err := p.Count(ctx, sel)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("selector %q matched nothing: %w", sel, schemas.ErrElementNotFound)
	}
	return nil
}

// combineContext derives a context canceled when either input is canceled.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
