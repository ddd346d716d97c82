package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type Options struct {
	Headless bool
	// Bin is the browser executable; empty lets the launcher find or
	// download one.
	Bin string
	// Timeout bounds every navigation and element wait.
	Timeout time.Duration
}

// Browser drives one Chromium tab through the portal login. It implements
// session.Driver.
type Browser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
}

// Launch starts the browser and opens a blank tab. The caller must Close
// it on every path to avoid leaking browser processes.
func Launch(opts Options) (*Browser, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	l := launcher.New().
		Headless(opts.Headless).
		Leakless(false).
		Set("disable-dev-shm-usage").
		Set("no-sandbox")
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &Browser{launcher: l, browser: browser, page: page, timeout: opts.Timeout}, nil
}

func (b *Browser) scoped(ctx context.Context) (*rod.Page, func()) {
	p := b.page.Context(ctx).Timeout(b.timeout)
	return p, func() { p.CancelTimeout() }
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	p, done := b.scoped(ctx)
	defer done()

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	// SPA portals keep rendering after load; stability is best effort.
	_ = p.WaitStable(500 * time.Millisecond)
	return nil
}

func (b *Browser) ClickByText(ctx context.Context, selector, pattern string) error {
	p, done := b.scoped(ctx)
	defer done()

	el, err := p.ElementR(selector, pattern)
	if err != nil {
		return fmt.Errorf("element %q matching %s: %w", selector, pattern, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (b *Browser) FillField(ctx context.Context, selector, value string) error {
	p, done := b.scoped(ctx)
	defer done()

	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("field %q: %w", selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("clear %q: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("input %q: %w", selector, err)
	}
	return nil
}

func (b *Browser) Submit(ctx context.Context, selector string) error {
	p, done := b.scoped(ctx)
	defer done()

	if selector != "" {
		if has, el, err := p.Has(selector); err == nil && has {
			if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
				return fmt.Errorf("click submit %q: %w", selector, err)
			}
			return nil
		}
	}
	if err := p.KeyActions().Press(input.Enter).Do(); err != nil {
		return fmt.Errorf("press enter: %w", err)
	}
	return nil
}

func (b *Browser) PageText(ctx context.Context) (string, error) {
	p, done := b.scoped(ctx)
	defer done()

	body, err := p.Element("body")
	if err != nil {
		return "", fmt.Errorf("body: %w", err)
	}
	return body.Text()
}

const readStorageJS = `(key) => window.localStorage.getItem(key) || window.sessionStorage.getItem(key) || ""`

func (b *Browser) ReadStorage(ctx context.Context, key string) (string, error) {
	p, done := b.scoped(ctx)
	defer done()

	res, err := p.Eval(readStorageJS, key)
	if err != nil {
		return "", fmt.Errorf("read storage %q: %w", key, err)
	}
	return res.Value.Str(), nil
}

const clearStorageJS = `() => { try { window.localStorage.clear(); window.sessionStorage.clear() } catch (e) {} }`

// ClearStorage empties both web storages of the current origin. Pages
// without storage access, such as about:blank, are left as they are.
func (b *Browser) ClearStorage(ctx context.Context) error {
	p, done := b.scoped(ctx)
	defer done()

	if _, err := p.Eval(clearStorageJS); err != nil {
		return fmt.Errorf("clear storage: %w", err)
	}
	return nil
}

// Close quits the browser and kills the launched process.
func (b *Browser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
