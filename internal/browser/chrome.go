package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

const chromeUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// consentScript clicks through the cookie interstitial when it appears.
const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'button.VfPpkd-LgbsSe-OWXEXe-k8QpJ'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) { btn.click(); return true; }
  }
  return false;
})()`

// chromeHandle pairs the CDP node with the query that produced it so
// scroll scripts can re-address the element by selector and index.
type chromeHandle struct {
	node *cdp.Node
	sel  string
	idx  int
}

// ChromeSession drives a real Chrome via the DevTools protocol.
type ChromeSession struct {
	ctx    context.Context
	cancel []context.CancelFunc
}

// NewChromeSession launches a local Chrome, or attaches to a remote
// DevTools endpoint when cdpURL is set.
func NewChromeSession(parent context.Context, cdpURL string, headless bool) (*ChromeSession, error) {
	var cancels []context.CancelFunc
	base := parent

	if cdpURL != "" {
		ctx, cancel := chromedp.NewRemoteAllocator(parent, cdpURL)
		base = ctx
		cancels = append(cancels, cancel)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.UserAgent(chromeUserAgent),
		)
		ctx, cancel := chromedp.NewExecAllocator(parent, opts...)
		base = ctx
		cancels = append(cancels, cancel)
	}

	ctx, cancel := chromedp.NewContext(base)
	cancels = append(cancels, cancel)

	// Force the browser process up front so a missing Chrome binary
	// fails here, not on the first task.
	if err := chromedp.Run(ctx); err != nil {
		for i := len(cancels) - 1; i >= 0; i-- {
			cancels[i]()
		}
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	return &ChromeSession{ctx: ctx, cancel: cancels}, nil
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.Evaluate(consentScript, nil).Do(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (s *ChromeSession) FindAll(ctx context.Context, selector string) ([]Handle, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", selector, err)
	}
	handles := make([]Handle, len(nodes))
	for i, n := range nodes {
		handles[i] = &chromeHandle{node: n, sel: selector, idx: i}
	}
	return handles, nil
}

func (s *ChromeSession) Click(ctx context.Context, h Handle) error {
	ch, err := asChromeHandle(h)
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.MouseClickNode(ch.node))
}

func (s *ChromeSession) ScrollBy(ctx context.Context, h Handle, amount int) error {
	ch, err := asChromeHandle(h)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`(function(){
  const el = document.querySelectorAll(%q)[%d];
  if (!el) { return false; }
  el.scrollTop = el.scrollTop + %d;
  return true;
})()`, ch.sel, ch.idx, amount)
	return s.run(ctx, chromedp.Evaluate(script, nil))
}

func (s *ChromeSession) ReadText(ctx context.Context, h Handle) (string, error) {
	ch, err := asChromeHandle(h)
	if err != nil {
		return "", err
	}
	var text string
	ids := []cdp.NodeID{ch.node.NodeID}
	if err := s.run(ctx, chromedp.Text(ids, &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *ChromeSession) ReadAttr(ctx context.Context, h Handle, name string) (string, error) {
	ch, err := asChromeHandle(h)
	if err != nil {
		return "", err
	}
	var value string
	var ok bool
	ids := []cdp.NodeID{ch.node.NodeID}
	if err := s.run(ctx, chromedp.AttributeValue(ids, name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return strings.TrimSpace(value), nil
}

func (s *ChromeSession) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (s *ChromeSession) Close() error {
	for i := len(s.cancel) - 1; i >= 0; i-- {
		s.cancel[i]()
	}
	return nil
}

// run executes actions on the session tab while honoring the caller's
// context for cancellation.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(s.ctx, actions...) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func asChromeHandle(h Handle) (*chromeHandle, error) {
	ch, ok := h.(*chromeHandle)
	if !ok {
		return nil, fmt.Errorf("handle %T does not belong to a chrome session", h)
	}
	return ch, nil
}
