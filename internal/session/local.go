package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// LocalConfig configures the development provider, which drives a local
// Chrome instead of the managed service.
type LocalConfig struct {
	// DebuggerURL attaches to an already-running Chrome. Empty launches one.
	DebuggerURL string
	Headless    bool

	ViewportWidth  int
	ViewportHeight int

	NavigationTimeout time.Duration
}

func (c LocalConfig) viewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

func (c LocalConfig) viewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

func (c LocalConfig) navigationTimeout() time.Duration {
	if c.NavigationTimeout == 0 {
		return 30 * time.Second
	}
	return c.NavigationTimeout
}

// StructuredExtractor turns raw page text into a structured value. The local
// provider has no server-side extraction, so the caller injects one, usually
// backed by an LLM.
type StructuredExtractor func(ctx context.Context, pageText, instruction string, out any) error

// Local is a Provider backed by a shared local Chrome. Each Open gets its own
// incognito context, so sessions stay isolated the same way managed ones do.
type Local struct {
	cfg     LocalConfig
	extract StructuredExtractor

	mu      sync.Mutex
	browser *rod.Browser
}

// NewLocal creates the development provider. extract may be nil, in which
// case Extract on every page fails.
func NewLocal(cfg LocalConfig, extract StructuredExtractor) *Local {
	return &Local{cfg: cfg, extract: extract}
}

func (l *Local) Name() string { return "local" }

// ensureBrowser connects lazily and reconnects when the browser went away.
func (l *Local) ensureBrowser(ctx context.Context) (*rod.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser != nil {
		if _, err := l.browser.Version(); err == nil {
			return l.browser, nil
		}
		zap.L().Warn("session: stale local browser, reconnecting")
		_ = l.browser.Close()
		l.browser = nil
	}

	controlURL := l.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(l.cfg.Headless).Launch()
		if err != nil {
			return nil, eris.Wrap(err, "session: launch local chrome")
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, eris.Wrap(err, "session: connect local chrome")
	}
	l.browser = browser
	return browser, nil
}

// Open creates a fresh incognito page.
func (l *Local) Open(ctx context.Context) (Handle, error) {
	browser, err := l.ensureBrowser(ctx)
	if err != nil {
		return nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, eris.Wrap(err, "session: incognito context")
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, eris.Wrap(err, "session: create page")
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             l.cfg.viewportWidth(),
		Height:            l.cfg.viewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		zap.L().Warn("session: set viewport failed", zap.Error(err))
	}

	return &localHandle{
		id:      uuid.NewString(),
		page:    page,
		cfg:     l.cfg,
		extract: l.extract,
	}, nil
}

type localHandle struct {
	id      string
	page    *rod.Page
	cfg     LocalConfig
	extract StructuredExtractor
}

func (h *localHandle) ID() string { return h.id }

func (h *localHandle) Page() Page {
	return &localPage{page: h.page, cfg: h.cfg, extract: h.extract}
}

func (h *localHandle) Close() error {
	if err := h.page.Close(); err != nil {
		return eris.Wrap(err, "session: close page")
	}
	return nil
}

type localPage struct {
	page    *rod.Page
	cfg     LocalConfig
	extract StructuredExtractor
}

func (p *localPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx).Timeout(p.cfg.navigationTimeout())
	if err := page.Navigate(url); err != nil {
		return eris.Wrap(err, "session: navigate")
	}
	if err := page.WaitLoad(); err != nil {
		return eris.Wrap(err, "session: wait load")
	}
	return nil
}

// Act is unsupported locally: there is no natural-language action engine in
// plain Chrome. Callers fall back on the managed provider for flows that
// need it.
func (p *localPage) Act(ctx context.Context, instruction string, secrets ...Credential) error {
	return ErrActionUnsupported
}

func (p *localPage) Extract(ctx context.Context, instruction string, out any) error {
	if p.extract == nil {
		return eris.New("session: no structured extractor configured for local provider")
	}
	text, err := p.Text(ctx)
	if err != nil {
		return err
	}
	return p.extract(ctx, text, instruction, out)
}

func (p *localPage) Text(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           `() => document.body ? document.body.innerText : ""`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return "", eris.Wrap(err, "session: read page text")
	}
	if res == nil || res.Value.Nil() {
		return "", nil
	}
	return res.Value.Str(), nil
}

func (p *localPage) URL(ctx context.Context) string {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return ""
	}
	return info.URL
}
