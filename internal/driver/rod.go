package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clinicprobe/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Config holds browser configuration.
type Config struct {
	DebuggerURL       string
	Bin               string
	Flags             []string
	Headless          bool
	Viewport          Viewport
	NavigationTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		Viewport:          Viewport{Name: "desktop", Width: 1280, Height: 720},
		NavigationTimeout: 30 * time.Second,
	}
}

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 30 * time.Second
	}
	return c.NavigationTimeout
}

// RodBrowser owns a Chrome instance, either launched or attached to.
type RodBrowser struct {
	cfg      Config
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// Launch connects to an existing Chrome or launches a new one. Every
// failure wraps ErrUnavailable.
func Launch(ctx context.Context, cfg Config) (*RodBrowser, error) {
	log := logging.Browser()

	controlURL := cfg.DebuggerURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		for _, rawFlag := range cfg.Flags {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("%w: launch chrome: %w", ErrUnavailable, err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("%w: connect to chrome: %w", ErrUnavailable, err)
	}

	log.Info("browser connected",
		zap.String("control_url", controlURL),
		zap.Bool("headless", cfg.Headless),
		zap.Bool("attached", cfg.DebuggerURL != ""))

	return &RodBrowser{cfg: cfg, browser: browser, launcher: l}, nil
}

// NewPage opens a blank page in a fresh incognito context so no cookies or
// storage leak between scenarios.
func (b *RodBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	browser := b.browser
	b.mu.Unlock()
	if browser == nil {
		return nil, fmt.Errorf("%w: browser closed", ErrUnavailable)
	}

	if _, err := browser.Context(ctx).Version(); err != nil {
		return nil, fmt.Errorf("%w: browser not responding: %w", ErrUnavailable, err)
	}

	incognito, err := browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("%w: incognito context: %w", ErrUnavailable, err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("%w: create page: %w", ErrUnavailable, err)
	}

	p := &rodPage{page: page, incognito: incognito, cfg: b.cfg}
	if err := p.SetViewport(ctx, b.cfg.Viewport); err != nil {
		logging.Browser().Warn("failed to set viewport", zap.Error(err))
	}
	return p, nil
}

// Close shuts the browser down and kills a launched process.
func (b *RodBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
	return err
}

type rodPage struct {
	page      *rod.Page
	incognito *rod.Browser
	cfg       Config
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx).Timeout(p.cfg.navigationTimeout())
	defer pg.CancelTimeout()
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return pg.WaitLoad()
}

func (p *rodPage) Reload(ctx context.Context) error {
	pg := p.page.Context(ctx).Timeout(p.cfg.navigationTimeout())
	defer pg.CancelTimeout()
	if err := pg.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return pg.WaitLoad()
}

func (p *rodPage) GoBack(ctx context.Context) error {
	return p.page.Context(ctx).NavigateBack()
}

func (p *rodPage) GoForward(ctx context.Context) error {
	return p.page.Context(ctx).NavigateForward()
}

func (p *rodPage) Locate(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	pg := p.page.Context(ctx).Timeout(timeout)
	defer pg.CancelTimeout()

	el, err := pg.Element(selector)
	if err != nil {
		return nil, locatorError(selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return nil, locatorError(selector, err)
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) WaitFor(ctx context.Context, selector string, state ElementState, timeout time.Duration) (Element, error) {
	pg := p.page.Context(ctx).Timeout(timeout)
	defer pg.CancelTimeout()

	switch state {
	case StateHidden:
		has, el, err := pg.Has(selector)
		if err != nil {
			return nil, locatorError(selector, err)
		}
		if !has {
			return nil, nil
		}
		if err := el.WaitInvisible(); err != nil {
			return nil, locatorError(selector, err)
		}
		return nil, nil
	case StateVisible:
		el, err := pg.Element(selector)
		if err != nil {
			return nil, locatorError(selector, err)
		}
		if err := el.WaitVisible(); err != nil {
			return nil, locatorError(selector, err)
		}
		return &rodElement{el: el}, nil
	default:
		el, err := pg.Element(selector)
		if err != nil {
			return nil, locatorError(selector, err)
		}
		return &rodElement{el: el}, nil
	}
}

func locatorError(selector string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrLocatorTimeout, selector)
	}
	return fmt.Errorf("locate %s: %w", selector, err)
}

func (p *rodPage) Query(ctx context.Context, selector string) (Element, bool, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil || !has {
		return nil, false, err
	}
	return &rodElement{el: el}, true, nil
}

func (p *rodPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

var rodKeys = map[Key]input.Key{
	KeyTab:        input.Tab,
	KeyEnter:      input.Enter,
	KeyEscape:     input.Escape,
	KeySpace:      input.Space,
	KeyBackspace:  input.Backspace,
	KeyArrowUp:    input.ArrowUp,
	KeyArrowDown:  input.ArrowDown,
	KeyArrowLeft:  input.ArrowLeft,
	KeyArrowRight: input.ArrowRight,
}

func (p *rodPage) Press(ctx context.Context, key Key) error {
	k, ok := rodKeys[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Context(ctx).Keyboard.Press(k)
}

func (p *rodPage) SetViewport(ctx context.Context, vp Viewport) error {
	return proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1.0,
		Mobile:            vp.Mobile,
	}.Call(p.page.Context(ctx))
}

func (p *rodPage) SetOffline(ctx context.Context, offline bool) error {
	pg := p.page.Context(ctx)
	if err := (proto.NetworkEnable{}).Call(pg); err != nil {
		return fmt.Errorf("enable network domain: %w", err)
	}
	return proto.NetworkEmulateNetworkConditions{
		Offline:            offline,
		Latency:            0,
		DownloadThroughput: -1,
		UploadThroughput:   -1,
	}.Call(pg)
}

func (p *rodPage) OnDialog(handler func(Dialog)) (stop func()) {
	pg, cancel := p.page.WithCancel()
	wait := pg.EachEvent(func(ev *proto.PageJavascriptDialogOpening) {
		// Dismiss off the event loop; the page stays blocked until then.
		go func() {
			if err := (proto.PageHandleJavaScriptDialog{Accept: false}).Call(p.page); err != nil {
				logging.Browser().Debug("dialog dismissal failed", zap.Error(err))
			}
		}()
		handler(Dialog{
			Kind:    DialogKind(ev.Type),
			Message: ev.Message,
			URL:     ev.URL,
			At:      time.Now(),
		})
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()
	return func() {
		cancel()
		<-done
	}
}

func (p *rodPage) OnConsole(handler func(ConsoleMessage)) (stop func()) {
	pg, cancel := p.page.WithCancel()
	wait := pg.EachEvent(func(ev *proto.RuntimeConsoleAPICalled) {
		handler(ConsoleMessage{
			Level: string(ev.Type),
			Text:  stringifyConsoleArgs(ev.Args),
			At:    time.Now(),
		})
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()
	return func() {
		cancel()
		<-done
	}
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

func (p *rodPage) Screenshot(ctx context.Context, path string) error {
	data, err := p.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (p *rodPage) Evaluate(ctx context.Context, js string, args ...any) (json.RawMessage, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, err
	}
	return res.Value.MarshalJSON()
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *rodPage) Close() error {
	err := p.page.Close()
	if cerr := p.incognito.Close(); err == nil {
		err = cerr
	}
	return err
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Hover(ctx context.Context) error {
	return e.el.Context(ctx).Hover()
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) DoubleClick(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 2)
}

func (e *rodElement) InsertText(ctx context.Context, text string) error {
	return e.el.Context(ctx).Input(text)
}

func (e *rodElement) Clear(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input("")
}

func (e *rodElement) Focus(ctx context.Context) error {
	return e.el.Context(ctx).Focus()
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	return e.el.Context(ctx).ScrollIntoView()
}

func (e *rodElement) WaitActionable(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.WaitVisible(); err != nil {
		return err
	}
	return el.WaitEnabled()
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *rodElement) Enabled(ctx context.Context) (bool, error) {
	disabled, err := e.el.Context(ctx).Disabled()
	return !disabled, err
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", false, err
	}
	return *v, true, nil
}

func (e *rodElement) SetFiles(ctx context.Context, paths ...string) error {
	return e.el.Context(ctx).SetFiles(paths)
}

func (e *rodElement) SelectOption(ctx context.Context, value string) error {
	return e.el.Context(ctx).Select([]string{fmt.Sprintf("[value=%q]", value)}, true, rod.SelectorTypeCSSSector)
}
