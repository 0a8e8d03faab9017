// Package drivertest provides a scripted in-memory driver.Page. It records
// every action in order so tests can assert on interaction sequences
// without a browser.
package drivertest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clinicprobe/internal/driver"
)

// Action is one recorded call against the page or one of its elements.
type Action struct {
	Kind     string
	Selector string
	Value    string
}

func (a Action) String() string {
	if a.Value == "" {
		return a.Kind + " " + a.Selector
	}
	return fmt.Sprintf("%s %s %q", a.Kind, a.Selector, a.Value)
}

// Page is a fake driver.Page. The zero value is not usable; use NewPage.
type Page struct {
	mu sync.Mutex

	elements map[string]*Element
	order    []string
	actions  []Action

	title    string
	url      string
	offline  bool
	viewport driver.Viewport
	closed   bool

	nextHandler     int
	dialogHandlers  map[int]func(driver.Dialog)
	consoleHandlers map[int]func(driver.ConsoleMessage)
	unhandled       []driver.Dialog

	// PollInterval is how often Locate and WaitFor re-check the element set.
	PollInterval time.Duration

	// Hooks let tests script page behavior.
	OnNavigate   func(p *Page, url string) error
	OnReload     func(p *Page) error
	OnOffline    func(p *Page, offline bool) error
	OnViewport   func(p *Page, vp driver.Viewport) error
	OnEvaluate   func(p *Page, js string, args []any) (json.RawMessage, error)
	OnScreenshot func(p *Page, path string) error
	OnClose      func(p *Page) error
}

// NewPage returns an empty page with the given title.
func NewPage(title string) *Page {
	return &Page{
		elements:        make(map[string]*Element),
		title:           title,
		dialogHandlers:  make(map[int]func(driver.Dialog)),
		consoleHandlers: make(map[int]func(driver.ConsoleMessage)),
		PollInterval:    2 * time.Millisecond,
	}
}

// Add registers an element under selector, replacing any previous one.
func (p *Page) Add(selector string, opts ...Option) *Element {
	el := &Element{page: p, selector: selector, visible: true, enabled: true, attrs: map[string]string{}}
	for _, opt := range opts {
		opt(el)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.elements[selector]; !ok {
		p.order = append(p.order, selector)
	}
	p.elements[selector] = el
	return el
}

// Remove detaches the element registered under selector.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
	for i, s := range p.order {
		if s == selector {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Element returns the element registered under exactly selector.
func (p *Page) Element(selector string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[selector]
}

// SetTitle changes the document title.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// FireDialog opens a native dialog. With no handler installed the dialog is
// kept as unhandled, the way a real page would stay blocked.
func (p *Page) FireDialog(kind driver.DialogKind, message string) {
	d := driver.Dialog{Kind: kind, Message: message, At: time.Now()}
	p.mu.Lock()
	handlers := make([]func(driver.Dialog), 0, len(p.dialogHandlers))
	for _, h := range p.dialogHandlers {
		handlers = append(handlers, h)
	}
	if len(handlers) == 0 {
		p.unhandled = append(p.unhandled, d)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(d)
	}
}

// Log emits a console message to every console handler.
func (p *Page) Log(level, text string) {
	p.mu.Lock()
	handlers := make([]func(driver.ConsoleMessage), 0, len(p.consoleHandlers))
	for _, h := range p.consoleHandlers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(driver.ConsoleMessage{Level: level, Text: text, At: time.Now()})
	}
}

// Actions returns a copy of every recorded action.
func (p *Page) Actions() []Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Action, len(p.actions))
	copy(out, p.actions)
	return out
}

// ActionsOf returns recorded actions of the given kind.
func (p *Page) ActionsOf(kind string) []Action {
	var out []Action
	for _, a := range p.Actions() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func (p *Page) Offline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offline
}

func (p *Page) Viewport() driver.Viewport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// DialogHandlers reports how many dialog handlers are installed.
func (p *Page) DialogHandlers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dialogHandlers)
}

// Unhandled returns dialogs fired while no handler was installed.
func (p *Page) Unhandled() []driver.Dialog {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]driver.Dialog(nil), p.unhandled...)
}

func (p *Page) record(kind, selector, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, Action{Kind: kind, Selector: selector, Value: value})
}

// lookup resolves a selector, including comma-separated selector lists,
// to the first registered match.
func (p *Page) lookup(selector string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[selector]; ok {
		return el
	}
	for _, part := range strings.Split(selector, ",") {
		if el, ok := p.elements[strings.TrimSpace(part)]; ok {
			return el
		}
	}
	return nil
}

func (p *Page) poll(ctx context.Context, timeout time.Duration, done func() bool) bool {
	if done() {
		return true
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return done()
		case <-ticker.C:
			if done() {
				return true
			}
		}
	}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("navigate", "", url)
	p.mu.Lock()
	p.url = url
	hook := p.OnNavigate
	p.mu.Unlock()
	if hook != nil {
		return hook(p, url)
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("reload", "", "")
	if p.OnReload != nil {
		return p.OnReload(p)
	}
	return nil
}

func (p *Page) GoBack(ctx context.Context) error {
	p.record("back", "", "")
	return ctx.Err()
}

func (p *Page) GoForward(ctx context.Context) error {
	p.record("forward", "", "")
	return ctx.Err()
}

func (p *Page) Locate(ctx context.Context, selector string, timeout time.Duration) (driver.Element, error) {
	var found *Element
	ok := p.poll(ctx, timeout, func() bool {
		found = p.lookup(selector)
		return found != nil && found.isVisible()
	})
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", driver.ErrLocatorTimeout, selector)
	}
	p.record("locate", selector, "")
	return found, nil
}

func (p *Page) WaitFor(ctx context.Context, selector string, state driver.ElementState, timeout time.Duration) (driver.Element, error) {
	var found *Element
	ok := p.poll(ctx, timeout, func() bool {
		found = p.lookup(selector)
		switch state {
		case driver.StateHidden:
			return found == nil || !found.isVisible()
		case driver.StateVisible:
			return found != nil && found.isVisible()
		default:
			return found != nil
		}
	})
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", driver.ErrLocatorTimeout, selector)
	}
	if state == driver.StateHidden {
		return nil, nil
	}
	return found, nil
}

func (p *Page) Query(ctx context.Context, selector string) (driver.Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	el := p.lookup(selector)
	if el == nil {
		return nil, false, nil
	}
	return el, true, nil
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parts := strings.Split(selector, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var out []driver.Element
	for _, sel := range p.order {
		el := p.elements[sel]
		if sel == selector || el.group == selector {
			out = append(out, el)
			continue
		}
		for _, part := range parts {
			if sel == part || el.group == part {
				out = append(out, el)
				break
			}
		}
	}
	return out, nil
}

func (p *Page) Press(ctx context.Context, key driver.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("press", "", string(key))
	return nil
}

func (p *Page) SetViewport(ctx context.Context, vp driver.Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.OnViewport != nil {
		if err := p.OnViewport(p, vp); err != nil {
			return err
		}
	}
	p.record("viewport", "", fmt.Sprintf("%dx%d", vp.Width, vp.Height))
	p.mu.Lock()
	p.viewport = vp
	p.mu.Unlock()
	return nil
}

func (p *Page) SetOffline(ctx context.Context, offline bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.OnOffline != nil {
		if err := p.OnOffline(p, offline); err != nil {
			return err
		}
	}
	p.record("network", "", fmt.Sprintf("offline=%t", offline))
	p.mu.Lock()
	p.offline = offline
	p.mu.Unlock()
	return nil
}

func (p *Page) OnDialog(handler func(driver.Dialog)) (stop func()) {
	p.mu.Lock()
	id := p.nextHandler
	p.nextHandler++
	p.dialogHandlers[id] = handler
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.dialogHandlers, id)
			p.mu.Unlock()
		})
	}
}

func (p *Page) OnConsole(handler func(driver.ConsoleMessage)) (stop func()) {
	p.mu.Lock()
	id := p.nextHandler
	p.nextHandler++
	p.consoleHandlers[id] = handler
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.consoleHandlers, id)
			p.mu.Unlock()
		})
	}
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("screenshot", "", path)
	if p.OnScreenshot != nil {
		return p.OnScreenshot(p, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\x89PNG fake"), 0644)
}

func (p *Page) Evaluate(ctx context.Context, js string, args ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.record("evaluate", "", js)
	if p.OnEvaluate != nil {
		return p.OnEvaluate(p, js, args)
	}
	return json.RawMessage("null"), nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.unhandled) > 0 {
		return "", fmt.Errorf("page blocked by %s dialog", p.unhandled[0].Kind)
	}
	return p.title, nil
}

func (p *Page) Close() error {
	p.record("close", "", "")
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	if p.OnClose != nil {
		return p.OnClose(p)
	}
	return nil
}

var _ driver.Page = (*Page)(nil)
