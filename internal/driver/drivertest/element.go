package drivertest

import (
	"context"
	"strings"
	"sync"

	"clinicprobe/internal/driver"
)

// Option configures a fake element.
type Option func(*Element)

// Hidden registers the element as attached but not visible.
func Hidden() Option { return func(e *Element) { e.visible = false } }

// Disabled registers the element as disabled.
func Disabled() Option { return func(e *Element) { e.enabled = false } }

// WithText sets the element's text content.
func WithText(text string) Option { return func(e *Element) { e.text = text } }

// WithAttr sets an attribute.
func WithAttr(name, value string) Option { return func(e *Element) { e.attrs[name] = value } }

// InGroup makes QueryAll(group) return the element.
func InGroup(group string) Option { return func(e *Element) { e.group = group } }

// OnClick runs fn after every click.
func OnClick(fn func(p *Page)) Option { return func(e *Element) { e.onClick = fn } }

// OnFiles runs fn after files are attached.
func OnFiles(fn func(p *Page, paths []string)) Option { return func(e *Element) { e.onFiles = fn } }

// OnSelect runs fn after an option is selected.
func OnSelect(fn func(p *Page, value string)) Option { return func(e *Element) { e.onSelect = fn } }

// FailClick makes every click return err.
func FailClick(err error) Option { return func(e *Element) { e.clickErr = err } }

// Element is a fake driver.Element.
type Element struct {
	page     *Page
	selector string
	group    string

	mu      sync.Mutex
	visible bool
	enabled bool
	text    string
	value   string
	files   []string
	attrs   map[string]string

	onClick  func(p *Page)
	onFiles  func(p *Page, paths []string)
	onSelect func(p *Page, value string)
	clickErr error
}

func (e *Element) isVisible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

// SetVisible toggles visibility.
func (e *Element) SetVisible(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = v
}

// SetEnabled toggles the disabled state.
func (e *Element) SetEnabled(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = v
}

// SetText replaces the text content.
func (e *Element) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
}

// SetAttr sets an attribute.
func (e *Element) SetAttr(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attrs[name] = value
}

// Value returns everything typed into the element.
func (e *Element) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Files returns the files attached to the element.
func (e *Element) Files() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.files...)
}

func (e *Element) Hover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.record("hover", e.selector, "")
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.record("click", e.selector, "")
	if e.clickErr != nil {
		return e.clickErr
	}
	if e.onClick != nil {
		e.onClick(e.page)
	}
	return nil
}

func (e *Element) DoubleClick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.record("dblclick", e.selector, "")
	if e.clickErr != nil {
		return e.clickErr
	}
	if e.onClick != nil {
		e.onClick(e.page)
		e.onClick(e.page)
	}
	return nil
}

func (e *Element) InsertText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.record("insert", e.selector, text)
	e.mu.Lock()
	e.value += text
	e.mu.Unlock()
	return nil
}

func (e *Element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.record("clear", e.selector, "")
	e.mu.Lock()
	e.value = ""
	e.mu.Unlock()
	return nil
}

func (e *Element) Focus(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.record("focus", e.selector, "")
	return nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.record("scroll", e.selector, "")
	return nil
}

func (e *Element) WaitActionable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.visible || !e.enabled {
		return driver.ErrLocatorTimeout
	}
	return nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	return e.isVisible(), ctx.Err()
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled, ctx.Err()
}

func (e *Element) Text(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, ctx.Err()
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.attrs[name]
	return v, ok, ctx.Err()
}

func (e *Element) SetFiles(ctx context.Context, paths ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.record("files", e.selector, strings.Join(paths, ","))
	e.mu.Lock()
	e.files = append([]string(nil), paths...)
	e.mu.Unlock()
	if e.onFiles != nil {
		e.onFiles(e.page, paths)
	}
	return nil
}

func (e *Element) SelectOption(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.record("select", e.selector, value)
	e.mu.Lock()
	e.value = value
	e.mu.Unlock()
	if e.onSelect != nil {
		e.onSelect(e.page, value)
	}
	return nil
}

var _ driver.Element = (*Element)(nil)

// Browser is a fake driver.Browser handing out pages from a factory.
type Browser struct {
	mu      sync.Mutex
	factory func() *Page
	pages   []*Page
	err     error
	closed  bool
}

// NewBrowser returns a browser whose pages come from factory.
func NewBrowser(factory func() *Page) *Browser {
	return &Browser{factory: factory}
}

// Fail makes every subsequent NewPage return err.
func (b *Browser) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

// Pages returns every page handed out so far.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Page(nil), b.pages...)
}

func (b *Browser) NewPage(ctx context.Context) (driver.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	p := b.factory()
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

var _ driver.Browser = (*Browser)(nil)
