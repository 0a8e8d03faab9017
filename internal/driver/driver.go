// Package driver defines the browser capability the harness consumes and a
// go-rod implementation of it. Everything above this package talks to pages
// and elements only through these interfaces.
package driver

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrLocatorTimeout is returned when a selector does not resolve to an
	// actionable element within its bound.
	ErrLocatorTimeout = errors.New("locator timeout")

	// ErrUnavailable is returned when the browser cannot be started or has
	// gone away. It aborts a whole suite run.
	ErrUnavailable = errors.New("driver unavailable")
)

// Key names a keyboard key the harness can press.
type Key string

const (
	KeyTab        Key = "Tab"
	KeyEnter      Key = "Enter"
	KeyEscape     Key = "Escape"
	KeySpace      Key = "Space"
	KeyBackspace  Key = "Backspace"
	KeyArrowUp    Key = "ArrowUp"
	KeyArrowDown  Key = "ArrowDown"
	KeyArrowLeft  Key = "ArrowLeft"
	KeyArrowRight Key = "ArrowRight"
)

// ElementState is a state WaitFor can block on.
type ElementState string

const (
	StateAttached ElementState = "attached"
	StateVisible  ElementState = "visible"
	StateHidden   ElementState = "hidden"
)

// DialogKind is the kind of a native browser dialog.
type DialogKind string

const (
	DialogAlert        DialogKind = "alert"
	DialogConfirm      DialogKind = "confirm"
	DialogPrompt       DialogKind = "prompt"
	DialogBeforeUnload DialogKind = "beforeunload"
)

// Dialog describes a native dialog the page opened.
type Dialog struct {
	Kind    DialogKind `json:"kind"`
	Message string     `json:"message"`
	URL     string     `json:"url,omitempty"`
	At      time.Time  `json:"at"`
}

// ConsoleMessage is one console API call made by the page.
type ConsoleMessage struct {
	Level string    `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Viewport is a page size in CSS pixels.
type Viewport struct {
	Name   string `json:"name,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mobile bool   `json:"mobile,omitempty"`
}

// Browser hands out pages, each in its own isolated browsing context.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one browsing context owned by exactly one scenario.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	// Locate resolves selector to an element, waiting at most timeout.
	// It fails with ErrLocatorTimeout.
	Locate(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	// WaitFor blocks until selector reaches state. For StateHidden the
	// returned element is nil.
	WaitFor(ctx context.Context, selector string, state ElementState, timeout time.Duration) (Element, error)
	// Query checks presence immediately, without waiting.
	Query(ctx context.Context, selector string) (Element, bool, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	Press(ctx context.Context, key Key) error
	SetViewport(ctx context.Context, vp Viewport) error
	SetOffline(ctx context.Context, offline bool) error

	// OnDialog dismisses every dialog the page opens and reports it to
	// handler until stop is called.
	OnDialog(handler func(Dialog)) (stop func())
	OnConsole(handler func(ConsoleMessage)) (stop func())

	Screenshot(ctx context.Context, path string) error
	Evaluate(ctx context.Context, js string, args ...any) (json.RawMessage, error)
	Title(ctx context.Context) (string, error)

	Close() error
}

// Element is a resolved DOM element.
type Element interface {
	Hover(ctx context.Context) error
	Click(ctx context.Context) error
	DoubleClick(ctx context.Context) error
	// InsertText inserts text at the caret as a single input event.
	InsertText(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	Focus(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error
	// WaitActionable waits until the element is visible and enabled.
	WaitActionable(ctx context.Context) error

	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)

	SetFiles(ctx context.Context, paths ...string) error
	SelectOption(ctx context.Context, value string) error
}
