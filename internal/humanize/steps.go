package humanize

import (
	"context"
	"fmt"
	"time"

	"clinicprobe/internal/driver"
)

// Kind is the kind of an interaction step.
type Kind string

const (
	KindHover       Kind = "hover"
	KindClick       Kind = "click"
	KindDoubleClick Kind = "double-click"
	KindType        Kind = "type"
	KindScroll      Kind = "scroll"
	KindKeys        Kind = "key-press"
	KindRapidClick  Kind = "rapid-click"
	KindSelect      Kind = "select"
	KindUpload      Kind = "upload"
	KindPause       Kind = "pause"
)

// Step is one declarative interaction.
type Step struct {
	Kind   Kind
	Target Target
	Text   string       // typed text, selected value, or uploaded path
	Keys   []driver.Key // for KindKeys
	Count  int          // for KindRapidClick

	// Pacing overrides the simulator timing for this step only.
	Pacing *Pacing
}

// Pacing is a per-step timing override. Zero fields keep the simulator's
// value; a delay range is taken as a pair.
type Pacing struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	TypingDelay time.Duration
}

func (p *Pacing) apply(t Timing) Timing {
	if p == nil {
		return t
	}
	if p.MinDelay > 0 || p.MaxDelay > 0 {
		t.MinDelay, t.MaxDelay = p.MinDelay, p.MaxDelay
		if t.MaxDelay < t.MinDelay {
			t.MaxDelay = t.MinDelay
		}
	}
	if p.TypingDelay > 0 {
		t.TypingDelay = p.TypingDelay
	}
	return t
}

// paced returns a view of s running with timing t. The view shares the
// page, sleeper and random stream with s.
func (s *Simulator) paced(t Timing) *Simulator {
	view := *s
	view.timing = t
	return &view
}

func (st Step) String() string {
	switch st.Kind {
	case KindKeys:
		return fmt.Sprintf("%s %v", st.Kind, st.Keys)
	case KindPause:
		return string(st.Kind)
	case KindRapidClick:
		return fmt.Sprintf("%s %s x%d", st.Kind, st.Target, st.Count)
	}
	return fmt.Sprintf("%s %s", st.Kind, st.Target)
}

// Perform executes a single step.
func (s *Simulator) Perform(ctx context.Context, st Step) error {
	if st.Pacing != nil {
		s = s.paced(st.Pacing.apply(s.timing))
	}
	switch st.Kind {
	case KindHover:
		return s.HoverThenAct(ctx, st.Target, func(context.Context, driver.Element) error { return nil })
	case KindClick:
		return s.Click(ctx, st.Target)
	case KindDoubleClick:
		return s.DoubleClick(ctx, st.Target)
	case KindType:
		return s.TypeText(ctx, st.Target, st.Text)
	case KindScroll:
		return s.ScrollTo(ctx, st.Target)
	case KindKeys:
		return s.KeyboardWalk(ctx, st.Keys...)
	case KindSelect:
		return s.Select(ctx, st.Target, st.Text)
	case KindUpload:
		return s.Upload(ctx, st.Target, st.Text)
	case KindPause:
		return s.Pause(ctx)
	case KindRapidClick:
		n := st.Count
		if n <= 0 {
			n = 10
		}
		report, err := s.RapidRepeat(ctx, st.Target, n, ClickAction)
		if err != nil {
			return err
		}
		if report.Failures == report.Attempts && report.Attempts > 0 {
			return fmt.Errorf("all %d rapid clicks on %s failed: %s", report.Attempts, st.Target, report.Errors[0])
		}
		return s.Responsive(ctx)
	default:
		return fmt.Errorf("unknown step kind %q", st.Kind)
	}
}

// Replay performs steps in order and stops at the first error.
func (s *Simulator) Replay(ctx context.Context, steps []Step) error {
	for i, st := range steps {
		if err := s.Perform(ctx, st); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st, err)
		}
	}
	return nil
}
