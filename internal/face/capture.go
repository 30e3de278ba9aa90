package face

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 50
	DefaultInterval    = 500 * time.Millisecond
)

var (
	// ErrTimeout is returned when no face was found within the attempt budget.
	ErrTimeout = errors.New("no face detected in time")
	// ErrNoMatch is returned when faces were seen but none matched.
	ErrNoMatch = errors.New("face not recognized")
)

// State is a step of a capture session.
type State int

const (
	Idle State = iota
	AwaitingCamera
	Detecting
	Matched
	NotMatched
	TimedOut
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingCamera:
		return "awaiting_camera"
	case Detecting:
		return "detecting"
	case Matched:
		return "matched"
	case NotMatched:
		return "not_matched"
	case TimedOut:
		return "timed_out"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Progress is reported on every state change and detection attempt.
type Progress struct {
	State   State
	Attempt int
	Percent int
}

// Capture drives one camera session: acquire the camera, sample frames at a
// fixed spacing and stop on success, exhaustion, cancellation or error.
// The camera is released on every exit path.
type Capture struct {
	Camera      Camera
	Detector    Detector
	Models      *ModelLoader
	Matcher     Matcher
	MaxAttempts int
	Interval    time.Duration
	OnProgress  func(Progress)

	mu    sync.Mutex
	state State
}

// State returns the current state.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Enroll returns the descriptor of the first face detected.
func (c *Capture) Enroll(ctx context.Context) (Descriptor, error) {
	det, _, err := c.run(ctx, nil)
	if err != nil {
		return Descriptor{}, err
	}
	return det.Descriptor, nil
}

// Verify samples frames until one matches a stored descriptor. It returns
// the matching candidate and the match details.
func (c *Capture) Verify(ctx context.Context, stored ...Descriptor) (Descriptor, Match, error) {
	if len(stored) == 0 {
		return Descriptor{}, Match{}, ErrNoDescriptors
	}
	det, match, err := c.run(ctx, stored)
	if err != nil {
		return Descriptor{}, match, err
	}
	return det.Descriptor, match, nil
}

func (c *Capture) run(ctx context.Context, stored []Descriptor) (*Detection, Match, error) {
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	c.transition(AwaitingCamera, 0, 10)
	if c.Models != nil {
		if _, err := c.Models.Load(ctx); err != nil {
			c.transition(Failed, 0, 0)
			return nil, Match{}, err
		}
	}
	if err := c.Camera.Open(ctx); err != nil {
		c.transition(Failed, 0, 0)
		if !errors.Is(err, ErrCamera) {
			err = fmt.Errorf("%w: %v", ErrCamera, err)
		}
		return nil, Match{}, err
	}
	defer c.Camera.Close() // nolint:errcheck

	c.transition(Detecting, 0, 30)

	var (
		sawFace bool
		last    Match
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				c.transition(Failed, attempt-1, 0)
				return nil, last, ctx.Err()
			case <-timer.C:
			}
		}

		frame, err := c.Camera.Frame(ctx)
		if err != nil {
			c.transition(Failed, attempt, 0)
			if ctx.Err() != nil {
				return nil, last, ctx.Err()
			}
			if !errors.Is(err, ErrCamera) {
				err = fmt.Errorf("%w: %v", ErrCamera, err)
			}
			return nil, last, err
		}

		det, err := c.Detector.DetectAndDescribe(ctx, frame)
		if err != nil {
			c.transition(Failed, attempt, 0)
			if ctx.Err() != nil {
				return nil, last, ctx.Err()
			}
			return nil, last, fmt.Errorf("detect face: %w", err)
		}

		percent := 30 + attempt*50/maxAttempts
		if det == nil {
			c.transition(Detecting, attempt, percent)
			continue
		}
		sawFace = true

		if stored == nil {
			c.transition(Matched, attempt, 100)
			return det, Match{}, nil
		}

		match, err := c.Matcher.FindBestMatch(det.Descriptor, stored...)
		if err != nil {
			c.transition(Failed, attempt, 0)
			return nil, Match{}, err
		}
		last = match
		if match.OK {
			c.transition(Matched, attempt, 100)
			return det, match, nil
		}
		c.transition(NotMatched, attempt, percent)
		c.transition(Detecting, attempt, percent)
	}

	c.transition(TimedOut, maxAttempts, 80)
	if sawFace {
		return nil, last, ErrNoMatch
	}
	return nil, last, ErrTimeout
}

func (c *Capture) transition(s State, attempt, percent int) {
	c.mu.Lock()
	c.state = s
	cb := c.OnProgress
	c.mu.Unlock()
	if cb != nil {
		cb(Progress{State: s, Attempt: attempt, Percent: percent})
	}
}
