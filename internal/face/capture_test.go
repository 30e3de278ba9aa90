package face

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeCamera struct {
	mu      sync.Mutex
	openErr error
	opened  bool
	closed  int
	frames  int
}

func (c *fakeCamera) Open(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.opened = true
	return nil
}

func (c *fakeCamera) Frame(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	return []byte{byte(c.frames)}, nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = false
	c.closed++
	return nil
}

// scriptedDetector returns results[i] for the i-th frame and nil afterwards.
type scriptedDetector struct {
	results []*Detection
	err     error
	calls   int
}

func (d *scriptedDetector) DetectAndDescribe(context.Context, []byte) (*Detection, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if d.calls-1 < len(d.results) {
		return d.results[d.calls-1], nil
	}
	return nil, nil
}

func newCapture(cam Camera, det Detector, states *[]State) *Capture {
	return &Capture{
		Camera:      cam,
		Detector:    det,
		Matcher:     NewMatcher(DefaultThreshold),
		MaxAttempts: 5,
		Interval:    time.Millisecond,
		OnProgress: func(p Progress) {
			*states = append(*states, p.State)
		},
	}
}

func TestCaptureEnrollReturnsFirstFace(t *testing.T) {
	want := sampleDescriptor(0.4)
	cam := &fakeCamera{}
	det := &scriptedDetector{results: []*Detection{nil, nil, {Score: 0.9, Descriptor: want}}}
	var states []State

	c := newCapture(cam, det, &states)
	got, err := c.Enroll(context.Background())
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if got != want {
		t.Fatalf("unexpected descriptor")
	}
	if det.calls != 3 {
		t.Fatalf("expected 3 detection attempts, got %d", det.calls)
	}
	if cam.closed != 1 || cam.opened {
		t.Fatalf("camera not released: closed=%d open=%v", cam.closed, cam.opened)
	}
	if c.State() != Matched {
		t.Fatalf("expected matched state, got %s", c.State())
	}
	if states[0] != AwaitingCamera || states[1] != Detecting {
		t.Fatalf("unexpected state sequence %v", states)
	}
}

func TestCaptureVerifyRetriesAfterMismatch(t *testing.T) {
	enrolled := sampleDescriptor(0.4)
	stranger := enrolled
	for i := range stranger {
		stranger[i] += 1
	}
	cam := &fakeCamera{}
	det := &scriptedDetector{results: []*Detection{
		{Score: 0.9, Descriptor: stranger},
		{Score: 0.9, Descriptor: enrolled},
	}}
	var states []State

	c := newCapture(cam, det, &states)
	_, match, err := c.Verify(context.Background(), enrolled)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !match.OK || match.Distance != 0 {
		t.Fatalf("unexpected match %+v", match)
	}

	sawNotMatched := false
	for _, s := range states {
		if s == NotMatched {
			sawNotMatched = true
		}
	}
	if !sawNotMatched {
		t.Fatalf("expected a not-matched transition, got %v", states)
	}
	if cam.closed != 1 {
		t.Fatalf("expected camera released once, got %d", cam.closed)
	}
}

func TestCaptureTimesOutAndReleasesCamera(t *testing.T) {
	cam := &fakeCamera{}
	det := &scriptedDetector{}
	var states []State

	c := newCapture(cam, det, &states)
	_, err := c.Enroll(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if det.calls != 5 {
		t.Fatalf("expected attempt budget of 5, got %d", det.calls)
	}
	if cam.closed != 1 {
		t.Fatalf("camera not released on timeout")
	}
	if c.State() != TimedOut {
		t.Fatalf("expected timed out, got %s", c.State())
	}
}

func TestCaptureVerifyReportsNoMatch(t *testing.T) {
	enrolled := sampleDescriptor(0.4)
	stranger := enrolled
	stranger[0] += 3
	det := &scriptedDetector{results: []*Detection{
		{Descriptor: stranger}, {Descriptor: stranger}, {Descriptor: stranger},
		{Descriptor: stranger}, {Descriptor: stranger},
	}}
	var states []State

	c := newCapture(&fakeCamera{}, det, &states)
	if _, _, err := c.Verify(context.Background(), enrolled); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestCaptureCameraFailure(t *testing.T) {
	cam := &fakeCamera{openErr: errors.New("permission denied")}
	var states []State

	c := newCapture(cam, &scriptedDetector{}, &states)
	_, err := c.Enroll(context.Background())
	if !errors.Is(err, ErrCamera) {
		t.Fatalf("expected ErrCamera, got %v", err)
	}
	if c.State() != Failed {
		t.Fatalf("expected failed state, got %s", c.State())
	}
}

func TestCaptureDetectorErrorReleasesCamera(t *testing.T) {
	cam := &fakeCamera{}
	var states []State

	c := newCapture(cam, &scriptedDetector{err: errors.New("boom")}, &states)
	if _, err := c.Enroll(context.Background()); err == nil {
		t.Fatalf("expected detector error")
	}
	if cam.closed != 1 {
		t.Fatalf("camera not released on error")
	}
}

func TestCaptureCancelReleasesCamera(t *testing.T) {
	cam := &fakeCamera{}
	ctx, cancel := context.WithCancel(context.Background())
	var states []State

	c := newCapture(cam, &scriptedDetector{}, &states)
	c.Interval = time.Hour
	c.OnProgress = func(p Progress) {
		if p.State == Detecting && p.Attempt == 1 {
			cancel()
		}
	}

	if _, err := c.Enroll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if cam.closed != 1 {
		t.Fatalf("camera not released on cancel")
	}
}

func TestCaptureProgressPercent(t *testing.T) {
	var percents []int
	c := &Capture{
		Camera:      &fakeCamera{},
		Detector:    &scriptedDetector{},
		MaxAttempts: 2,
		Interval:    time.Millisecond,
		OnProgress:  func(p Progress) { percents = append(percents, p.Percent) },
	}
	_, _ = c.Enroll(context.Background())

	want := []int{10, 30, 55, 80, 80}
	if len(percents) != len(want) {
		t.Fatalf("unexpected progress %v", percents)
	}
	for i := range want {
		if percents[i] != want[i] {
			t.Fatalf("progress %d: want %d got %d (%v)", i, want[i], percents[i], percents)
		}
	}
}
