package face

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrCamera wraps every failure to acquire or read from a camera.
var ErrCamera = errors.New("camera unavailable")

// Camera is a frame source. Close must be safe to call more than once.
type Camera interface {
	Open(ctx context.Context) error
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

var frameExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// DirCamera replays the images of a directory in name order, looping
// when it reaches the end.
type DirCamera struct {
	Dir string

	mu     sync.Mutex
	frames []string
	next   int
	open   bool
}

func (c *DirCamera) Open(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCamera, err)
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		frames = append(frames, filepath.Join(c.Dir, e.Name()))
	}
	if len(frames) == 0 {
		return fmt.Errorf("%w: no frames in %s", ErrCamera, c.Dir)
	}
	sort.Strings(frames)
	c.frames, c.next, c.open = frames, 0, true
	return nil
}

func (c *DirCamera) Frame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, fmt.Errorf("%w: not open", ErrCamera)
	}
	path := c.frames[c.next%len(c.frames)]
	c.next++
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCamera, err)
	}
	return data, nil
}

func (c *DirCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.frames = nil
	return nil
}

// IsOpen reports whether the camera is currently held.
func (c *DirCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
