package face

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrModelsUnavailable is returned when no source serves every model.
var ErrModelsUnavailable = errors.New("face models unavailable from every source")

// ModelManifests are the weight manifests required before detection can start:
// tiny face detector, 68-point landmarks and the recognition net.
var ModelManifests = []string{
	"tiny_face_detector_model-weights_manifest.json",
	"face_landmark_68_model-weights_manifest.json",
	"face_recognition_model-weights_manifest.json",
}

// ModelLoader locates a source serving all face models. Sources are URLs or
// local directories and are tried in order, once each per Load call.
type ModelLoader struct {
	sources []string
	client  *http.Client
	logger  *slog.Logger

	mu     sync.Mutex
	loaded string
}

// NewModelLoader constructs a loader over the given sources.
func NewModelLoader(sources []string, client *http.Client, logger *slog.Logger) *ModelLoader {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelLoader{sources: append([]string(nil), sources...), client: client, logger: logger}
}

// Load returns the first source that serves every manifest. Once a source
// has been found later calls return it without probing again; concurrent
// callers wait on the same attempt.
func (l *ModelLoader) Load(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded != "" {
		return l.loaded, nil
	}

	for _, src := range l.sources {
		if err := l.probe(ctx, src); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			l.logger.Warn("face model source unavailable", slog.String("source", src), slog.String("error", err.Error()))
			continue
		}
		l.loaded = src
		l.logger.Info("face models loaded", slog.String("source", src))
		return src, nil
	}
	return "", ErrModelsUnavailable
}

// Loaded reports the source in use, if any.
func (l *ModelLoader) Loaded() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded, l.loaded != ""
}

// Sources returns the configured candidate list.
func (l *ModelLoader) Sources() []string {
	return append([]string(nil), l.sources...)
}

func (l *ModelLoader) probe(ctx context.Context, src string) error {
	remote := strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
	for _, manifest := range ModelManifests {
		if remote {
			if err := l.probeURL(ctx, strings.TrimRight(src, "/")+"/"+manifest); err != nil {
				return err
			}
			continue
		}
		if _, err := os.Stat(filepath.Join(src, manifest)); err != nil {
			return err
		}
	}
	return nil
}

func (l *ModelLoader) probeURL(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return nil
}
