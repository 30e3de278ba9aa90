package face

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultMinScore is the detector confidence below which a face is ignored.
const DefaultMinScore = 0.5

// Box is a detected face bounding box in frame pixels.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one face found in a frame.
type Detection struct {
	Score      float64    `json:"score"`
	Box        Box        `json:"box"`
	Descriptor Descriptor `json:"descriptor"`
}

// Detector finds the most prominent face in a frame and derives its
// descriptor. It returns nil without error when no face is present.
type Detector interface {
	DetectAndDescribe(ctx context.Context, frame []byte) (*Detection, error)
}

// HTTPDetector delegates detection to an external embedding service.
type HTTPDetector struct {
	BaseURL  string
	MinScore float64
	Models   *ModelLoader
	Client   *http.Client
}

type detectRequest struct {
	Image       string  `json:"image"`
	ModelSource string  `json:"model_source,omitempty"`
	MinScore    float64 `json:"min_score"`
}

type detectResponse struct {
	Detections []Detection `json:"detections"`
}

func (d *HTTPDetector) DetectAndDescribe(ctx context.Context, frame []byte) (*Detection, error) {
	minScore := d.MinScore
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	payload := detectRequest{Image: base64.StdEncoding.EncodeToString(frame), MinScore: minScore}
	if d.Models != nil {
		src, err := d.Models.Load(ctx)
		if err != nil {
			return nil, err
		}
		payload.ModelSource = src
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(d.BaseURL, "/")+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detect: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode detection: %w", err)
	}

	var best *Detection
	for i := range out.Detections {
		det := out.Detections[i]
		if det.Score < minScore {
			continue
		}
		if best == nil || det.Score > best.Score {
			best = &det
		}
	}
	return best, nil
}
