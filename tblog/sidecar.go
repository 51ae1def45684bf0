package tblog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// SidecarConfig configures the HTTP telemetry emitter.
type SidecarConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
	Enabled bool          `json:"enabled"`
}

// DefaultSidecarConfig returns the default sidecar endpoint configuration.
func DefaultSidecarConfig() SidecarConfig {
	return SidecarConfig{
		BaseURL: "http://localhost:8080",
		Timeout: 10 * time.Second,
		Enabled: true,
	}
}

// event is the universal JSON payload for the sidecar dashboard.
type event struct {
	Kind      string    `json:"kind"` // "scalar", "image", "histogram"
	Tag       string    `json:"tag"`
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`

	Value  float64   `json:"value,omitempty"`
	Shape  []int     `json:"shape,omitempty"`
	Pixels []float32 `json:"pixels,omitempty"`
	Values []float64 `json:"values,omitempty"`
}

// SidecarSink posts telemetry to an external dashboard process. Delivery is
// best effort: the trainer must not fail because the dashboard is down, so
// transport errors are swallowed after recording the last one.
type SidecarSink struct {
	baseURL    string
	httpClient *http.Client
	enabled    bool
	lastErr    error
}

func NewSidecarSink(config SidecarConfig) *SidecarSink {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &SidecarSink{
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: config.Timeout},
		enabled:    config.Enabled,
	}
}

func (s *SidecarSink) AddScalar(tag string, value float64, step int) {
	s.post(event{Kind: "scalar", Tag: tag, Step: step, Timestamp: time.Now(), Value: value})
}

func (s *SidecarSink) AddImage(tag string, image *tensor.Tensor, step int) {
	s.post(event{
		Kind:      "image",
		Tag:       tag,
		Step:      step,
		Timestamp: time.Now(),
		Shape:     image.Shape,
		Pixels:    image.Data,
	})
}

func (s *SidecarSink) AddHistogram(tag string, values []float64, step int) {
	s.post(event{Kind: "histogram", Tag: tag, Step: step, Timestamp: time.Now(), Values: values})
}

// LastError returns the most recent delivery failure, if any.
func (s *SidecarSink) LastError() error {
	return s.lastErr
}

func (s *SidecarSink) post(ev event) {
	if !s.enabled {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.lastErr = fmt.Errorf("failed to marshal %s event: %v", ev.Kind, err)
		return
	}
	resp, err := s.httpClient.Post(s.baseURL+"/api/events", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		s.lastErr = fmt.Errorf("failed to post %s event: %v", ev.Kind, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.lastErr = fmt.Errorf("sidecar returned status %d for %s event", resp.StatusCode, ev.Kind)
		return
	}
	s.lastErr = nil
}
