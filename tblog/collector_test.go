package tblog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

func TestCollectorRecordsScalars(t *testing.T) {
	c := NewCollector()
	c.AddScalar("loss", 1.5, 1)
	c.AddScalar("loss", 1.2, 2)
	c.AddScalar("lr", 0.001, 1)

	points := c.Scalars("loss")
	if len(points) != 2 {
		t.Fatalf("got %d points for loss, want 2", len(points))
	}
	if points[0].Step != 1 || points[0].Value != 1.5 {
		t.Errorf("first point = %+v, want step 1 value 1.5", points[0])
	}
	if points[1].Step != 2 || points[1].Value != 1.2 {
		t.Errorf("second point = %+v, want step 2 value 1.2", points[1])
	}

	tags := c.ScalarTags()
	if len(tags) != 2 {
		t.Errorf("got %d tags, want 2", len(tags))
	}
}

func TestCollectorRecordsImagesAndHistograms(t *testing.T) {
	c := NewCollector()
	img, err := tensor.Zeros([]int{3, 4, 4}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	c.AddImage("images/gen", img, 10)
	c.AddHistogram("errors", []float64{1, 2, 3}, 5)

	if got := c.Images("images/gen"); len(got) != 1 || got[0].Step != 10 {
		t.Errorf("images = %+v, want one entry at step 10", got)
	}
	if got := c.Histograms("errors"); len(got) != 1 || len(got[0].Values) != 3 {
		t.Errorf("histograms = %+v, want one entry with 3 values", got)
	}
}

func TestCollectorConcurrentWrites(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			c.AddScalar("loss", float64(step), step)
		}(i)
	}
	wg.Wait()
	if got := len(c.Scalars("loss")); got != 8 {
		t.Errorf("got %d points, want 8", got)
	}
}

func TestSidecarSinkPostsEvents(t *testing.T) {
	var mu sync.Mutex
	var received []event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var ev event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("failed to decode event: %v", err)
		}
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultSidecarConfig()
	cfg.BaseURL = server.URL
	sink := NewSidecarSink(cfg)

	sink.AddScalar("G/adversarial", 0.7, 3)
	sink.AddHistogram("metric/cri_error_hist", []float64{1, 2}, 1)

	if err := sink.LastError(); err != nil {
		t.Fatalf("sidecar reported error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("server received %d events, want 2", len(received))
	}
	if received[0].Tag != "G/adversarial" || received[0].Step != 3 {
		t.Errorf("first event = %+v", received[0])
	}
}
