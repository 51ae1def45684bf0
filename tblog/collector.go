package tblog

import (
	"sync"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// ScalarPoint is one logged scalar value.
type ScalarPoint struct {
	Step  int
	Value float64
}

// ImagePoint is one logged image grid.
type ImagePoint struct {
	Step  int
	Image *tensor.Tensor
}

// HistogramPoint is one logged value distribution.
type HistogramPoint struct {
	Step   int
	Values []float64
}

// Collector is an in-memory Sink. It keeps everything logged during a run,
// in logging order per tag, for later inspection or export.
type Collector struct {
	mu         sync.Mutex
	scalars    map[string][]ScalarPoint
	images     map[string][]ImagePoint
	histograms map[string][]HistogramPoint
}

func NewCollector() *Collector {
	return &Collector{
		scalars:    make(map[string][]ScalarPoint),
		images:     make(map[string][]ImagePoint),
		histograms: make(map[string][]HistogramPoint),
	}
}

func (c *Collector) AddScalar(tag string, value float64, step int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scalars[tag] = append(c.scalars[tag], ScalarPoint{Step: step, Value: value})
}

func (c *Collector) AddImage(tag string, image *tensor.Tensor, step int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[tag] = append(c.images[tag], ImagePoint{Step: step, Image: image})
}

func (c *Collector) AddHistogram(tag string, values []float64, step int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histograms[tag] = append(c.histograms[tag], HistogramPoint{Step: step, Values: values})
}

// Scalars returns all scalar points logged under a tag, in logging order.
func (c *Collector) Scalars(tag string) []ScalarPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scalars[tag]
}

// Images returns all image points logged under a tag, in logging order.
func (c *Collector) Images(tag string) []ImagePoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images[tag]
}

// Histograms returns all histogram points logged under a tag.
func (c *Collector) Histograms(tag string) []HistogramPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.histograms[tag]
}

// ScalarTags returns the set of tags that received at least one scalar.
func (c *Collector) ScalarTags() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	tags := make([]string, 0, len(c.scalars))
	for tag := range c.scalars {
		tags = append(tags, tag)
	}
	return tags
}
