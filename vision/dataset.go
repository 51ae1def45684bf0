package vision

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// Sample is one dataset entry. Target is nil for generation-only datasets.
type Sample struct {
	Source         *tensor.Tensor // [C,H,W] in [-1,1]
	Target         *tensor.Tensor // [C,H,W] in [-1,1], or nil
	Condition      *tensor.Tensor // per-sample condition vector
	SourceFilename string
}

// PairedDataset is an ordered collection of samples. Iteration order is the
// insertion order and never changes; per-sample evaluation results and
// generation filenames rely on it.
type PairedDataset struct {
	samples []Sample
}

func NewPairedDataset(samples []Sample) (*PairedDataset, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("dataset: no samples")
	}
	for i, s := range samples {
		if s.Source == nil {
			return nil, fmt.Errorf("dataset: sample %d has no source image", i)
		}
		if s.Condition == nil {
			return nil, fmt.Errorf("dataset: sample %d has no condition", i)
		}
	}
	return &PairedDataset{samples: samples}, nil
}

func (d *PairedDataset) Len() int {
	return len(d.samples)
}

func (d *PairedDataset) Get(idx int) (Sample, error) {
	if idx < 0 || idx >= len(d.samples) {
		return Sample{}, fmt.Errorf("dataset: index %d out of range [0, %d)", idx, len(d.samples))
	}
	return d.samples[idx], nil
}

// SourceFilenames returns the original source filenames in dataset order.
func (d *PairedDataset) SourceFilenames() []string {
	names := make([]string, len(d.samples))
	for i, s := range d.samples {
		names[i] = s.SourceFilename
	}
	return names
}

// LoadPairedDirs builds a dataset from two directories of equally named
// image files plus a condition file. Each line of the condition file is
// "filename,classID". Files are loaded in sorted filename order; decoding
// runs in parallel but placement in the dataset is positional, so order
// stays deterministic.
func LoadPairedDirs(srcDir, dstDir, condPath string, device tensor.DeviceType) (*PairedDataset, error) {
	conds, err := readConditionFile(condPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no images found in %s", srcDir)
	}

	samples := make([]Sample, len(names))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			classID, ok := conds[name]
			if !ok {
				return fmt.Errorf("no condition entry for %s", name)
			}
			src, err := decodeFile(filepath.Join(srcDir, name), device)
			if err != nil {
				return err
			}
			var dst *tensor.Tensor
			if dstDir != "" {
				if dst, err = decodeFile(filepath.Join(dstDir, name), device); err != nil {
					return err
				}
			}
			cond, err := tensor.NewTensor([]int{1}, tensor.Float32, device, []float32{float32(classID)})
			if err != nil {
				return err
			}
			samples[i] = Sample{
				Source:         src,
				Target:         dst,
				Condition:      cond,
				SourceFilename: filepath.Join(srcDir, name),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewPairedDataset(samples)
}

func decodeFile(path string, device tensor.DeviceType) (*tensor.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	t, err := DecodeImage(f, device)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return t, nil
}

func readConditionFile(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open condition file: %w", err)
	}
	defer f.Close()

	conds := make(map[string]int)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.SplitN(text, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("condition file line %d: want \"filename,class\", got %q", line, text)
		}
		classID, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("condition file line %d: bad class id: %v", line, err)
		}
		conds[strings.TrimSpace(parts[0])] = classID
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read condition file: %w", err)
	}
	return conds, nil
}
