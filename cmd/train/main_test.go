package main

import (
	"strings"
	"testing"

	"github.com/sslstudent/3dprint-image-translation/training"
)

func TestRunRejectsNonPositiveEvalFreq(t *testing.T) {
	cfg := training.DefaultConfig()
	for _, freq := range []int{0, -1} {
		err := run(cfg, "src", "dst", "cond.csv", "src", "dst", "cond.csv",
			4, 2e-4, freq, "", 1)
		if err == nil {
			t.Fatalf("eval-freq %d: expected error", freq)
		}
		if !strings.Contains(err.Error(), "eval-freq") {
			t.Errorf("eval-freq %d: error %q does not name the flag", freq, err)
		}
	}
}
