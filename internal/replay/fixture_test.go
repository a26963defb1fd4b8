package replay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// #region fixture-tests

// TestFixtures replays every fixture under testdata and requires the scored
// rows to match exactly. Changes to tokenizer bins, mining order or scoring
// arithmetic show up here first.
func TestFixtures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("no fixtures found")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			f, err := LoadFixture(path)
			if err != nil {
				t.Fatalf("LoadFixture: %v", err)
			}

			res, divs, err := RunFixture(context.Background(), f)
			if err != nil {
				t.Fatalf("RunFixture: %v", err)
			}
			for _, d := range divs {
				t.Errorf("%s %s: want %s, got %s", d.Pattern, d.Field, d.Want, d.Got)
			}
			if !res.Surface.Converged {
				t.Errorf("surface did not converge after %d iterations", res.Surface.Iterations)
			}
			if !res.Eval.Passed {
				t.Errorf("surface check failed: %s", res.Eval.Reason)
			}
		})
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join("testdata", "absent.json")); err == nil {
		t.Fatal("expected error for missing fixture")
	}
}

func TestLoadFixtureRejectsBadSequences(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"unknown token":   {`{"sequences":[{"tokens":["PSF","XYZ"],"cells":[{"gx":0,"gy":0},{"gx":0,"gy":0}]}]}`, "XYZ"},
		"cell mismatch":   {`{"sequences":[{"tokens":["PSF","SHOT"],"cells":[{"gx":0,"gy":0}]}]}`, "2 tokens but 1 cells"},
		"expected label":  {`{"expected":[{"pattern":["PSF","SHOOT"]}]}`, "SHOOT"},
		"marker on carry": {`{"sequences":[{"tokens":["KSFX"],"cells":[{"gx":0,"gy":0}]}]}`, "KSFX"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.json")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := LoadFixture(path)
			if err == nil {
				t.Fatal("expected load error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestToReplayConfigOverlaysDefaults(t *testing.T) {
	fc := FixtureConfig{NX: 2, MaxLength: 3}
	c := fc.ToReplayConfig()

	def := DefaultReplayConfig()
	if c.XT.NX != 2 || c.XT.NY != def.XT.NY {
		t.Errorf("expected grid 2x%d, got %dx%d", def.XT.NY, c.XT.NX, c.XT.NY)
	}
	if c.Mining.MaxLength != 3 || c.Mining.MinSupportRatio != def.Mining.MinSupportRatio {
		t.Errorf("unexpected mining options %+v", c.Mining)
	}
	if c.XT.Gamma != def.XT.Gamma {
		t.Errorf("expected default gamma, got %v", c.XT.Gamma)
	}
}

// #endregion fixture-tests
