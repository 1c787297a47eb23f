package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	got, err := Load("../../../configs/navigation.yaml")
	if err != nil {
		t.Fatalf("load navigation.yaml: %v", err)
	}
	if diff := cmp.Diff(Defaults(), got); diff != "" {
		t.Fatalf("shipped config drifted from defaults (-want +got):\n%s", diff)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Navigation.StuckThreshold != 2 || got.Segments.MaxActive != 10 {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	p := writeTemp(t, "navigation:\n  stuck_recovery_chance: 1\npath_cache:\n  max_paths: 7\n  slots: [3]\n")
	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Navigation.StuckRecoveryChance != 1 || got.PathCache.MaxPaths != 7 {
		t.Fatalf("override not applied: %+v", got)
	}
	if len(got.PathCache.Slots) != 1 || got.PathCache.Slots[0] != 3 {
		t.Fatalf("slots=%v want [3]", got.PathCache.Slots)
	}
	if got.Navigation.MaxOps != Defaults().Navigation.MaxOps {
		t.Fatalf("untouched key lost its default")
	}
}

func TestLoad_SchemaRejectsUnknownAndOutOfRange(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "navigation:\n  warp_speed: 3\n",
		"active > 10":   "segments:\n  max_active: 11\n",
		"chance > 1":    "navigation:\n  stuck_recovery_chance: 1.5\n",
		"wrong type":    "path_cache:\n  max_paths: many\n",
		"negative slot": "path_cache:\n  slots: [-1]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeTemp(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestValidate_SlotsInsideSlotCount(t *testing.T) {
	tu := Defaults()
	tu.PathCache.Slots = []int{5, 200}
	if err := tu.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err=%v want ErrInvalid", err)
	}
	tu.PathCache.Slots = []int{5, 5}
	if err := tu.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("duplicate slots: err=%v want ErrInvalid", err)
	}
}

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "navigation.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}
