package ocean

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-ocean/gpu"
)

func sampleWisdom() *Wisdom {
	lib := NewWisdom()
	lib.Store(gpu.CanonicalShape(256, 256), Entry{
		Tuning: Tuning{SharedBanked: true, VectorSize: 2, WorkgroupSizeX: 64, WorkgroupSizeY: 1},
		Cost:   0.00025,
	})
	lib.Store(gpu.CanonicalShape(64, 64), Entry{Tuning: DefaultTuning(), Cost: 0.5})

	return lib
}

func TestExportImportWisdom(t *testing.T) {
	t.Parallel()

	filename := filepath.Join(t.TempDir(), "wisdom.json")
	lib := sampleWisdom()

	if err := ExportWisdom(lib, filename); err != nil {
		t.Fatalf("ExportWisdom: %v", err)
	}

	restored := NewWisdom()
	if err := ImportWisdom(restored, filename); err != nil {
		t.Fatalf("ImportWisdom: %v", err)
	}

	for _, s := range lib.Shapes() {
		want, _ := lib.Lookup(s)
		if got, ok := restored.Lookup(s); !ok || got != want {
			t.Errorf("%v: got %v, %t; want %v", s, got, ok, want)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(filename))
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 1 {
		t.Errorf("export left %d files behind, want 1", len(entries))
	}
}

func TestLoadWisdom_FailuresKeepLibrary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.json")

	if err := os.WriteFile(corrupt, []byte(`{"library":[{"scenario":`), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.json"), corrupt} {
		lib := sampleWisdom()

		if LoadWisdom(lib, path) {
			t.Errorf("%s: LoadWisdom reported success", path)
		}

		if lib.Len() != 2 {
			t.Errorf("%s: Len = %d, want 2", path, lib.Len())
		}

		fallback := Tuning{VectorSize: 4, WorkgroupSizeX: 8, WorkgroupSizeY: 8}
		if got := NewWisdom().LookupOrDefault(gpu.CanonicalShape(8, 8), fallback); got != fallback {
			t.Errorf("LookupOrDefault = %v, want fallback", got)
		}
	}
}

func TestImportWisdomFromString(t *testing.T) {
	t.Parallel()

	const doc = `{"version":1,"library":[{"scenario":{"nx":128,"ny":128,"radix":64,"mode":1,"input_target":0,"output_target":0},
"type":{"fp16":false,"input_fp16":false,"output_fp16":false,"normalize":false},
"performance":{"shared_banked":false,"vector_size":4,"workgroup_size_x":16,"workgroup_size_y":4},"cost":0.001}]}`

	lib := NewWisdom()
	if err := ImportWisdomFromString(lib, doc); err != nil {
		t.Fatal(err)
	}

	want := Tuning{VectorSize: 4, WorkgroupSizeX: 16, WorkgroupSizeY: 4}
	if got := lib.Suggest(gpu.CanonicalShape(128, 128)); got != want {
		t.Errorf("Suggest = %v, want %v", got, want)
	}

	if err := ImportWisdomFromString(lib, "not json"); err == nil {
		t.Error("garbage accepted")
	}

	if lib.Len() != 1 {
		t.Errorf("Len = %d after failed import, want 1", lib.Len())
	}
}
