package output

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestAppendAndReadArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")

	recs, err := ReadArchive(path)
	if err != nil || len(recs) != 0 {
		t.Fatalf("missing archive: recs=%v err=%v", recs, err)
	}

	seed := int64(7)
	rec := NewArchiveRecord(sampleReport(), ReportMetadata{Tags: []string{"wasm"}, ShuffleSeed: &seed})
	for i := 0; i < 2; i++ {
		if err := AppendArchive(path, rec); err != nil {
			t.Fatalf("AppendArchive: %v", err)
		}
	}

	recs, err = ReadArchive(path)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	got := recs[1]
	if got.RunID != "01J0000000000000000000TEST" || got.ShuffleSeed == nil || *got.ShuffleSeed != 7 {
		t.Errorf("record = %+v", got)
	}
	if m := got.Metrics["Sort-Floats-wasm"]; len(m.Values) != 2 {
		t.Errorf("metrics = %+v", got.Metrics)
	}
}

func TestAppendArchiveConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	rec := NewArchiveRecord(sampleReport(), ReportMetadata{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := AppendArchive(path, rec); err != nil {
				t.Errorf("AppendArchive: %v", err)
			}
		}()
	}
	wg.Wait()

	recs, err := ReadArchive(path)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(recs) != 8 {
		t.Errorf("records = %d, want 8", len(recs))
	}
}

func TestReadArchiveCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	if err := os.WriteFile(path, []byte("{\"run_id\":\"a\"}\nnot json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadArchive(path); err == nil {
		t.Fatal("expected error for corrupt line")
	}
}
