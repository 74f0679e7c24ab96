package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/pagebench/internal/metrics"
)

// ArchiveRecord is one line of the results archive.
type ArchiveRecord struct {
	Time        time.Time                 `json:"time"`
	RunID       string                    `json:"run_id"`
	Iterations  int                       `json:"iterations"`
	Tags        []string                  `json:"tags,omitempty"`
	Suites      []string                  `json:"suites,omitempty"`
	ShuffleSeed *int64                    `json:"shuffle_seed,omitempty"`
	Metrics     map[string]metrics.Metric `json:"metrics"`
}

// NewArchiveRecord captures report and the settings that produced it.
func NewArchiveRecord(report *metrics.Report, meta ReportMetadata) ArchiveRecord {
	return ArchiveRecord{
		Time:        time.Now().UTC(),
		RunID:       report.RunID,
		Iterations:  report.Iterations,
		Tags:        meta.Tags,
		Suites:      meta.Suites,
		ShuffleSeed: meta.ShuffleSeed,
		Metrics:     report.Metrics(),
	}
}

// AppendArchive appends rec as one JSON line to the archive at path. A lock
// file next to the archive serialises concurrent writers.
func AppendArchive(path string, rec ArchiveRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode archive record: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock archive: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append archive: %w", err)
	}
	return f.Close()
}

// ReadArchive loads every record in the archive at path. A missing archive
// holds no records.
func ReadArchive(path string) ([]ArchiveRecord, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock archive: %w", err)
	}
	defer lock.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var out []ArchiveRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for n := 1; scanner.Scan(); n++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec ArchiveRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("archive line %d: %w", n, err)
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}
