package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const fileDateLayout = "2006-01-02"

// FileWriter appends JSON log lines to one file per day under a fixed
// directory, keeping a "latest" symlink pointed at the current file.
type FileWriter struct {
	dir string

	mu   sync.Mutex
	file *os.File
	day  string
}

// NewFileWriter creates the directory if needed and opens today's file.
func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating debug log dir: %w", err)
	}
	fw := &FileWriter{dir: dir}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if err := fw.openLocked(time.Now().Format(fileDateLayout)); err != nil {
		return nil, err
	}
	return fw, nil
}

// Write implements io.Writer, rolling over to a new file at midnight.
func (fw *FileWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if day := time.Now().Format(fileDateLayout); day != fw.day {
		if err := fw.openLocked(day); err != nil {
			return 0, err
		}
	}
	return fw.file.Write(p)
}

// Close closes the current file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.file == nil {
		return nil
	}
	err := fw.file.Close()
	fw.file = nil
	return err
}

func (fw *FileWriter) openLocked(day string) error {
	if fw.file != nil {
		fw.file.Close()
	}

	name := day + ".jsonl"
	f, err := os.OpenFile(filepath.Join(fw.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	fw.file = f
	fw.day = day

	// Repoint "latest" through a rename so readers never see a dangling
	// link. Failure here is tolerable; the dated file still works.
	link := filepath.Join(fw.dir, "latest")
	tmp := link + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(name, tmp); err == nil {
		_ = os.Rename(tmp, link)
	}
	return nil
}

// Cleanup deletes dated log files older than retentionDays. Files that do
// not follow the YYYY-MM-DD.jsonl scheme are left alone.
func Cleanup(dir string, retentionDays int) {
	matches, err := filepath.Glob(filepath.Join(dir, "????-??-??.jsonl"))
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, path := range matches {
		day, err := time.Parse(fileDateLayout, filepath.Base(path)[:len(fileDateLayout)])
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			os.Remove(path)
		}
	}
}
