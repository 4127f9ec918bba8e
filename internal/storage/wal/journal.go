package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Action is the kind of mutation recorded in the journal
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Record is one journal entry. Data holds the XML element of the entity
// after the mutation; it is empty for deletes.
type Record struct {
	Seq     uint64    `json:"seq"`
	Action  Action    `json:"action"`
	Time    time.Time `json:"time"`
	Session string    `json:"session,omitempty"`
	ID      string    `json:"id"`
	Data    string    `json:"data,omitempty"`
}

// Journal is the durable log of mutations not yet covered by a snapshot.
type Journal interface {
	// Append durably records rec
	Append(rec Record) error
	// Load returns all records in append order
	Load() ([]Record, error)
	// Truncate drops all records; called after a snapshot was written
	Truncate() error
	Close() error
}

// ErrCorruptJournal is returned by Load when a record other than the last
// one cannot be decoded.
var ErrCorruptJournal = errors.New("corrupt journal")

// FileJournal is a Journal stored as JSON lines in one file.
type FileJournal struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	sync   bool
	logger *slog.Logger
}

// OpenFileJournal opens or creates the journal at path. If syncWrites is set every
// append is followed by fsync.
func OpenFileJournal(path string, syncWrites bool, logger *slog.Logger) (*FileJournal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &FileJournal{
		path:   path,
		file:   f,
		sync:   syncWrites,
		logger: logger.With("journal", path),
	}, nil
}

// Path returns the file path of the journal
func (j *FileJournal) Path() string {
	return j.path
}

// Append writes rec as one line
func (j *FileJournal) Append(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode journal record: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(line); err != nil {
		return fmt.Errorf("failed to write journal record: %w", err)
	}
	if j.sync {
		if err := j.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync journal: %w", err)
		}
	}
	return nil
}

// Load reads all records. A torn last line, left by a crash during an
// append, is skipped and cut off the file so later appends start on a
// clean line. Any other undecodable line fails the load.
func (j *FileJournal) Load() ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	var (
		records []Record
		offset  int64
		lineNo  int
	)
	reader := bufio.NewReader(j.file)
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			complete := line[len(line)-1] == '\n'
			trimmed := bytes.TrimSpace(line)

			var (
				rec       Record
				decodeErr error
			)
			if len(trimmed) > 0 {
				decodeErr = json.Unmarshal(trimmed, &rec)
			}

			if decodeErr != nil || (!complete && len(trimmed) > 0) {
				atEnd := readErr != nil || isEOF(reader)
				if !atEnd {
					return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptJournal, lineNo, decodeErr)
				}
				if decodeErr == nil {
					// Complete record that only misses its newline
					records = append(records, rec)
					offset += int64(len(line))
					if _, err := j.file.Write([]byte{'\n'}); err != nil {
						return nil, fmt.Errorf("failed to repair journal: %w", err)
					}
					break
				}
				j.logger.Warn("Skipping torn journal record", "line", lineNo, "error", decodeErr)
				if err := j.file.Truncate(offset); err != nil {
					return nil, fmt.Errorf("failed to repair journal: %w", err)
				}
				break
			}

			if len(trimmed) > 0 {
				records = append(records, rec)
			}
			offset += int64(len(line))
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read journal: %w", readErr)
		}
	}

	return records, nil
}

func isEOF(r *bufio.Reader) bool {
	_, err := r.Peek(1)
	return err == io.EOF
}

// Truncate empties the journal
func (j *FileJournal) Truncate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate journal: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	return nil
}

// Close closes the journal file
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// MemoryJournal keeps records in memory. FailAppend makes appends fail, which
// lets callers exercise rollback paths.
type MemoryJournal struct {
	mu         sync.Mutex
	records    []Record
	failAppend error
	failAfter  int
	appends    int
}

// NewMemoryJournal creates an empty in-memory journal
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// FailAppend makes every following append return err; nil restores normal operation
func (j *MemoryJournal) FailAppend(err error) {
	j.mu.Lock()
	j.failAppend = err
	j.failAfter = 0
	j.mu.Unlock()
}

// FailAfter lets the next n appends succeed and makes every append after
// them return err
func (j *MemoryJournal) FailAfter(n int, err error) {
	j.mu.Lock()
	j.failAppend = err
	j.failAfter = n
	j.mu.Unlock()
}

// Appends returns the number of successful appends
func (j *MemoryJournal) Appends() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.appends
}

func (j *MemoryJournal) Append(rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failAppend != nil {
		if j.failAfter == 0 {
			return j.failAppend
		}
		j.failAfter--
	}
	j.records = append(j.records, rec)
	j.appends++
	return nil
}

func (j *MemoryJournal) Load() ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Record(nil), j.records...), nil
}

func (j *MemoryJournal) Truncate() error {
	j.mu.Lock()
	j.records = nil
	j.mu.Unlock()
	return nil
}

func (j *MemoryJournal) Close() error { return nil }
