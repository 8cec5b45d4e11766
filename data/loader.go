// Package data reads the flat int32 token file format: a sequence of
// token ids read in windows of B*T+1 tokens, the extra trailing token
// giving the one-step shift between inputs and teacher-forcing targets.
package data

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Loader streams fixed-size (B,T) batches out of a token file, wrapping
// back to the start on EOF rather than signalling end-of-dataset.
type Loader struct {
	f            *os.File
	path         string
	B, T         int
	fileSize     int64
	position     int64
	batch        []int32
}

// Open opens path and validates it holds at least one window of B*T+1
// tokens.
func Open(path string, B, T int) (*Loader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("data: stat %s: %w", path, err)
	}
	required := int64(B*T+1) * 4
	if info.Size() < required {
		f.Close()
		return nil, &TokenFileTooSmallError{Path: path, Size: info.Size(), Required: required}
	}
	return &Loader{
		f:        f,
		path:     path,
		B:        B,
		T:        T,
		fileSize: info.Size(),
		batch:    make([]int32, B*T+1),
	}, nil
}

// Close releases the underlying file handle.
func (l *Loader) Close() error { return l.f.Close() }

// Reset rewinds the cursor to the start of the file, for validation
// passes that re-read the same prefix each time.
func (l *Loader) Reset() { l.position = 0 }

// NumBatches returns how many disjoint (B,T) windows fit in the file,
// floor-divided (the trailing partial window, if any, is never read).
func (l *Loader) NumBatches() int {
	windowBytes := int64(l.B*l.T) * 4
	return int(l.fileSize / windowBytes)
}

// NextBatch reads the next B*T+1 tokens, wrapping to the start of the
// file if the read would run past the end, and returns inputs and
// targets as (B,T) token ids shifted by one position. Both slices alias
// the Loader's internal buffer and are only valid until the next call.
func (l *Loader) NextBatch() (inputs, targets []int32, err error) {
	windowBytes := int64(l.B*l.T+1) * 4
	if l.position+windowBytes > l.fileSize {
		l.position = 0
	}
	if _, err := l.f.Seek(l.position, 0); err != nil {
		return nil, nil, fmt.Errorf("data: seek %s: %w", l.path, err)
	}
	if err := binary.Read(l.f, binary.LittleEndian, l.batch); err != nil {
		return nil, nil, fmt.Errorf("data: read batch from %s: %w", l.path, err)
	}
	l.position += int64(l.B*l.T) * 4

	inputs = l.batch[:l.B*l.T]
	targets = l.batch[1 : l.B*l.T+1]
	return inputs, targets, nil
}
