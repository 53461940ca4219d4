package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalFile is a file on disk. It can be sliced into chunks.
type LocalFile struct {
	f    *os.File
	name string
	size int64
}

// Open opens path for upload.
func Open(path string) (*LocalFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat upload file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("upload file %s is a directory", path)
	}
	return &LocalFile{f: f, name: filepath.Base(path), size: info.Size()}, nil
}

func (l *LocalFile) Read(p []byte) (int, error)              { return l.f.Read(p) }
func (l *LocalFile) ReadAt(p []byte, off int64) (int, error) { return l.f.ReadAt(p, off) }
func (l *LocalFile) Name() string                            { return l.name }
func (l *LocalFile) Size() int64                             { return l.size }
func (l *LocalFile) Close() error                            { return l.f.Close() }

// BytesFile is an in-memory file. It can be sliced into chunks.
type BytesFile struct {
	*bytes.Reader
	name string
}

// NewBytesFile wraps data as a named file.
func NewBytesFile(name string, data []byte) *BytesFile {
	return &BytesFile{Reader: bytes.NewReader(data), name: name}
}

func (b *BytesFile) Name() string { return b.name }

// StreamFile is a read-once stream. It is always sent whole.
type StreamFile struct {
	r    io.Reader
	name string
	size int64
}

// NewStreamFile wraps r. Pass size -1 when it is unknown.
func NewStreamFile(name string, r io.Reader, size int64) *StreamFile {
	return &StreamFile{r: r, name: name, size: size}
}

func (s *StreamFile) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *StreamFile) Name() string               { return s.name }
func (s *StreamFile) Size() int64                { return s.size }
