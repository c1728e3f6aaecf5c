package utils

import (
	"bytes"
	"io"
	"sync"
)

// FlushingWriter forwards output line by line so that each line, such as a TeamCity
// service message, reaches the underlying writer in a single Write call. Partial lines
// stay buffered until their newline arrives or Flush is called. Writers exposing a
// Flush method are flushed after every forwarded chunk.
type FlushingWriter struct {
	writer  io.Writer
	mutex   sync.Mutex
	pending []byte
}

// NewFlushingWriter wraps writer. Writers that are already wrapped are returned unchanged.
func NewFlushingWriter(writer io.Writer) *FlushingWriter {
	if existing, alreadyWrapped := writer.(*FlushingWriter); alreadyWrapped {
		return existing
	}
	return &FlushingWriter{writer: writer}
}

// Write buffers data and forwards every completed line.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	if flushingWriter == nil || flushingWriter.writer == nil {
		return len(data), nil
	}

	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()

	flushingWriter.pending = append(flushingWriter.pending, data...)
	lastNewline := bytes.LastIndexByte(flushingWriter.pending, '\n')
	if lastNewline < 0 {
		return len(data), nil
	}

	completeLines := flushingWriter.pending[:lastNewline+1]
	if forwardError := flushingWriter.forward(completeLines); forwardError != nil {
		return len(data), forwardError
	}
	flushingWriter.pending = append(flushingWriter.pending[:0], flushingWriter.pending[lastNewline+1:]...)
	return len(data), nil
}

// Flush forwards any buffered partial line.
func (flushingWriter *FlushingWriter) Flush() error {
	if flushingWriter == nil || flushingWriter.writer == nil {
		return nil
	}

	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()

	if len(flushingWriter.pending) == 0 {
		return nil
	}
	forwardError := flushingWriter.forward(flushingWriter.pending)
	flushingWriter.pending = flushingWriter.pending[:0]
	return forwardError
}

func (flushingWriter *FlushingWriter) forward(chunk []byte) error {
	if _, writeError := flushingWriter.writer.Write(chunk); writeError != nil {
		return writeError
	}
	if flushableWriter, implementsFlush := flushingWriter.writer.(interface{ Flush() error }); implementsFlush {
		return flushableWriter.Flush()
	}
	return nil
}
