package logger

import (
	"bufio"
	"bytes"
	"io"
	"sync"
	"time"
)

// FlushWriter buffers log writes and flushes them to the underlying writer
// when the flush interval elapses, when the buffer fills, when an error or
// fatal level event is written, or on Sync/Close.
type FlushWriter struct {
	mu        sync.Mutex
	bufWriter *bufio.Writer
	interval  time.Duration
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewFlushWriter creates a FlushWriter with a 64KB buffer.
func NewFlushWriter(w io.Writer, interval time.Duration) *FlushWriter {
	fw := &FlushWriter{
		bufWriter: bufio.NewWriterSize(w, 64*1024),
		interval:  interval,
		stop:      make(chan struct{}),
	}
	fw.wg.Add(1)
	go fw.runFlusher()
	return fw
}

// Write implements io.Writer.
func (fw *FlushWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	// zerolog JSON puts the level near the start of the line
	critical := bytes.Contains(p, []byte(`"level":"error"`)) ||
		bytes.Contains(p, []byte(`"level":"fatal"`))

	n, err := fw.bufWriter.Write(p)
	if critical {
		_ = fw.bufWriter.Flush()
	}
	return n, err
}

// Sync flushes buffered data.
func (fw *FlushWriter) Sync() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.bufWriter.Flush()
}

// Close stops the background flusher and drains the buffer.
func (fw *FlushWriter) Close() error {
	close(fw.stop)
	fw.wg.Wait()
	return fw.Sync()
}

func (fw *FlushWriter) runFlusher() {
	defer fw.wg.Done()
	ticker := time.NewTicker(fw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = fw.Sync()
		case <-fw.stop:
			return
		}
	}
}
