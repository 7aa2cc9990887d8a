package serialmux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"
)

var errPortClosed = errors.New("serial port closed")

// MockSerialPort is an in-memory SerialPorter. Reads are served from lines
// written by its producer; writes are captured.
type MockSerialPort struct {
	io.Reader
	pw *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
	done    chan struct{}
}

// Write captures the command written to the device.
func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errPortClosed
	}
	return m.written.Write(p)
}

// Written returns everything written to the port so far.
func (m *MockSerialPort) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

// Close stops the producer and unblocks readers.
func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	return m.pw.CloseWithError(errPortClosed)
}

// MockReadings generates thermometer-style lines: a random walk around base,
// formatted the way the sensor sketch prints them.
func MockReadings(base float64, seed int64) func() string {
	rng := rand.New(rand.NewSource(seed))
	current := base
	return func() string {
		current += rng.Float64() - 0.5
		return fmt.Sprintf("%.2f\r\n", current)
	}
}

// NewMockSerialMux creates a SerialMux whose port emits next() every interval
// until the mux is closed. It stands in for the thermometer in --dev mode.
func NewMockSerialMux(next func() string, interval time.Duration) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	port := &MockSerialPort{Reader: r, pw: w, done: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-port.done:
				return
			case <-ticker.C:
				if _, err := io.WriteString(w, next()); err != nil {
					return
				}
			}
		}
	}()

	return NewSerialMux(port)
}

// TestableSerialPort implements SerialPorter with scripted reads and
// injectable errors for tests.
type TestableSerialPort struct {
	mu sync.Mutex

	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer

	// ReadError is returned once by the next Read call if set.
	ReadError error
	// WriteError is returned once by the next Write call if set.
	WriteError error
	// ShortWrite makes Write report one byte fewer than it was given.
	ShortWrite bool
	CloseError error

	Closed bool

	// BlockReads makes Read wait for data or Close instead of returning EOF.
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSerialPort creates a port whose reads return data.
func NewTestableSerialPort(data string) *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBufferString(data),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read reads from the read buffer.
func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	for t.BlockReads && !t.Closed && t.ReadBuffer.Len() == 0 {
		t.readCond.Wait()
	}
	if t.Closed {
		return 0, errPortClosed
	}
	return t.ReadBuffer.Read(p)
}

// Write appends to the write buffer.
func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	n, err := t.WriteBuffer.Write(p)
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, err
}

// Close marks the port closed and wakes blocked readers.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// AddReadData appends data for subsequent reads.
func (t *TestableSerialPort) AddReadData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.WriteString(data)
	t.readCond.Broadcast()
}

// Written returns all data written to the port.
func (t *TestableSerialPort) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteBuffer.String()
}
