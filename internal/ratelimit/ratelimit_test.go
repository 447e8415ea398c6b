package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		bytesPerSecond int64
		expectNil      bool
	}{
		{"Valid rate", 1024, false},
		{"Zero rate (unlimited)", 0, true},
		{"Negative rate (unlimited)", -1, true},
		{"Very low rate", 1, false},
		{"High rate", 10 * 1024 * 1024, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.bytesPerSecond)
			if tt.expectNil && limiter != nil {
				t.Errorf("Expected nil limiter for rate %d, got non-nil", tt.bytesPerSecond)
			}
			if !tt.expectNil && limiter == nil {
				t.Errorf("Expected non-nil limiter for rate %d, got nil", tt.bytesPerSecond)
			}
		})
	}
}

func TestNilLimiterPassthrough(t *testing.T) {
	var buf bytes.Buffer
	r := bytes.NewReader([]byte("x"))
	if got := NewReader(context.Background(), r, nil, nil); got != io.Reader(r) {
		t.Error("NewReader with nil limiters should return the original reader")
	}
	if got := NewWriter(context.Background(), &buf); got != io.Writer(&buf) {
		t.Error("NewWriter without limiters should return the original writer")
	}
}

func TestReaderDeliversAllData(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 10_000)
	r := NewReader(context.Background(), bytes.NewReader(data), New(50*1024*1024))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read %d bytes, want %d", len(got), len(data))
	}
}

func TestWriterDeliversAllData(t *testing.T) {
	data := bytes.Repeat([]byte("abcdef"), 20_000)
	var buf bytes.Buffer
	w := NewWriter(context.Background(), &buf, New(50*1024*1024), New(60*1024*1024))
	n, err := w.Write(data)
	if err != nil || n != len(data) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Error("written data mismatch")
	}
}

func TestWriterThrottles(t *testing.T) {
	// 2 KiB at 1 KiB/s with a 1 KiB bucket needs about one second.
	var buf bytes.Buffer
	w := NewWriter(context.Background(), &buf, New(1024))
	start := time.Now()
	if _, err := w.Write(make([]byte, 2048)); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 800*time.Millisecond {
		t.Errorf("write finished in %v, expected throttling", elapsed)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewWriter(ctx, io.Discard, New(10))
	if _, err := w.Write(make([]byte, 100)); !errors.Is(err, context.Canceled) {
		t.Errorf("Write error = %v, want context.Canceled", err)
	}
}
