package server

import (
	"context"
	"io"
	"strconv"
	"time"
)

const (
	fileChunkSize = 1024
	megabyte      = 1024 * 1024
)

var fileChunk = func() []byte {
	b := make([]byte, fileChunkSize)
	for i := range b {
		b[i] = 'a'
	}
	return b
}()

// HelloAfter is the final line of both sleep endpoints.
func HelloAfter(seconds uint64) string {
	return "Hello world after " + strconv.FormatUint(seconds, 10) + "s"
}

// sleepStream yields the chunks of /sleep/{t}: one wait of unit per step,
// the elapsed count after every even step, then the closing line.
// It can be consumed once.
type sleepStream struct {
	total    uint64
	elapsed  uint64
	unit     time.Duration
	finished bool
}

func newSleepStream(total uint64, unit time.Duration) *sleepStream {
	return &sleepStream{total: total, unit: unit}
}

// Next blocks until the next chunk is due. It returns false once the stream
// is exhausted or ctx is done.
func (s *sleepStream) Next(ctx context.Context) (string, bool) {
	for s.elapsed < s.total {
		if !sleepContext(ctx, s.unit) {
			return "", false
		}
		s.elapsed++
		if s.elapsed%2 == 0 {
			return strconv.FormatUint(s.elapsed, 10) + "\n", true
		}
	}

	if s.finished {
		return "", false
	}
	s.finished = true
	return HelloAfter(s.total), true
}

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// patternReader produces exactly n bytes of 'a', at most one chunk per Read.
type patternReader struct {
	remaining int64
}

func newPatternReader(n int64) *patternReader {
	return &patternReader{remaining: n}
}

func (r *patternReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}

	n := len(p)
	if n > fileChunkSize {
		n = fileChunkSize
	}
	if int64(n) > r.remaining {
		n = int(r.remaining)
	}

	copy(p, fileChunk[:n])
	r.remaining -= int64(n)
	return n, nil
}
