package audio

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

// recordingSink 记录每次写入的内容与时刻。
type recordingSink struct {
	mu     sync.Mutex
	writes [][]byte
	times  []time.Time
}

func (s *recordingSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(p))
	copy(buf, p)
	s.writes = append(s.writes, buf)
	s.times = append(s.times, time.Now())
	return len(p), nil
}

func (s *recordingSink) snapshot() ([][]byte, []time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.writes...), append([]time.Time(nil), s.times...)
}

func waitForWrites(t *testing.T, sink *recordingSink, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		writes, _ := sink.snapshot()
		if len(writes) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	writes, _ := sink.snapshot()
	t.Fatalf("timed out waiting for %d writes, got %d", n, len(writes))
}

func TestSchedulerPlaysChunksInOrder(t *testing.T) {
	sink := &recordingSink{}
	s := NewScheduler(sink, 16000)
	defer s.Close()

	first := bytes.Repeat([]byte{0x01}, 320)
	second := bytes.Repeat([]byte{0x02}, 320)
	if err := s.Enqueue(first); err != nil {
		t.Fatalf("Enqueue err: %v", err)
	}
	if err := s.Enqueue(second); err != nil {
		t.Fatalf("Enqueue err: %v", err)
	}

	waitForWrites(t, sink, 2)
	writes, times := sink.snapshot()
	if !bytes.Equal(writes[0], first) || !bytes.Equal(writes[1], second) {
		t.Fatal("chunks written out of order or mutated")
	}

	// 320 字节在 16kHz 下播 10ms，第二块不得抢在第一块结束之前。
	if gap := times[1].Sub(times[0]); gap < 8*time.Millisecond {
		t.Fatalf("second chunk started %v after first, want >= ~10ms", gap)
	}
}

func TestSchedulerResetDropsQueuedChunks(t *testing.T) {
	sink := &recordingSink{}
	s := NewScheduler(sink, 16000)
	defer s.Close()

	// 第一块播 200ms，把后续块压在队列里。
	long := bytes.Repeat([]byte{0x01}, 6400)
	queued := bytes.Repeat([]byte{0x02}, 320)
	s.Enqueue(long)
	s.Enqueue(queued)
	s.Enqueue(queued)

	waitForWrites(t, sink, 1)
	s.Reset()

	marker := bytes.Repeat([]byte{0x03}, 320)
	s.Enqueue(marker)
	waitForWrites(t, sink, 2)

	writes, _ := sink.snapshot()
	if !bytes.Equal(writes[1], marker) {
		t.Fatalf("expected marker after reset, got %x...", writes[1][0])
	}
}

func TestSchedulerEnqueueAfterClose(t *testing.T) {
	s := NewScheduler(&recordingSink{}, 16000)
	s.Close()
	s.Close() // idempotent

	if err := s.Enqueue([]byte{0x00, 0x00}); err != ErrSchedulerClosed {
		t.Fatalf("expected ErrSchedulerClosed, got %v", err)
	}
}
