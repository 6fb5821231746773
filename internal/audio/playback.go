package audio

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"
)

// ErrSchedulerClosed 表示调度器已经关闭，不再接收音频块。
var ErrSchedulerClosed = errors.New("playback scheduler closed")

// Scheduler 按到达顺序无缝回放二进制 PCM 音频块：每块的开始时刻排在
// 上一块的结束时刻之后，中间不留空隙；队列放空后新块立即开始。
// Reset 丢弃所有未播放的块，用于打断正在进行的回复。
type Scheduler struct {
	sink       io.Writer
	sampleRate int

	queue chan []byte
	reset chan struct{}
	done  chan struct{}

	closeOnce sync.Once
}

// NewScheduler 创建回放调度器并启动调度循环。
// 音频块是 16 位单声道小端 PCM，采样率为 sampleRate。
func NewScheduler(sink io.Writer, sampleRate int) *Scheduler {
	s := &Scheduler{
		sink:       sink,
		sampleRate: sampleRate,
		queue:      make(chan []byte, 256),
		reset:      make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue 将一个音频块排入回放队列。队列满时丢块，保持调用方不阻塞。
func (s *Scheduler) Enqueue(chunk []byte) error {
	select {
	case <-s.done:
		return ErrSchedulerClosed
	default:
	}

	buf := make([]byte, len(chunk))
	copy(buf, chunk)

	select {
	case s.queue <- buf:
		return nil
	default:
		log.Printf("[audio] playback queue full, chunk dropped (%d bytes)", len(chunk))
		return nil
	}
}

// Reset 丢弃所有排队中的音频块，下一个入队的块立即开始播放。
func (s *Scheduler) Reset() {
	select {
	case s.reset <- struct{}{}:
	default:
	}
}

// Close 停止调度循环，幂等。
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// chunkDuration 按 16 位单声道 PCM 计算一块音频的播放时长。
func (s *Scheduler) chunkDuration(byteLen int) time.Duration {
	samples := byteLen / 2
	return time.Duration(float64(samples) / float64(s.sampleRate) * float64(time.Second))
}

func (s *Scheduler) run() {
	nextStart := time.Now()
	for {
		select {
		case <-s.done:
			return
		case <-s.reset:
			s.drain()
			nextStart = time.Now()
		case chunk := <-s.queue:
			now := time.Now()
			if nextStart.Before(now) {
				nextStart = now
			}

			timer := time.NewTimer(nextStart.Sub(now))
			select {
			case <-s.done:
				timer.Stop()
				return
			case <-s.reset:
				timer.Stop()
				s.drain()
				nextStart = time.Now()
				continue
			case <-timer.C:
			}

			if _, err := s.sink.Write(chunk); err != nil {
				log.Printf("[audio] playback sink write failed: %v", err)
				return
			}
			nextStart = nextStart.Add(s.chunkDuration(len(chunk)))
		}
	}
}

func (s *Scheduler) drain() {
	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}
