package audio

import (
	"testing"
	"time"
)

func collectFrames(p *Producer) [][]int16 {
	var frames [][]int16
	for {
		select {
		case frame, ok := <-p.Frames():
			if !ok {
				return frames
			}
			frames = append(frames, frame)
		default:
			return frames
		}
	}
}

func TestProducerEmitsFullFrames(t *testing.T) {
	p := NewProducer(16000, 16000, 1600, 500*time.Millisecond)

	p.ProcessBlock(make([]float32, 1600))
	frames := collectFrames(p)
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	if len(frames[0]) != 1600 {
		t.Fatalf("frame length = %d, want 1600", len(frames[0]))
	}
}

func TestProducerStopFlushesPartialFrame(t *testing.T) {
	p := NewProducer(16000, 16000, 1600, 500*time.Millisecond)

	p.ProcessBlock(make([]float32, 1600+25))
	p.Stop()

	var frames [][]int16
	for frame := range p.Frames() {
		frames = append(frames, frame)
	}
	if len(frames) != 2 {
		t.Fatalf("expected full frame plus flushed tail, got %d frames", len(frames))
	}
	if len(frames[1]) != 25 {
		t.Fatalf("flushed tail length = %d, want 25", len(frames[1]))
	}

	// Stop 之后的输入必须被忽略。
	p.ProcessBlock(make([]float32, 100))
}

func TestProducerDurationTelemetry(t *testing.T) {
	p := NewProducer(48000, 16000, 1600, 500*time.Millisecond)

	// 0.5s 遥测间隔在 48kHz 下是 24000 个源样本。
	for i := 0; i < 5; i++ {
		p.ProcessBlock(make([]float32, 12000))
	}

	var reports []float64
	for {
		select {
		case d := <-p.Durations():
			reports = append(reports, d)
			continue
		default:
		}
		break
	}

	// 60000 个源样本 = 1.25s，跨过 0.5s 与 1.0s 两个刻度。
	if len(reports) != 2 {
		t.Fatalf("expected 2 telemetry reports, got %d (%v)", len(reports), reports)
	}
	if reports[0] != 0.5 || reports[1] != 1.0 {
		t.Fatalf("telemetry = %v, want [0.5 1.0]", reports)
	}
}

func TestProducerIgnoresEmptyBlocks(t *testing.T) {
	p := NewProducer(16000, 16000, 4, 500*time.Millisecond)

	p.ProcessBlock(nil)
	p.ProcessBlock([]float32{})

	if frames := collectFrames(p); len(frames) != 0 {
		t.Fatalf("empty blocks produced %d frames", len(frames))
	}
	select {
	case d := <-p.Durations():
		t.Fatalf("empty blocks advanced telemetry: %v", d)
	default:
	}
}

func TestProducerDropsWhenTransportStalls(t *testing.T) {
	p := NewProducer(16000, 16000, 4, time.Hour)

	// 通道容量 32，多出来的帧必须丢弃而不是阻塞。
	p.ProcessBlock(make([]float32, 4*40))

	if p.Dropped() != 8 {
		t.Fatalf("dropped = %d, want 8", p.Dropped())
	}
	if got := len(collectFrames(p)); got != 32 {
		t.Fatalf("delivered frames = %d, want 32", got)
	}
}
