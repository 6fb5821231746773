package audio

import (
	"log"
	"sync/atomic"
	"time"
)

// Producer 运行在采集回调路径上：对每块源采样做重采样、量化、组帧，
// 并在累计源采样跨过固定间隔时上报自采集开始以来的总时长。
// 帧通过带缓冲的通道异步交给传输层；通道满时丢帧计数，绝不阻塞
// 采集回调。所有方法都必须由同一个采集 goroutine 调用。
type Producer struct {
	sourceRate int
	targetRate int
	framer     *Framer

	frames    chan []int16
	durations chan float64

	totalSourceSamples int
	sinceReport        int
	reportInterval     int

	dropped atomic.Uint64
	stopped bool
}

// NewProducer 创建帧生产者。telemetryInterval 按源采样时间计。
func NewProducer(sourceRate, targetRate, frameSize int, telemetryInterval time.Duration) *Producer {
	return &Producer{
		sourceRate:     sourceRate,
		targetRate:     targetRate,
		framer:         NewFramer(frameSize),
		frames:         make(chan []int16, 32),
		durations:      make(chan float64, 8),
		reportInterval: int(float64(sourceRate) * telemetryInterval.Seconds()),
	}
}

// Frames 输出凑满（或停止时冲刷）的 PCM 帧。
func (p *Producer) Frames() <-chan []int16 {
	return p.frames
}

// Durations 输出时长遥测，单位秒。
func (p *Producer) Durations() <-chan float64 {
	return p.durations
}

// Dropped 返回因传输层消费不及时而丢弃的帧数。
func (p *Producer) Dropped() uint64 {
	return p.dropped.Load()
}

// ProcessBlock 处理一块源采样率下的浮点样本。空块直接忽略，
// 既不产出帧也不推进遥测。
func (p *Producer) ProcessBlock(samples []float32) {
	if p.stopped || len(samples) == 0 {
		return
	}

	quantized := Quantize(Resample(samples, p.sourceRate, p.targetRate))
	for _, frame := range p.framer.Push(quantized) {
		p.emitFrame(frame)
	}

	p.totalSourceSamples += len(samples)
	p.sinceReport += len(samples)
	for p.reportInterval > 0 && p.sinceReport >= p.reportInterval {
		p.sinceReport -= p.reportInterval
		p.emitDuration(float64(p.totalSourceSamples) / float64(p.sourceRate))
	}
}

// Stop 冲刷残帧并关闭输出通道。末尾的样本不会被静默丢弃。
func (p *Producer) Stop() {
	if p.stopped {
		return
	}
	p.stopped = true

	if frame := p.framer.Flush(); frame != nil {
		p.emitFrame(frame)
	}
	close(p.frames)
	close(p.durations)
}

func (p *Producer) emitFrame(frame []int16) {
	select {
	case p.frames <- frame:
	default:
		p.dropped.Add(1)
		log.Printf("[audio] transport backlog, frame dropped (total=%d)", p.dropped.Load())
	}
}

func (p *Producer) emitDuration(seconds float64) {
	select {
	case p.durations <- seconds:
	default:
		// 遥测可以丢，下一个刻度会带上最新的总时长。
	}
}
