package audio

// Framer 把量化后的样本积累成固定长度的帧。只有凑满的帧才会输出，
// 残帧留在缓冲里等待后续样本或显式 Flush。
type Framer struct {
	frameSize int
	buf       []int16
}

// NewFramer 创建一个组帧器，frameSize 以样本数计。
func NewFramer(frameSize int) *Framer {
	return &Framer{
		frameSize: frameSize,
		buf:       make([]int16, 0, frameSize),
	}
}

// Push 吸收一批样本，返回由此凑满的完整帧，可能为零个或多个。
func (f *Framer) Push(samples []int16) [][]int16 {
	var frames [][]int16
	for len(samples) > 0 {
		n := f.frameSize - len(f.buf)
		if n > len(samples) {
			n = len(samples)
		}
		f.buf = append(f.buf, samples[:n]...)
		samples = samples[n:]

		if len(f.buf) == f.frameSize {
			frames = append(frames, f.buf)
			f.buf = make([]int16, 0, f.frameSize)
		}
	}
	return frames
}

// Flush 取出未满的残帧，缓冲为空时返回 nil。
func (f *Framer) Flush() []int16 {
	if len(f.buf) == 0 {
		return nil
	}
	frame := f.buf
	f.buf = make([]int16, 0, f.frameSize)
	return frame
}

// Buffered 返回当前缓冲的样本数。
func (f *Framer) Buffered() int {
	return len(f.buf)
}
