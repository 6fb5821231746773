// Package audio implements the capture-side frame producer and the playback
// scheduler for 16-bit PCM conversation audio.
package audio

import "math"

// Resample 用盒式均值把样本从 fromRate 重采样到 toRate：每个输出样本
// 取其源时间窗口内所有样本的平均，窗口边界为 round((i+1)*ratio)。
// 输出长度恒等于 round(len(samples)/ratio)，ratio = fromRate/toRate。
// 采样率相同时为恒等变换，直接透传输入切片。
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(math.Round(float64(len(samples)) / ratio))
	out := make([]float32, outLen)

	offset := 0
	for i := 0; i < outLen; i++ {
		next := int(math.Round(float64(i+1) * ratio))
		if next > len(samples) {
			next = len(samples)
		}

		var sum float64
		count := 0
		for j := offset; j < next; j++ {
			sum += float64(samples[j])
			count++
		}
		if count > 0 {
			out[i] = float32(sum / float64(count))
		}
		offset = next
	}
	return out
}

// Quantize 把 [-1,1] 的浮点样本转为 16 位有符号整型。
// 先截断到 [-1,1]，负值乘 32768、非负乘 32767，恰好铺满有符号区间。
func Quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		if s < 0 {
			out[i] = int16(s * 32768)
		} else {
			out[i] = int16(s * 32767)
		}
	}
	return out
}
