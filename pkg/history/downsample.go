package history

// Downsample decimates src to at most maxPoints elements for display.
// dst is reused when it has enough capacity. If src already fits, it is
// copied as is.
func Downsample[T any](dst []T, src []T, maxPoints int) []T {
	if maxPoints <= 0 {
		return dst[:0]
	}
	if len(src) <= maxPoints {
		if cap(dst) >= len(src) {
			dst = dst[:len(src)]
			copy(dst, src)
			return dst
		}
		return append([]T(nil), src...)
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, maxPoints)
	}

	step := float64(len(src)) / float64(maxPoints)
	for i := 0; i < maxPoints; i++ {
		idx := int(float64(i) * step)
		if idx < len(src) {
			dst = append(dst, src[idx])
		}
	}

	// keep the newest point so the trace ends at the latest cycle
	if last := len(dst) - 1; last >= 0 {
		dst[last] = src[len(src)-1]
	}

	return dst
}
