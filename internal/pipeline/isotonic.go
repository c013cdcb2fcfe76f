package pipeline

import "math"

// minPositive is the floor applied before taking logs, so that zero
// baselines do not produce -Inf pools.
const minPositive = 1e-6

// anchorWeight pins a value during isotonic smoothing. Pooled neighbors
// move toward the anchor; the anchor itself is restored exactly after
// the pass.
const anchorWeight = 1e9

// pool is one block of the PAVA stack: a run of adjacent elements that
// collapsed to a single weighted-average log value.
type pool struct {
	logVal float64
	weight float64
	count  int
}

// isotonicLog returns the closest non-decreasing sequence to values,
// computed by pool-adjacent-violators in log space. weights scales each
// element's pull during pooling; pinned marks elements restored to their
// input value after smoothing (their weight still shapes the pools).
//
// Elements that never joined a pool are returned bit-identical to their
// input, which is what makes the pass a strict no-op on an already
// monotone sequence.
func isotonicLog(values, weights []float64, pinned []bool) []float64 {
	if len(values) < 2 {
		return append([]float64(nil), values...)
	}

	stack := make([]pool, 0, len(values))
	for i, v := range values {
		p := pool{
			logVal: math.Log(math.Max(v, minPositive)),
			weight: weights[i],
			count:  1,
		}
		// Merge backward while the new element undercuts the stack top.
		for len(stack) > 0 && p.logVal < stack[len(stack)-1].logVal {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			w := top.weight + p.weight
			p = pool{
				logVal: (top.logVal*top.weight + p.logVal*p.weight) / w,
				weight: w,
				count:  top.count + p.count,
			}
		}
		stack = append(stack, p)
	}

	out := make([]float64, 0, len(values))
	for _, p := range stack {
		if p.count == 1 {
			// Untouched element: keep the exact input value.
			out = append(out, values[len(out)])
			continue
		}
		v := math.Exp(p.logVal)
		for j := 0; j < p.count; j++ {
			out = append(out, v)
		}
	}

	for i := range out {
		if pinned != nil && pinned[i] {
			out[i] = values[i]
		}
	}
	return out
}

// uniformWeights returns a weight slice of 1.0 per element.
func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}
