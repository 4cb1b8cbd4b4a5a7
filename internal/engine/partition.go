package engine

import "runtime"

// span is a half-open range [lo, hi) over a slice.
type span struct {
	lo, hi int
}

// partition splits n items into at most k contiguous, disjoint, non-empty
// spans covering [0, n). Earlier spans take the remainder.
func partition(n, k int) []span {
	if n <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}

	size, rem := n/k, n%k
	spans := make([]span, 0, k)
	lo := 0
	for i := 0; i < k; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		spans = append(spans, span{lo: lo, hi: hi})
		lo = hi
	}
	return spans
}

// workerCount clamps the requested parallelism to the number of items.
// A non-positive request means one worker per available CPU.
func workerCount(requested, items int) int {
	w := requested
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	if w > items {
		w = items
	}
	if w < 1 {
		w = 1
	}
	return w
}
