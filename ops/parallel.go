// Package ops implements the primitive forward/backward kernels of the
// transformer: encoder, layernorm, matmul, attention, gelu, residual,
// softmax and the fused cross-entropy/softmax backward. Every kernel
// operates on flat float32 buffers with explicit shape arguments and
// allocates nothing; backward kernels accumulate into their gradient
// arguments rather than overwrite them, except CrossEntropySoftmaxBackward,
// which overwrites dlogits.
package ops

import (
	"runtime"
	"sync"
)

// parallelFor runs fn(i) for i in [0,n) across worker goroutines and
// waits for all of them. It is used only where iterations are
// independent (matmul's two passes, AttentionForward, SoftmaxForward);
// EncoderBackward and AttentionBackward stay serial because they
// accumulate into shared rows and splitting them would race.
func parallelFor(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}(lo, hi)
	}
	wg.Wait()
}
