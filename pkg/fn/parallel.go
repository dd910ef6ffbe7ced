package fn

import "sync"

// FanOutResult runs functions concurrently; returns the first error in
// argument order, or all values in order.
func FanOutResult[T any](fns ...func() Result[T]) Result[[]T] {
	results := make([]Result[T], len(fns))
	var wg sync.WaitGroup
	for i, f := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f()
		}()
	}
	wg.Wait()
	return Collect(results)
}
