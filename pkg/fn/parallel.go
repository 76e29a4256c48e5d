package fn

import "golang.org/x/sync/errgroup"

// ParMap applies f to every item on at most workers goroutines and returns
// the outputs in input order. workers <= 0 means one goroutine per item.
func ParMap[T, U any](items []T, workers int, f func(T) U) []U {
	out := make([]U, len(items))
	if len(items) == 0 {
		return out
	}
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, v := range items {
		g.Go(func() error {
			out[i] = f(v)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ParMapResult is ParMap for fallible work. Every item runs; failures stay in
// their slot instead of cancelling the rest.
func ParMapResult[T, U any](items []T, workers int, f func(T) Result[U]) []Result[U] {
	return ParMap(items, workers, f)
}
