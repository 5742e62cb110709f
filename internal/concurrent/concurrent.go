// Package concurrent provides an order-preserving concurrent map used to
// batch independent, synchronous Database lookups (schema introspection)
// across many table definitions at once.
package concurrent

import (
	"cmp"
	"slices"

	"golang.org/x/sync/errgroup"
)

type orderedOutput[T any] struct {
	order  int
	output T
}

// MapWithError applies f to every input concurrently (bounded by concurrency)
// and returns the outputs in the same order as the inputs. concurrency < 0
// means unbounded; concurrency == 0 disables concurrency entirely (runs
// sequentially, still through the same code path).
func MapWithError[Tin any, Tout any](inputs []Tin, concurrency int, f func(Tin) (Tout, error)) ([]Tout, error) {
	eg := errgroup.Group{}
	switch {
	case concurrency == 0:
		eg.SetLimit(1)
	case concurrency > 0:
		eg.SetLimit(concurrency)
	}

	results := make([]orderedOutput[Tout], len(inputs))
	for i := range inputs {
		i := i
		eg.Go(func() error {
			out, err := f(inputs[i])
			if err != nil {
				return err
			}
			results[i] = orderedOutput[Tout]{order: i, output: out}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b orderedOutput[Tout]) int {
		return cmp.Compare(a.order, b.order)
	})

	outputs := make([]Tout, len(results))
	for i, r := range results {
		outputs[i] = r.output
	}
	return outputs, nil
}
