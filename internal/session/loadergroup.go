package session

// loadergroup.go generalizes pkg/loader.go's singleflight-based
// de-duplication layer: instead of coalescing concurrent loads of the same
// cache key, it coalesces concurrent run_cell submissions for cell ids that
// turn out to compile to the same content, so only one compilation runs and
// every other caller observes a content hit sharing the same result. This is
// strictly additional safety beyond §5's single-threaded core contract,
// useful when a host embeds a Session behind a concurrent RPC surface.

import (
	"context"

	"golang.org/x/sync/singleflight"
)

type cellLoaderGroup struct {
	g singleflight.Group
}

func newCellLoaderGroup() *cellLoaderGroup {
	return &cellLoaderGroup{}
}

// run executes fn exactly once for the given dedup key across all
// goroutines racing to submit it; every waiter receives the same result.
func (lg *cellLoaderGroup) run(ctx context.Context, key string, fn func() (*CellResult, error)) (*CellResult, error, bool) {
	res, err, shared := lg.g.Do(key, func() (any, error) {
		return fn()
	})
	if ctx.Err() != nil {
		return nil, ctx.Err(), shared
	}
	if err != nil {
		return nil, err, shared
	}
	return res.(*CellResult), nil, shared
}
