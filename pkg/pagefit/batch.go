package pagefit

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gardar/ocrpress/pkg/ocrlayer"
)

// PageInput is one page of a batch: the encoded page image and the raw
// (pre-filter) regions recognized on it.
type PageInput struct {
	Image   []byte
	Regions []ocrlayer.TextRegion
}

// PageResult pairs one page's outcome with its error. Failures are page
// scoped: a failed page never aborts its siblings.
type PageResult struct {
	Result *FitResult
	Err    error
}

// FitBatch fits every page of a batch against one shared budget. The first
// page runs the full ladder search and publishes its plan; the remaining
// pages run in parallel, applying the cached plan directly and falling back
// to a full search when the cached plan misses the budget on a denser page.
// The fallback result never overwrites the cached plan.
//
// Results are returned in input order, one per page.
func FitBatch(pages []PageInput, budget int64, config Config) []PageResult {
	config = config.withDefaults()
	results := make([]PageResult, len(pages))
	if len(pages) == 0 {
		return results
	}

	// Probe page: runs alone so the cache is populated before the fan-out.
	cache := &planCache{}
	res, err := FitPage(pages[0].Image, pages[0].Regions, budget, config)
	results[0] = PageResult{Result: res, Err: err}
	if err == nil {
		cache.put(res.Plan)
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 1; i < len(pages); i++ {
		g.Go(func() error {
			res, err := fitWithCache(pages[i], budget, config, cache)
			results[i] = PageResult{Result: res, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}

// fitWithCache applies the batch's cached plan when one exists, re-running
// the full search for this page only when the cached plan misses the budget.
func fitWithCache(page PageInput, budget int64, config Config, cache *planCache) (*FitResult, error) {
	plan, ok := cache.get()
	if !ok {
		res, err := FitPage(page.Image, page.Regions, budget, config)
		if err == nil {
			cache.put(res.Plan)
		}
		return res, err
	}

	res, err := ApplyPlan(plan, page.Image, page.Regions, budget, config)
	if errors.Is(err, ErrBelowFloor) {
		// Smaller page than the probe: the cached scale is illegible here,
		// so this page gets its own search.
		if config.Debug {
			fmt.Fprintf(config.Logger, "cached plan %s below legibility floor, re-searching\n", plan)
		}
		return FitPage(page.Image, page.Regions, budget, config)
	}
	if err != nil {
		return nil, err
	}
	if res.BudgetMet {
		return res, nil
	}
	// Denser page than the probe: the known-good tier no longer fits.
	if config.Debug {
		fmt.Fprintf(config.Logger, "cached plan %s missed budget (%d bytes), re-searching\n",
			plan, res.Size)
	}
	return FitPage(page.Image, page.Regions, budget, config)
}
