package pagefit

import (
	"fmt"
	"sync"
)

// PlanKind tags the compression tier a plan belongs to.
type PlanKind int

const (
	// PlanOriginal embeds the image bytes untouched.
	PlanOriginal PlanKind = iota
	// PlanRecodeQuality re-encodes as JPEG at Quality, dimensions unchanged.
	PlanRecodeQuality
	// PlanResizeAndRecode scales by Scale, then re-encodes at Quality.
	PlanResizeAndRecode
)

// Plan is the compression tier chosen for a page. Tiers form a strictly
// worsening-fidelity sequence: Original, then descending qualities, then
// descending scales.
type Plan struct {
	Kind    PlanKind
	Quality int     // JPEG quality, set for recode and resize plans
	Scale   float64 // uniform scale factor in (0,1], set for resize plans
}

// OriginalPlan returns the no-recompression tier.
func OriginalPlan() Plan { return Plan{Kind: PlanOriginal} }

// RecodeQualityPlan returns the recompress-only tier at quality q.
func RecodeQualityPlan(q int) Plan {
	return Plan{Kind: PlanRecodeQuality, Quality: q}
}

// ResizeAndRecodePlan returns the resize tier at the given scale and quality.
func ResizeAndRecodePlan(scale float64, q int) Plan {
	return Plan{Kind: PlanResizeAndRecode, Scale: scale, Quality: q}
}

func (p Plan) String() string {
	switch p.Kind {
	case PlanOriginal:
		return "original"
	case PlanRecodeQuality:
		return fmt.Sprintf("recode(q=%d)", p.Quality)
	case PlanResizeAndRecode:
		return fmt.Sprintf("resize(scale=%.2f, q=%d)", p.Scale, p.Quality)
	default:
		return fmt.Sprintf("unknown(%d)", int(p.Kind))
	}
}

// planCache is the write-once plan store shared by a batch. The first
// completed search publishes its plan; later writes are ignored.
type planCache struct {
	mu   sync.Mutex
	plan *Plan
}

func (c *planCache) get() (Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plan == nil {
		return Plan{}, false
	}
	return *c.plan, true
}

func (c *planCache) put(p Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plan == nil {
		c.plan = &p
	}
}
