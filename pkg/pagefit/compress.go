// Package pagefit assembles single-page searchable documents that fit a
// byte-size budget.
//
// Given a page image and the text regions recognized on it, the package
// builds a PDF that reproduces the image full-bleed and carries an invisible,
// spatially aligned text layer, then adaptively degrades the image until the
// assembled page fits the caller's budget. Degradation walks a fixed ladder:
// the original bytes first, then descending JPEG qualities, then descending
// resolutions, stopping at the first tier that fits. Region coordinates are
// re-projected whenever the image dimensions change so the text layer stays
// aligned with the degraded image.
//
// Main Functions:
//
// - FitPage: fit one page to a budget via the full ladder search
// - ApplyPlan: apply a known plan to one page without searching
// - FitBatch: fit a batch of pages, reusing the first page's plan
// - NewPDFAssembler: the document writer driven by the search
package pagefit

import (
	"errors"
	"fmt"

	"github.com/gardar/ocrpress/pkg/ocrlayer"
	"github.com/gardar/ocrpress/pkg/raster"
)

// ErrResourceExhausted reports a bitmap so large that bringing it under the
// pixel ceiling would push its longest dimension below the legibility floor.
var ErrResourceExhausted = errors.New("bitmap cannot fit pixel ceiling at a legible size")

// ErrBelowFloor reports a resize plan whose scale would push the page's
// longest dimension below the legibility floor. The floor binds every tier,
// so the plan cannot be applied; FitBatch treats this as a cache miss and
// re-runs the full search for the page.
var ErrBelowFloor = errors.New("plan scale falls below the legibility floor")

// FitResult is the outcome of fitting one page to a size budget.
type FitResult struct {
	Page      []byte // the assembled single-page document
	Plan      Plan   // the tier that produced it
	Size      int    // len(Page), kept explicit for callers logging sizes
	Width     int    // pixel width of the embedded image
	Height    int    // pixel height of the embedded image
	BudgetMet bool   // false means best effort: Size exceeds the budget
}

// FitPage finds the highest-fidelity encoding of imageData whose assembled
// page fits within budget bytes, walking the tiers in order: the original
// bytes, then the quality ladder, then the resize ladder. The first tier
// that fits wins and lower tiers are never tried. If no tier fits before
// the legibility floor, the smallest candidate produced is returned with
// BudgetMet false; that is a soft result, not an error.
//
// Regions are filtered against config.ConfidenceThreshold and re-projected
// automatically whenever the bitmap dimensions change.
func FitPage(imageData []byte, regions []ocrlayer.TextRegion, budget int64, config Config) (*FitResult, error) {
	config = config.withDefaults()
	if budget <= 0 {
		return nil, fmt.Errorf("size budget must be positive, got %d", budget)
	}

	bm, regions, err := preparePage(imageData, regions, config)
	if err != nil {
		return nil, err
	}
	return runSearch(bm, regions, budget, config)
}

// preparePage decodes, filters and clamps one page's inputs ahead of either
// the full search or a cached-plan application.
func preparePage(imageData []byte, regions []ocrlayer.TextRegion, config Config) (*raster.Bitmap, []ocrlayer.TextRegion, error) {
	bm, err := raster.Decode(imageData)
	if err != nil {
		return nil, nil, err
	}
	regions = ocrlayer.FilterByConfidence(regions, config.ConfidenceThreshold)
	return clampOversize(bm, regions, config)
}

// clampOversize enforces the pixel ceiling before any budget checking,
// re-projecting regions onto the downscaled bitmap.
func clampOversize(bm *raster.Bitmap, regions []ocrlayer.TextRegion, config Config) (*raster.Bitmap, []ocrlayer.TextRegion, error) {
	clamped, scale := raster.ClampPixels(bm, config.MaxPixels)
	if scale == 1.0 {
		return bm, regions, nil
	}
	if clamped.LongestDim() < config.MinDimension {
		return nil, nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrResourceExhausted,
			bm.Width(), bm.Height(), config.MaxPixels)
	}
	if config.Debug {
		fmt.Fprintf(config.Logger, "pixel ceiling: downscaled %dx%d to %dx%d\n",
			bm.Width(), bm.Height(), clamped.Width(), clamped.Height())
	}
	regions = ocrlayer.ProjectRegions(regions,
		float64(bm.Width()), float64(bm.Height()),
		float64(clamped.Width()), float64(clamped.Height()))
	return clamped, regions, nil
}

// runSearch walks the tier ladder on an already-clamped bitmap. It keeps
// only the smallest candidate alive for the best-effort fallback; every
// other candidate buffer is dropped as soon as its size is known.
func runSearch(bm *raster.Bitmap, regions []ocrlayer.TextRegion, budget int64, config Config) (*FitResult, error) {
	var best *FitResult

	try := func(plan Plan, img EncodedImage, regs []ocrlayer.TextRegion) (*FitResult, error) {
		page, err := config.Assemble(img, regs)
		if err != nil {
			return nil, fmt.Errorf("assembly failed for %s: %w", plan, err)
		}
		res := &FitResult{
			Page:      page,
			Plan:      plan,
			Size:      len(page),
			Width:     img.Width,
			Height:    img.Height,
			BudgetMet: int64(len(page)) <= budget,
		}
		if config.Debug {
			fmt.Fprintf(config.Logger, "tier %s: %d bytes (budget %d)\n", plan, res.Size, budget)
		}
		if best == nil || res.Size < best.Size {
			best = res
		}
		return res, nil
	}

	// Tier 0: the bitmap as-is.
	orig, format, err := originalEncoding(bm)
	if err != nil {
		return nil, err
	}
	res, err := try(OriginalPlan(), EncodedImage{Data: orig, Format: format, Width: bm.Width(), Height: bm.Height()}, regions)
	if err != nil {
		return nil, err
	}
	if res.BudgetMet {
		return res, nil
	}

	// Tier 1: recompress at descending qualities, dimensions unchanged so
	// the regions need no re-projection.
	for _, q := range config.QualityLadder {
		data, err := raster.EncodeJPEG(bm, q)
		if err != nil {
			return nil, err
		}
		res, err := try(RecodeQualityPlan(q), EncodedImage{Data: data, Format: "JPEG", Width: bm.Width(), Height: bm.Height()}, regions)
		if err != nil {
			return nil, err
		}
		if res.BudgetMet {
			return res, nil
		}
	}

	// Tier 2: descending scales at a fixed moderate quality. The legibility
	// floor takes precedence over budget satisfaction.
	srcW, srcH := float64(bm.Width()), float64(bm.Height())
	for _, scale := range config.ScaleLadder {
		if float64(bm.LongestDim())*scale < float64(config.MinDimension) {
			break
		}
		resized := raster.Resize(bm, scale)
		projected := ocrlayer.ProjectRegions(regions, srcW, srcH,
			float64(resized.Width()), float64(resized.Height()))
		data, err := raster.EncodeJPEG(resized, config.ResizeQuality)
		if err != nil {
			return nil, err
		}
		res, err := try(ResizeAndRecodePlan(scale, config.ResizeQuality),
			EncodedImage{Data: data, Format: "JPEG", Width: resized.Width(), Height: resized.Height()}, projected)
		if err != nil {
			return nil, err
		}
		if res.BudgetMet {
			return res, nil
		}
	}

	// No tier fit: report the smallest candidate as best effort.
	if config.Debug {
		fmt.Fprintf(config.Logger, "budget unmet, best effort %s at %d bytes\n", best.Plan, best.Size)
	}
	return best, nil
}

// ApplyPlan skips the ladder search and applies a known plan to one page,
// still measuring the assembled size against the budget: the result's
// BudgetMet reports whether the plan held up. A resize plan whose scale puts
// this page's longest dimension below the legibility floor is rejected with
// ErrBelowFloor before anything is assembled. Callers reusing a plan across
// their own batches decide what to do on a miss; FitBatch falls back to a
// full search in both cases.
func ApplyPlan(plan Plan, imageData []byte, regions []ocrlayer.TextRegion, budget int64, config Config) (*FitResult, error) {
	config = config.withDefaults()
	if budget <= 0 {
		return nil, fmt.Errorf("size budget must be positive, got %d", budget)
	}
	bm, regions, err := preparePage(imageData, regions, config)
	if err != nil {
		return nil, err
	}
	return applyPlan(plan, bm, regions, budget, config)
}

// applyPlan applies a known tier to an already-prepared bitmap.
func applyPlan(plan Plan, bm *raster.Bitmap, regions []ocrlayer.TextRegion, budget int64, config Config) (*FitResult, error) {
	var (
		img  EncodedImage
		regs = regions
	)

	switch plan.Kind {
	case PlanOriginal:
		data, format, err := originalEncoding(bm)
		if err != nil {
			return nil, err
		}
		img = EncodedImage{Data: data, Format: format, Width: bm.Width(), Height: bm.Height()}
	case PlanRecodeQuality:
		data, err := raster.EncodeJPEG(bm, plan.Quality)
		if err != nil {
			return nil, err
		}
		img = EncodedImage{Data: data, Format: "JPEG", Width: bm.Width(), Height: bm.Height()}
	case PlanResizeAndRecode:
		if float64(bm.LongestDim())*plan.Scale < float64(config.MinDimension) {
			return nil, fmt.Errorf("%w: %s on %dx%d, floor %d px", ErrBelowFloor,
				plan, bm.Width(), bm.Height(), config.MinDimension)
		}
		resized := raster.Resize(bm, plan.Scale)
		regs = ocrlayer.ProjectRegions(regions,
			float64(bm.Width()), float64(bm.Height()),
			float64(resized.Width()), float64(resized.Height()))
		data, err := raster.EncodeJPEG(resized, plan.Quality)
		if err != nil {
			return nil, err
		}
		img = EncodedImage{Data: data, Format: "JPEG", Width: resized.Width(), Height: resized.Height()}
	default:
		return nil, fmt.Errorf("unknown plan kind %d", int(plan.Kind))
	}

	page, err := config.Assemble(img, regs)
	if err != nil {
		return nil, fmt.Errorf("assembly failed for %s: %w", plan, err)
	}
	return &FitResult{
		Page:      page,
		Plan:      plan,
		Size:      len(page),
		Width:     img.Width,
		Height:    img.Height,
		BudgetMet: int64(len(page)) <= budget,
	}, nil
}

// originalEncoding returns the bytes that represent the bitmap without
// recompression: the caller's own bytes when they survived untouched, or a
// lossless PNG when a prior transform (the pixel-ceiling clamp) dropped them.
func originalEncoding(bm *raster.Bitmap) ([]byte, string, error) {
	if bm.Encoded != nil {
		return bm.Encoded, bm.Format, nil
	}
	data, err := raster.EncodePNG(bm)
	if err != nil {
		return nil, "", err
	}
	return data, "PNG", nil
}
