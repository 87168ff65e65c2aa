package pagefit

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"testing"

	"github.com/gardar/ocrpress/pkg/ocrlayer"
)

// testPNG encodes a small gradient image so every codec path has real pixels
// to chew on.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 99, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// scriptedAssembler returns pages whose sizes follow a fixed script in call
// order, recording every attempt. The ladder's call order is deterministic,
// so scripts map one-to-one onto tiers.
type scriptedAssembler struct {
	mu      sync.Mutex
	sizes   []int
	calls   []EncodedImage
	regions [][]ocrlayer.TextRegion
}

func (s *scriptedAssembler) assemble(img EncodedImage, regions []ocrlayer.TextRegion) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.sizes[len(s.sizes)-1]
	if len(s.calls) < len(s.sizes) {
		size = s.sizes[len(s.calls)]
	}
	s.calls = append(s.calls, img)
	s.regions = append(s.regions, append([]ocrlayer.TextRegion(nil), regions...))
	return make([]byte, size), nil
}

func testConfig(fake *scriptedAssembler) Config {
	config := DefaultConfig()
	config.MinDimension = 60 // test images are around 100px
	config.Assemble = fake.assemble
	return config
}

func TestFitPageOriginalFits(t *testing.T) {
	fake := &scriptedAssembler{sizes: []int{9_000}}
	res, err := FitPage(testPNG(t, 100, 80), nil, 10_000, testConfig(fake))
	if err != nil {
		t.Fatalf("FitPage() error = %v", err)
	}
	if res.Plan.Kind != PlanOriginal {
		t.Fatalf("plan = %s, want original", res.Plan)
	}
	if !res.BudgetMet || res.Size != 9_000 {
		t.Fatalf("size = %d budgetMet = %v", res.Size, res.BudgetMet)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("original fit must stop the search, got %d attempts", len(fake.calls))
	}
	if fake.calls[0].Format != "PNG" {
		t.Fatalf("original tier must embed the caller's bytes, format = %q", fake.calls[0].Format)
	}
}

func TestFitPageQualityLadderFirstFit(t *testing.T) {
	// Original 15, then qualities 90..60 at 13/11/9/7 against budget 10:
	// quality 70 is the first that fits and must win even though 60 is smaller.
	fake := &scriptedAssembler{sizes: []int{15_000, 13_000, 11_000, 9_000, 7_000}}
	res, err := FitPage(testPNG(t, 100, 80), nil, 10_000, testConfig(fake))
	if err != nil {
		t.Fatalf("FitPage() error = %v", err)
	}
	want := RecodeQualityPlan(70)
	if res.Plan != want {
		t.Fatalf("plan = %s, want %s", res.Plan, want)
	}
	if res.Size != 9_000 || !res.BudgetMet {
		t.Fatalf("size = %d budgetMet = %v", res.Size, res.BudgetMet)
	}
	if len(fake.calls) != 4 {
		t.Fatalf("expected 4 attempts (original + 3 qualities), got %d", len(fake.calls))
	}
	// Quality tiers keep the original dimensions.
	if fake.calls[3].Width != 100 || fake.calls[3].Height != 80 {
		t.Fatalf("quality tier resized the image: %dx%d", fake.calls[3].Width, fake.calls[3].Height)
	}
}

func TestFitPageResizeLadder(t *testing.T) {
	// No quality fits (minimum 7 over a budget of 5); scale 0.9 misses at 6,
	// scale 0.7 lands at 4.5.
	fake := &scriptedAssembler{sizes: []int{15_000, 13_000, 11_000, 9_000, 7_000, 6_000, 4_500}}
	regions := []ocrlayer.TextRegion{
		ocrlayer.NewRegionFromBBox(10, 10, 60, 30, "word", 0.9),
	}
	res, err := FitPage(testPNG(t, 100, 80), regions, 5_000, testConfig(fake))
	if err != nil {
		t.Fatalf("FitPage() error = %v", err)
	}
	want := ResizeAndRecodePlan(0.7, 75)
	if res.Plan != want {
		t.Fatalf("plan = %s, want %s", res.Plan, want)
	}
	if !res.BudgetMet || res.Size != 4_500 {
		t.Fatalf("size = %d budgetMet = %v", res.Size, res.BudgetMet)
	}

	// The accepted attempt carries regions projected onto the resized image.
	last := fake.regions[len(fake.regions)-1]
	if len(last) != 1 {
		t.Fatalf("expected 1 region, got %d", len(last))
	}
	scaleX := float64(fake.calls[len(fake.calls)-1].Width) / 100.0
	wantX := 10 * scaleX
	if math.Abs(last[0].Quad[0].X-wantX) > 1e-9 {
		t.Fatalf("region not re-projected: x = %v, want %v", last[0].Quad[0].X, wantX)
	}
}

func TestFitPageBestEffortFallback(t *testing.T) {
	// Nothing ever fits. With a 100px longest side and a 60px floor only
	// scales 0.9 and 0.7 are legal, so the ladder makes 7 attempts total and
	// reports the smallest candidate without error.
	fake := &scriptedAssembler{sizes: []int{15_000, 13_000, 11_000, 9_000, 7_000, 6_500, 6_000}}
	res, err := FitPage(testPNG(t, 100, 80), nil, 1_000, testConfig(fake))
	if err != nil {
		t.Fatalf("best effort must not be an error, got %v", err)
	}
	if res.BudgetMet {
		t.Fatal("BudgetMet must be false on fallback")
	}
	if res.Size != 6_000 {
		t.Fatalf("fallback must carry the smallest candidate, size = %d", res.Size)
	}
	if res.Plan != ResizeAndRecodePlan(0.7, 75) {
		t.Fatalf("fallback plan = %s", res.Plan)
	}
	if len(fake.calls) != 7 {
		t.Fatalf("floor must cap the ladder at 7 attempts, got %d", len(fake.calls))
	}
	// No attempt may go below the legibility floor.
	for i, call := range fake.calls {
		longest := call.Width
		if call.Height > longest {
			longest = call.Height
		}
		if longest < 60 {
			t.Fatalf("attempt %d violated the floor: %dx%d", i, call.Width, call.Height)
		}
	}
}

func TestFitPageIdempotent(t *testing.T) {
	img := testPNG(t, 100, 80)
	sizes := []int{15_000, 13_000, 9_000}

	first, err := FitPage(img, nil, 10_000, testConfig(&scriptedAssembler{sizes: sizes}))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := FitPage(img, nil, 10_000, testConfig(&scriptedAssembler{sizes: sizes}))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Plan != second.Plan || first.Size != second.Size {
		t.Fatalf("search is not deterministic: %s/%d vs %s/%d",
			first.Plan, first.Size, second.Plan, second.Size)
	}
}

func TestFitPageFiltersRegions(t *testing.T) {
	fake := &scriptedAssembler{sizes: []int{1_000}}
	regions := []ocrlayer.TextRegion{
		ocrlayer.NewRegionFromBBox(0, 0, 10, 10, "keep-a", 0.9),
		ocrlayer.NewRegionFromBBox(0, 0, 10, 10, "drop", 0.4),
		ocrlayer.NewRegionFromBBox(0, 0, 10, 10, "keep-b", 0.6),
	}
	if _, err := FitPage(testPNG(t, 100, 80), regions, 10_000, testConfig(fake)); err != nil {
		t.Fatalf("FitPage() error = %v", err)
	}
	got := fake.regions[0]
	if len(got) != 2 || got[0].Text != "keep-a" || got[1].Text != "keep-b" {
		t.Fatalf("assembler saw wrong regions: %+v", got)
	}
}

func TestFitPagePixelCeilingClamp(t *testing.T) {
	fake := &scriptedAssembler{sizes: []int{1_000}}
	config := testConfig(fake)
	config.MaxPixels = 2_000 // forces a clamp on the 100x80 input
	config.MinDimension = 10

	regions := []ocrlayer.TextRegion{
		ocrlayer.NewRegionFromBBox(10, 10, 60, 30, "word", 0.9),
	}
	res, err := FitPage(testPNG(t, 100, 80), regions, 10_000, config)
	if err != nil {
		t.Fatalf("FitPage() error = %v", err)
	}
	if res.Width*res.Height > 2_000 {
		t.Fatalf("clamp ignored the ceiling: %dx%d", res.Width, res.Height)
	}
	// The clamp dropped the original bytes, so the original tier must be a
	// lossless re-encode with re-projected regions.
	if fake.calls[0].Format != "PNG" {
		t.Fatalf("clamped original tier format = %q", fake.calls[0].Format)
	}
	scaleX := float64(fake.calls[0].Width) / 100.0
	if math.Abs(fake.regions[0][0].Quad[0].X-10*scaleX) > 1e-9 {
		t.Fatalf("regions not re-projected after clamp: %v", fake.regions[0][0].Quad[0])
	}
}

func TestFitPageResourceExhausted(t *testing.T) {
	fake := &scriptedAssembler{sizes: []int{1_000}}
	config := testConfig(fake)
	config.MaxPixels = 100    // clamp would leave ~11px
	config.MinDimension = 600 // far above what the clamp can keep

	_, err := FitPage(testPNG(t, 100, 80), nil, 10_000, config)
	if !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("expected ErrResourceExhausted, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatal("no assembly may run after a resource failure")
	}
}

func TestApplyPlanResize(t *testing.T) {
	fake := &scriptedAssembler{sizes: []int{5_000}}
	regions := []ocrlayer.TextRegion{
		ocrlayer.NewRegionFromBBox(10, 10, 50, 30, "word", 0.9),
	}

	res, err := ApplyPlan(ResizeAndRecodePlan(0.7, 75), testPNG(t, 100, 80), regions, 10_000, testConfig(fake))
	if err != nil {
		t.Fatalf("ApplyPlan() error = %v", err)
	}
	if !res.BudgetMet || res.Width != 70 || res.Height != 56 {
		t.Fatalf("result = %+v", res)
	}
	if got := fake.regions[0][0].TopLeft().X; math.Abs(got-7) > 1e-9 {
		t.Fatalf("regions not projected onto the resized page, x = %f", got)
	}
}

func TestApplyPlanRejectsSubFloorScale(t *testing.T) {
	// 100 x 0.5 = 50px against a 60px floor: the plan cannot be applied to
	// this page no matter what it did for another one.
	fake := &scriptedAssembler{sizes: []int{10}}
	_, err := ApplyPlan(ResizeAndRecodePlan(0.5, 75), testPNG(t, 100, 80), nil, 10_000, testConfig(fake))
	if !errors.Is(err, ErrBelowFloor) {
		t.Fatalf("expected ErrBelowFloor, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatal("no assembly may run for an illegible scale")
	}
}

func TestFitPageRejectsBadInput(t *testing.T) {
	fake := &scriptedAssembler{sizes: []int{1_000}}
	if _, err := FitPage(testPNG(t, 10, 10), nil, 0, testConfig(fake)); err == nil {
		t.Fatal("expected error for non-positive budget")
	}
	if _, err := FitPage([]byte("junk"), nil, 1_000, testConfig(fake)); err == nil {
		t.Fatal("expected error for undecodable image")
	}
}
