package ocrlayer

// FilterByConfidence returns the regions whose confidence is strictly above
// threshold, preserving source order. Regions at or below the threshold are
// low-confidence noise and are dropped so they never reach the text layer.
func FilterByConfidence(regions []TextRegion, threshold float64) []TextRegion {
	kept := make([]TextRegion, 0, len(regions))
	for _, r := range regions {
		if r.Confidence > threshold {
			kept = append(kept, r)
		}
	}
	return kept
}
