package pagefit

import (
	"io"
	"os"
)

// Config holds the knobs for the fit search and the assembled text layer.
// Zero values for ladders and limits are replaced with the defaults below.
// ConfidenceThreshold is the one exception: zero is honored as-is and keeps
// every region with nonzero confidence, so Config{} matches DefaultConfig()
// in everything but the threshold.
type Config struct {
	ConfidenceThreshold float64   // regions at or below this are dropped
	QualityLadder       []int     // descending JPEG qualities for tier 1
	ScaleLadder         []float64 // descending uniform scales for tier 2
	ResizeQuality       int       // JPEG quality used for every resize attempt
	MinDimension        int       // legibility floor for the longest dimension, px
	MaxPixels           int       // hard pixel-count ceiling before any search step
	Workers             int       // max concurrent pages in FitBatch (0 = NumCPU)
	LayerName           string    // name of the text layer in the output
	Font                FontConfig
	Assemble            AssembleFunc // nil = PDF assembler built from this config
	Debug               bool         // visible text layer plus search tracing
	Logger              io.Writer    // destination for tracing (nil = stdout)
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.5,
		QualityLadder:       []int{90, 80, 70, 60},
		ScaleLadder:         []float64{0.9, 0.7, 0.5, 0.35, 0.25},
		ResizeQuality:       75,
		MinDimension:        600,
		MaxPixels:           50_000_000,
		LayerName:           "OCR Text",
		Font:                DefaultFont,
	}
}

// withDefaults fills unset fields so partially-populated configs work.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QualityLadder == nil {
		c.QualityLadder = d.QualityLadder
	}
	if c.ScaleLadder == nil {
		c.ScaleLadder = d.ScaleLadder
	}
	if c.ResizeQuality == 0 {
		c.ResizeQuality = d.ResizeQuality
	}
	if c.MinDimension == 0 {
		c.MinDimension = d.MinDimension
	}
	if c.MaxPixels == 0 {
		c.MaxPixels = d.MaxPixels
	}
	if c.LayerName == "" {
		c.LayerName = d.LayerName
	}
	if c.Font == (FontConfig{}) {
		c.Font = d.Font
	}
	if c.Logger == nil {
		c.Logger = os.Stdout
	}
	if c.Assemble == nil {
		c.Assemble = NewPDFAssembler(c)
	}
	return c
}

// FontConfig contains font settings for the invisible text layer.
type FontConfig struct {
	Name        string  // font name (e.g. "Helvetica")
	Style       string  // font style ("", "B", "I", "BI")
	MinSize     float64 // lower bound for the derived font size
	HeightRatio float64 // font size as a fraction of region height
	AscentRatio float64 // vertical positioning ratio
}

// DefaultFont uses Helvetica, which is tried and tested for OCR layers.
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Style:       "",
	MinSize:     8,
	HeightRatio: 0.8,
	AscentRatio: 0.718,
}
