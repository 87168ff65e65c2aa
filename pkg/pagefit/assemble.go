package pagefit

import (
	"bytes"
	"fmt"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/gardar/ocrpress/pkg/ocrlayer"
)

// EncodedImage is one candidate page image handed to the assembler: encoded
// bytes plus the pixel dimensions they decode to. Regions passed alongside
// must already be expressed in these dimensions.
type EncodedImage struct {
	Data   []byte
	Format string // "JPEG" or "PNG"
	Width  int
	Height int
}

// AssembleFunc builds a single-page document from a page image and its text
// regions and returns the serialized bytes. The fit search calls it once per
// compression attempt to measure candidate sizes.
type AssembleFunc func(img EncodedImage, regions []ocrlayer.TextRegion) ([]byte, error)

// NewPDFAssembler returns an AssembleFunc that draws the image full-bleed on
// a page sized to the image's pixel dimensions (1px = 1pt) and overlays an
// invisible, selectable text layer.
//
// Region coordinates arrive with a top-left origin; fpdf's page space is
// also top-left with Y growing downward, and fpdf itself performs the single
// conversion to the PDF's bottom-left device space when writing the content
// stream. No flip happens in this module.
func NewPDFAssembler(config Config) AssembleFunc {
	return func(img EncodedImage, regions []ocrlayer.TextRegion) ([]byte, error) {
		if len(img.Data) == 0 {
			return nil, fmt.Errorf("image data is empty")
		}
		w, h := float64(img.Width), float64(img.Height)

		pdf := fpdf.New("P", "pt", "A4", "")
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

		opts := fpdf.ImageOptions{ReadDpi: false, ImageType: img.Format}
		pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(img.Data))
		pdf.ImageOptions("page", 0, 0, w, h, false, opts, 0, "")

		if err := drawTextLayer(pdf, regions, config); err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		if err := pdf.Output(&buf); err != nil {
			return nil, fmt.Errorf("failed to generate PDF: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// drawTextLayer writes every region's text onto a named layer. The text is
// made invisible with zero alpha rather than omitted, so it stays in the
// content stream for search and selection.
func drawTextLayer(pdf *fpdf.Fpdf, regions []ocrlayer.TextRegion, config Config) error {
	layer := pdf.AddLayer(config.LayerName, true)
	pdf.BeginLayer(layer)
	pdf.SetFont(config.Font.Name, config.Font.Style, config.Font.MinSize)

	if config.Debug {
		pdf.SetTextColor(255, 0, 0) // highlight text in red
	} else {
		pdf.SetAlpha(0.0, "Normal") // hide text from normal view
	}

	encodingErrors := 0
	for _, region := range regions {
		drawRegion(pdf, region, config.Font, config.Debug, &encodingErrors)
	}
	pdf.EndLayer()

	// Report encoding errors if more than a threshold
	if len(regions) > 0 && encodingErrors > len(regions)/10 {
		return fmt.Errorf("character encoding issues in %d of %d regions",
			encodingErrors, len(regions))
	}
	return nil
}

// drawRegion renders one region's text at its top-left corner, with the font
// size derived from the region height.
func drawRegion(pdf *fpdf.Fpdf, region ocrlayer.TextRegion, font FontConfig,
	debug bool, encodingErrors *int) {

	size := font.HeightRatio * region.Height()
	if size < font.MinSize {
		size = font.MinSize
	}
	pdf.SetFontSize(size)

	// Convert text to ISO-8859-1 to avoid PDF encoding issues
	latin1, err := charmap.ISO8859_1.NewEncoder().String(region.Text)
	if err != nil {
		*encodingErrors++
		latin1 = region.Text // fallback to raw text
	}

	tl := region.TopLeft()
	pdf.Text(tl.X, tl.Y+size*font.AscentRatio, latin1)

	if debug {
		pdf.Rect(tl.X, tl.Y, region.Width(), region.Height(), "D")
	}
}
