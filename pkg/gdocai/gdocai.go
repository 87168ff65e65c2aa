// Package gdocai adapts Google Document AI output to the region model the
// page-fitting pipeline consumes.
//
// The recognition engine itself is a black box behind one RPC: ProcessDocument
// sends the document bytes and returns the raw proto. ExtractPages then turns
// each proto page into the page image plus flat TextRegions, converting the
// engine's normalized quadrilateral vertices into pixel coordinates and
// carrying token confidences through unchanged.
//
// Usage Requirements:
//
// - Google Cloud project with Document AI API enabled
// - Document AI processor configured for OCR
// - Authentication via Config.CredentialsFile or, when unset, the
//   GOOGLE_APPLICATION_CREDENTIALS environment variable
package gdocai

import (
	"context"
	"fmt"
	"os"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/gardar/ocrpress/pkg/ocrlayer"
)

// Config identifies the Document AI processor to call and how to
// authenticate against it.
type Config struct {
	ProjectID   string `yaml:"project_id"`
	Location    string `yaml:"location"`
	ProcessorID string `yaml:"processor_id"`
	// CredentialsFile is the path to a service account key. Empty falls
	// back to the GOOGLE_APPLICATION_CREDENTIALS environment variable, and
	// failing that to the client's default credential discovery.
	CredentialsFile string `yaml:"credentials_file"`
}

// endpoint returns the regional Document AI endpoint for the configured
// location.
func (c *Config) endpoint() string {
	return fmt.Sprintf("%s-documentai.googleapis.com:443", c.Location)
}

// processorName returns the fully qualified resource name of the processor.
func (c *Config) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		c.ProjectID, c.Location, c.ProcessorID)
}

// credentialsPath resolves the service account key path, config first.
func (c *Config) credentialsPath() string {
	if c.CredentialsFile != "" {
		return c.CredentialsFile
	}
	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
}

// PageExtract is the recognition output for one page: the page image the
// engine rasterized and the regions detected on it, in image pixel
// coordinates.
type PageExtract struct {
	Image   []byte // encoded page image as returned by the engine
	Width   float64
	Height  float64
	Regions []ocrlayer.TextRegion
}

// ProcessDocument sends document bytes to the configured Document AI
// processor and returns the raw Document proto response.
func ProcessDocument(ctx context.Context, pdfBytes []byte, cfg *Config) (*documentaipb.Document, error) {
	opts := []option.ClientOption{option.WithEndpoint(cfg.endpoint())}
	if creds := cfg.credentialsPath(); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	defer client.Close()

	req := &documentaipb.ProcessRequest{
		Name: cfg.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdfBytes,
				MimeType: "application/pdf",
			},
		},
		SkipHumanReview: true,
	}

	resp, err := client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}
	return resp.Document, nil
}

// ExtractPages converts a Document AI response into one PageExtract per
// page. Pages without an embedded image get Image nil; callers that need the
// bitmap must rasterize separately.
func ExtractPages(doc *documentaipb.Document) ([]PageExtract, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, fmt.Errorf("document contains no pages")
	}

	extracts := make([]PageExtract, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		extract := PageExtract{}
		if dim := page.GetDimension(); dim != nil {
			extract.Width = float64(dim.Width)
			extract.Height = float64(dim.Height)
		}
		if img := page.GetImage(); img != nil {
			extract.Image = img.GetContent()
			// Prefer the image's own pixel size; Dimension can be in
			// points for PDF-native pages.
			if img.GetWidth() > 0 && img.GetHeight() > 0 {
				extract.Width = float64(img.GetWidth())
				extract.Height = float64(img.GetHeight())
			}
		}

		for _, token := range page.Tokens {
			region, ok := tokenRegion(token, doc.Text, extract.Width, extract.Height)
			if !ok {
				continue
			}
			extract.Regions = append(extract.Regions, region)
		}
		extracts = append(extracts, extract)
	}
	return extracts, nil
}

// tokenRegion converts one token's normalized bounding polygon into a pixel
// quadrilateral with its text and confidence.
func tokenRegion(token *documentaipb.Document_Page_Token, fullText string, w, h float64) (ocrlayer.TextRegion, bool) {
	layout := token.GetLayout()
	if layout == nil || layout.GetBoundingPoly() == nil || w <= 0 || h <= 0 {
		return ocrlayer.TextRegion{}, false
	}
	vertices := layout.GetBoundingPoly().GetNormalizedVertices()
	if len(vertices) < 4 {
		return ocrlayer.TextRegion{}, false
	}

	text := trimDetectedBreak(textFromLayout(layout, fullText), token)
	if text == "" {
		return ocrlayer.TextRegion{}, false
	}

	region := ocrlayer.TextRegion{
		Text:       text,
		Confidence: float64(layout.GetConfidence()),
	}
	for i := 0; i < 4; i++ {
		region.Quad[i] = ocrlayer.Point{
			X: float64(vertices[i].GetX()) * w,
			Y: float64(vertices[i].GetY()) * h,
		}
	}
	return region, true
}

// trimDetectedBreak drops the trailing whitespace a detected break appends
// to a token's text.
func trimDetectedBreak(text string, token *documentaipb.Document_Page_Token) string {
	if token.GetDetectedBreak() == nil ||
		token.GetDetectedBreak().GetType() == documentaipb.Document_Page_Token_DetectedBreak_TYPE_UNSPECIFIED {
		return text
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return text
	}
	switch runes[len(runes)-1] {
	case ' ', '\n', '\r', '\t':
		return string(runes[:len(runes)-1])
	}
	return text
}

// textFromLayout extracts text from a layout's text anchor segments.
func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	runes := []rune(fullText)
	total := len(runes)

	var text string
	for _, seg := range layout.TextAnchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > total {
			end = total
		}
		if start > end {
			start = end
		}
		text += string(runes[start:end])
	}
	return text
}
