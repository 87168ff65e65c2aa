package ocrlayer

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

// PageRegions is the flat recognition result for one page: the pixel size of
// the bitmap the regions were detected on and the regions themselves.
type PageRegions struct {
	Width   float64
	Height  float64
	Regions []TextRegion
}

// RegionsFromHOCR parses hOCR HTML into one PageRegions per ocr_page
// element. Word boxes come from ocrx_word bbox properties and confidence
// from x_wconf (hOCR reports 0-100, stored here as 0-1). Words without a
// bounding box are skipped.
func RegionsFromHOCR(data []byte) ([]PageRegions, error) {
	decoded, err := decodeCharset(data)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(string(decoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse hOCR HTML: %w", err)
	}

	var pages []PageRegions
	var findPages func(*html.Node)
	findPages = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocr_page") {
			pages = append(pages, processPage(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findPages(c)
		}
	}
	findPages(doc)

	if len(pages) == 0 {
		return nil, fmt.Errorf("hOCR data contains no pages")
	}
	return pages, nil
}

// processPage flattens every ocrx_word under a page element into regions,
// ignoring the carea/paragraph/line hierarchy above them.
func processPage(pageNode *html.Node) PageRegions {
	page := PageRegions{}
	if bbox, ok := parseBBox(getAttrVal(pageNode, "title")); ok {
		page.Width = bbox[2]
		page.Height = bbox[3]
	}

	var findWords func(*html.Node)
	findWords = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocrx_word") {
			if region, ok := processWord(n); ok {
				page.Regions = append(page.Regions, region)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findWords(c)
		}
	}
	findWords(pageNode)
	return page
}

func processWord(n *html.Node) (TextRegion, bool) {
	title := getAttrVal(n, "title")
	bbox, ok := parseBBox(title)
	if !ok {
		return TextRegion{}, false
	}

	confidence := 1.0
	if conf, ok := parseTitle(title)["x_wconf"]; ok && len(conf) > 0 {
		if v, err := strconv.ParseFloat(conf[0], 64); err == nil {
			confidence = v / 100
		}
	}

	text := extractTextContent(n)
	if text == "" {
		return TextRegion{}, false
	}

	return NewRegionFromBBox(bbox[0], bbox[1], bbox[2], bbox[3], text, confidence), true
}

// parseTitle splits an hOCR title attribute into its semicolon-separated
// properties, e.g. "bbox 10 20 30 40; x_wconf 95".
func parseTitle(title string) map[string][]string {
	result := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		items := strings.Fields(strings.TrimSpace(part))
		if len(items) > 0 {
			result[items[0]] = items[1:]
		}
	}
	return result
}

func parseBBox(title string) ([4]float64, bool) {
	props, ok := parseTitle(title)["bbox"]
	if !ok || len(props) < 4 {
		return [4]float64{}, false
	}
	var bbox [4]float64
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(props[i], 64)
		if err != nil {
			return [4]float64{}, false
		}
		bbox[i] = v
	}
	return bbox, true
}

// decodeCharset converts non-UTF-8 hOCR to UTF-8. Tesseract emits UTF-8;
// older engines declare ISO-8859-1 in a meta charset.
func decodeCharset(data []byte) ([]byte, error) {
	content := string(data)
	if idx := strings.Index(content, "charset="); idx >= 0 {
		snippet := strings.ToLower(content[idx+len("charset="):])
		if fields := strings.FieldsFunc(snippet, func(r rune) bool {
			return r == '"' || r == ';' || r == '\'' || r == '>'
		}); len(fields) > 0 && fields[0] != "utf-8" {
			decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", fields[0], err)
			}
			return decoded, nil
		}
	}
	return data, nil
}

func extractTextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var text string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text += extractTextContent(c)
	}
	return strings.TrimSpace(text)
}

func hasClass(n *html.Node, class string) bool {
	return strings.Contains(getAttrVal(n, "class"), class)
}

func getAttrVal(n *html.Node, attrName string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrName {
			return attr.Val
		}
	}
	return ""
}
