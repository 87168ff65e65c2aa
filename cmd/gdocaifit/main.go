// gdocaifit processes a PDF with Google Document AI and writes one
// budget-fitted searchable PDF per page.
//
// Document AI returns each page's rasterized image together with the
// recognized tokens; gdocaifit feeds both into the fit search so every output
// page carries an invisible text layer and stays under the size budget.
//
// Usage:
//
//	gdocaifit -pdf scan.pdf -config gdocai.yaml -budget-mb 10 -output ./out
//
// The YAML config carries the Document AI processor details:
//
//	project_id: my-project
//	location: eu
//	processor_id: abc123
//	credentials_file: /path/to/key.json  # optional, env var otherwise
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gardar/ocrpress/pkg/gdocai"
	"github.com/gardar/ocrpress/pkg/pagefit"
)

func loadGdocaiConfig(path string) (*gdocai.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg gdocai.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.ProjectID == "" || cfg.Location == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("config must set project_id, location and processor_id")
	}
	return &cfg, nil
}

func main() {
	pdfPath := flag.String("pdf", "", "Input PDF to process")
	configPath := flag.String("config", "", "YAML file with Document AI processor details")
	outputDir := flag.String("output", "", "Output directory for per-page PDFs")
	budgetMB := flag.Float64("budget-mb", 0, "Size budget per page in MB")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if *pdfPath == "" || *configPath == "" || *outputDir == "" {
		fmt.Println("Error: Must provide -pdf, -config and -output")
		os.Exit(1)
	}
	if *budgetMB <= 0 {
		fmt.Println("Error: -budget-mb must be positive")
		os.Exit(1)
	}
	budget := int64(*budgetMB * 1048576)

	cfg, err := loadGdocaiConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	pdfBytes, err := os.ReadFile(*pdfPath)
	if err != nil {
		fmt.Printf("Failed to read input PDF: %v\n", err)
		os.Exit(1)
	}

	doc, err := gdocai.ProcessDocument(context.Background(), pdfBytes, cfg)
	if err != nil {
		fmt.Printf("Document AI processing failed: %v\n", err)
		os.Exit(1)
	}

	extracts, err := gdocai.ExtractPages(doc)
	if err != nil {
		fmt.Printf("Failed to extract pages: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document AI returned %d pages\n", len(extracts))

	pages := make([]pagefit.PageInput, 0, len(extracts))
	pageNums := make([]int, 0, len(extracts))
	for i, extract := range extracts {
		if len(extract.Image) == 0 {
			fmt.Printf("Page %d has no embedded image, skipping\n", i+1)
			continue
		}
		pages = append(pages, pagefit.PageInput{Image: extract.Image, Regions: extract.Regions})
		pageNums = append(pageNums, i+1)
	}

	fitConfig := pagefit.DefaultConfig()
	fitConfig.Debug = *debug

	if err := os.MkdirAll(*outputDir, 0777); err != nil {
		fmt.Printf("Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	results := pagefit.FitBatch(pages, budget, fitConfig)

	failed := 0
	for i, pr := range results {
		pageNum := pageNums[i]
		if pr.Err != nil {
			fmt.Printf("Page %d failed: %v\n", pageNum, pr.Err)
			failed++
			continue
		}
		outPath := filepath.Join(*outputDir, fmt.Sprintf("page_%d.pdf", pageNum))
		if err := os.WriteFile(outPath, pr.Result.Page, 0666); err != nil {
			fmt.Printf("Failed to write %s: %v\n", outPath, err)
			failed++
			continue
		}
		status := "within budget"
		if !pr.Result.BudgetMet {
			status = "best effort, over budget"
		}
		fmt.Printf("Page %d: %s, %d bytes, plan %s (%s)\n",
			pageNum, outPath, pr.Result.Size, pr.Result.Plan, status)
	}
	if failed > 0 {
		fmt.Printf("%d of %d pages failed\n", failed, len(results))
		os.Exit(1)
	}
}
