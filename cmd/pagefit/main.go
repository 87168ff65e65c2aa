// pagefit is a command-line tool for fitting searchable page PDFs into a
// byte-size budget.
//
// It takes page images plus an hOCR file with the recognized text, assembles
// one single-page PDF per page with an invisible text layer, and compresses
// each page just enough to stay under the budget: original bytes first, then
// descending JPEG qualities, then descending resolutions.
//
// Usage:
//
//	pagefit -hocr document.hocr -budget-mb 10 [options]
//
// Required flags:
//
//	-hocr string      Path to hOCR file
//	-output string    Output path (file for -image, directory for -image-dir)
//	-budget-mb float  Size budget per page in MB
//
// Input options (one required):
//
//	-image string     Single page image
//	-image-dir string Directory of page images, sorted by name
//
// Processing options:
//
//	-config string    YAML file overriding ladders, floor and threshold
//	-debug            Visible text layer plus search tracing
//	-overwrite        Overwrite output files if they exist
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gardar/ocrpress/pkg/ocrlayer"
	"github.com/gardar/ocrpress/pkg/pagefit"
)

type yamlConfig struct {
	ConfidenceThreshold float64   `yaml:"confidence_threshold"`
	QualityLadder       []int     `yaml:"quality_ladder"`
	ScaleLadder         []float64 `yaml:"scale_ladder"`
	ResizeQuality       int       `yaml:"resize_quality"`
	MinDimension        int       `yaml:"min_dimension"`
	MaxPixels           int       `yaml:"max_pixels"`
	Workers             int       `yaml:"workers"`
}

// loadConfig overlays a YAML file onto the default fit config.
func loadConfig(path string) (pagefit.Config, error) {
	config := pagefit.DefaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return config, err
	}
	if yc.ConfidenceThreshold > 0 {
		config.ConfidenceThreshold = yc.ConfidenceThreshold
	}
	if len(yc.QualityLadder) > 0 {
		config.QualityLadder = yc.QualityLadder
	}
	if len(yc.ScaleLadder) > 0 {
		config.ScaleLadder = yc.ScaleLadder
	}
	if yc.ResizeQuality > 0 {
		config.ResizeQuality = yc.ResizeQuality
	}
	if yc.MinDimension > 0 {
		config.MinDimension = yc.MinDimension
	}
	if yc.MaxPixels > 0 {
		config.MaxPixels = yc.MaxPixels
	}
	if yc.Workers > 0 {
		config.Workers = yc.Workers
	}
	return config, nil
}

func main() {
	hocrPath := flag.String("hocr", "", "Path to a multi-page hOCR file")
	imagePath := flag.String("image", "", "Single page image")
	imageDirPath := flag.String("image-dir", "", "Directory containing page images")
	outputPath := flag.String("output", "", "Output path")
	budgetMB := flag.Float64("budget-mb", 0, "Size budget per page in MB")
	configPath := flag.String("config", "", "YAML config file")
	debug := flag.Bool("debug", false, "Enable debug mode")
	overwrite := flag.Bool("overwrite", false, "Overwrite output files if they exist")
	flag.Parse()

	if *hocrPath == "" {
		fmt.Println("Error: Must provide -hocr path")
		os.Exit(1)
	}
	if *imagePath == "" && *imageDirPath == "" {
		fmt.Println("Error: Must provide either -image or -image-dir")
		os.Exit(1)
	}
	if *outputPath == "" {
		fmt.Println("Error: Must provide -output path")
		os.Exit(1)
	}
	if *budgetMB <= 0 {
		fmt.Println("Error: -budget-mb must be positive")
		os.Exit(1)
	}
	budget := int64(*budgetMB * 1048576)

	config, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.Debug = *debug

	hocrData, err := os.ReadFile(*hocrPath)
	if err != nil {
		fmt.Printf("Failed to read hOCR file: %v\n", err)
		os.Exit(1)
	}
	hocrPages, err := ocrlayer.RegionsFromHOCR(hocrData)
	if err != nil {
		fmt.Printf("Failed to parse hOCR: %v\n", err)
		os.Exit(1)
	}

	// Collect page images in hOCR page order.
	var imagePaths []string
	if *imagePath != "" {
		imagePaths = []string{*imagePath}
	} else {
		imagePaths, err = filepath.Glob(filepath.Join(*imageDirPath, "*"))
		if err != nil {
			fmt.Printf("Error accessing image directory: %v\n", err)
			os.Exit(1)
		}
		sort.Strings(imagePaths)
		fmt.Printf("Found %d image files in %s\n", len(imagePaths), *imageDirPath)
	}
	if len(imagePaths) < len(hocrPages) {
		fmt.Printf("Error: not enough images (%d) for hOCR pages (%d)\n",
			len(imagePaths), len(hocrPages))
		os.Exit(1)
	}

	pages := make([]pagefit.PageInput, len(hocrPages))
	for i := range hocrPages {
		imgData, err := os.ReadFile(imagePaths[i])
		if err != nil {
			fmt.Printf("Failed to read image %s: %v\n", imagePaths[i], err)
			os.Exit(1)
		}

		// hOCR coordinates are relative to the hOCR page box; project them
		// onto the actual image when the two sizes disagree.
		regions := hocrPages[i].Regions
		cfg, _, err := image.DecodeConfig(bytes.NewReader(imgData))
		if err != nil {
			fmt.Printf("Failed to read image size of %s: %v\n", imagePaths[i], err)
			os.Exit(1)
		}
		hw, hh := hocrPages[i].Width, hocrPages[i].Height
		if hw > 0 && hh > 0 && (float64(cfg.Width) != hw || float64(cfg.Height) != hh) {
			regions = ocrlayer.ProjectRegions(regions, hw, hh, float64(cfg.Width), float64(cfg.Height))
		}

		pages[i] = pagefit.PageInput{Image: imgData, Regions: regions}
	}

	if *imageDirPath != "" {
		if err := os.MkdirAll(*outputPath, 0777); err != nil {
			fmt.Printf("Failed to create output directory: %v\n", err)
			os.Exit(1)
		}
	}

	results := pagefit.FitBatch(pages, budget, config)

	failed := 0
	for i, pr := range results {
		if pr.Err != nil {
			fmt.Printf("Page %d failed: %v\n", i+1, pr.Err)
			failed++
			continue
		}
		outPath := *outputPath
		if *imageDirPath != "" {
			outPath = filepath.Join(*outputPath, fmt.Sprintf("page_%d.pdf", i+1))
		}
		if _, err := os.Stat(outPath); err == nil && !*overwrite {
			fmt.Printf("Output file %s already exists. Use -overwrite to overwrite.\n", outPath)
			failed++
			continue
		}
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
			i+1, outPath, pr.Result.Size, pr.Result.Plan, status)
	}

	if failed > 0 {
		fmt.Printf("%d of %d pages failed\n", failed, len(results))
		os.Exit(1)
	}
}
