package app

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// OCREngine recognizes text on scanned PDF pages. Each page is rendered to
// PNG with poppler's pdftoppm, lightly preprocessed, then passed to
// Tesseract.
type OCREngine struct {
	language string
	timeout  time.Duration
}

func NewOCREngine(language string, timeout time.Duration) (*OCREngine, error) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm not found: %w", err)
	}
	if language == "" {
		language = "eng"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OCREngine{language: language, timeout: timeout}, nil
}

// RecognizePage renders one PDF page and OCRs it.
func (e *OCREngine) RecognizePage(pdfPath string, page int) (string, error) {
	dir, err := os.MkdirTemp("", "hireflow-ocr-*")
	if err != nil {
		return "", fmt.Errorf("ocr temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-f", fmt.Sprint(page), "-l", fmt.Sprint(page),
		"-r", "200", "-png", pdfPath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm page %d: %v: %s", page, err, out)
	}

	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image for page %d", page)
	}

	processed, err := e.preprocess(matches[0])
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(e.language); err != nil {
		return "", fmt.Errorf("set ocr language: %w", err)
	}
	if err := client.SetImage(processed); err != nil {
		return "", fmt.Errorf("set ocr image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr page %d: %w", page, err)
	}
	return text, nil
}

// preprocess applies grayscale, contrast and sharpen passes that improve
// Tesseract accuracy on photographed or low-quality scans.
func (e *OCREngine) preprocess(path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("open page image: %w", err)
	}
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 15)
	gray = imaging.Sharpen(gray, 0.7)
	if gray.Bounds().Dy() < 900 {
		gray = imaging.Resize(gray, 0, 1300, imaging.Lanczos)
	}
	out := path + ".proc.png"
	if err := imaging.Save(gray, out); err != nil {
		return "", fmt.Errorf("save processed image: %w", err)
	}
	return out, nil
}
