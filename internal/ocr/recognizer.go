package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Recognizer turns an image into positioned words. A Recognizer that has
// returned an error is closed by the engine and never used again.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]RawWord, error)
	Close() error
}

// Factory builds a recognizer on first use and after a failure.
type Factory func() (Recognizer, error)

// TesseractCLI runs the tesseract binary and parses its TSV output.
type TesseractCLI struct {
	Path     string
	Language string
}

// NewTesseractCLI checks that the binary is on PATH.
func NewTesseractCLI(path, language string) (*TesseractCLI, error) {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return &TesseractCLI{Path: resolved, Language: language}, nil
}

// Recognize pipes the image as PNG on stdin.
func (t *TesseractCLI) Recognize(ctx context.Context, img image.Image) ([]RawWord, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Path, "stdin", "stdout", "-l", t.Language, "tsv")
	cmd.Stdin = &in
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("tesseract: %w", err)
		}
		return nil, fmt.Errorf("tesseract: %w: %s", err, msg)
	}
	return ParseTSV(&out)
}

// Close is a no-op; each call is a separate process.
func (t *TesseractCLI) Close() error { return nil }

// tsvColumns is the tesseract TSV header width:
// level page block par line word left top width height conf text
const tsvColumns = 12

// ParseTSV reads word rows (level 5) from tesseract TSV output.
func ParseTSV(r io.Reader) ([]RawWord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var words []RawWord
	header := true
	for scanner.Scan() {
		line := scanner.Text()
		if header {
			header = false
			if strings.HasPrefix(line, "level") {
				continue
			}
		}
		cols := strings.SplitN(line, "\t", tsvColumns)
		if len(cols) < tsvColumns || cols[0] != "5" {
			continue
		}

		nums := make([]float64, 5)
		ok := true
		for i, c := range cols[6:11] {
			v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
			if err != nil {
				ok = false
				break
			}
			nums[i] = v
		}
		if !ok {
			continue
		}
		left, top, width, height, conf := nums[0], nums[1], nums[2], nums[3], nums[4]
		words = append(words, RawWord{
			Text:       cols[11],
			Confidence: conf,
			X0:         left,
			Y0:         top,
			X1:         left + width,
			Y1:         top + height,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}
	return words, nil
}
