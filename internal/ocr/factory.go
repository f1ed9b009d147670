//go:build !tesseract

package ocr

// DefaultFactory shells out to the tesseract binary. Build with -tags
// tesseract to link libtesseract instead.
func DefaultFactory(tesseractPath, language string) Factory {
	return func() (Recognizer, error) {
		return NewTesseractCLI(tesseractPath, language)
	}
}
