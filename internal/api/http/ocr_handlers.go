package http

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/CometPilot/backend/internal/ocr"
)

// MaxImageUpload bounds POST /ocr/image bodies.
const MaxImageUpload = 20 << 20

var acceptedImages = []string{"image/png", "image/jpeg", "image/gif"}

// ClickRequest is the body of POST /ocr/click.
type ClickRequest struct {
	Target string `json:"target" binding:"required"`
}

// OCRScan captures a display and returns its words
func (h *Handlers) OCRScan(c *gin.Context) {
	if h.ocr == nil {
		unavailable(c, "OCR")
		return
	}
	scan, err := h.ocr.Scan(c.Request.Context(), c.Query("display"))
	if err != nil {
		errorJSON(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"display":  scan.Display,
		"geometry": scan.Geometry,
		"words":    scan.Words,
		"text":     ocr.Text(scan.Words),
	})
}

// OCRClick clicks on-screen text
func (h *Handlers) OCRClick(c *gin.Context) {
	if h.clicker == nil {
		unavailable(c, "OCR click")
		return
	}
	var req ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, h.clicker.OCRClick(c.Request.Context(), req.Target))
}

// OCRImage recognises an uploaded image. The image is either the "image"
// field of a multipart form or the raw request body.
func (h *Handlers) OCRImage(c *gin.Context) {
	if h.ocr == nil {
		unavailable(c, "OCR")
		return
	}

	data, err := readUpload(c)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), acceptedImages...) {
		errorJSON(c, http.StatusUnsupportedMediaType, "unsupported image type: "+mt.String())
		return
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "failed to decode image: "+err.Error())
		return
	}

	words, err := h.ocr.RecognizeImage(c.Request.Context(), img)
	if err != nil {
		errorJSON(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mime":  mt.String(),
		"words": words,
		"text":  ocr.Text(words),
	})
}

func readUpload(c *gin.Context) ([]byte, error) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, MaxImageUpload)
	c.Request.Body = body

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(body)
}
