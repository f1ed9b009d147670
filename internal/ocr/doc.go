/*
Package ocr captures a display, prepares the image and recognises its words,
returning boxes in the display's logical coordinates.

Three pixel spaces are involved: the logical screen, the capture (logical
size times the display scale factor, capped at 4096 per side) and the
preprocessed image (resampled to a fixed width). Rescale walks a box back
through both ratios.

The default recogniser runs the tesseract binary; build with -tags tesseract
to link libtesseract through gosseract instead.
*/
package ocr
