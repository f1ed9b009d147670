package desktoptest

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/CometPilot/backend/internal/desktop"
)

func TestCaptureIsWhite(t *testing.T) {
	f := &Fake{}
	img, err := f.Capture(context.Background(), desktop.Display{}, 40, 30)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
	assert.Equal(t, color.Gray{Y: 255}, img.At(0, 0))
	assert.Equal(t, color.Gray{Y: 255}, img.At(39, 29))

	_, err = f.Capture(context.Background(), desktop.Display{}, 0, 30)
	assert.Error(t, err)
}

func TestScrollRecordsDirection(t *testing.T) {
	f := &Fake{}
	require.NoError(t, f.Scroll("up", 5))

	calls := f.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "scroll", calls[0].Op)
	assert.Equal(t, "up", calls[0].Direction)
	assert.Equal(t, 5, calls[0].Amount)
}
