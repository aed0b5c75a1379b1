package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/c360/flowpipe/config"
	"github.com/c360/flowpipe/stage"
)

// Frame is a synthetic grayscale image flowing through the demo
// pipeline. Pix is row-major, one byte per pixel.
type Frame struct {
	Seq    uint64
	Width  int
	Height int
	Pix    []uint8
}

func (f Frame) clone() Frame {
	out := f
	out.Pix = make([]uint8, len(f.Pix))
	copy(out.Pix, f.Pix)
	return out
}

// newGenerator returns a transform that treats each incoming frame as
// a render token and emits the next synthetic frame: a diagonal
// gradient that scrolls with the sequence number. The display stage
// feeds tokens back here, so exactly one frame is in flight per token.
func newGenerator(width, height int) stage.Transform[Frame] {
	var seq uint64
	return func(_ context.Context, _ Frame) (Frame, error) {
		seq++
		f := Frame{
			Seq:    seq,
			Width:  width,
			Height: height,
			Pix:    make([]uint8, width*height),
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				f.Pix[y*width+x] = uint8((x + y + int(seq)) % 256)
			}
		}
		return f, nil
	}
}

// newMirror flips each row horizontally.
func newMirror() stage.Transform[Frame] {
	return func(_ context.Context, f Frame) (Frame, error) {
		out := f.clone()
		for y := 0; y < f.Height; y++ {
			row := out.Pix[y*f.Width : (y+1)*f.Width]
			for i, j := 0, len(row)-1; i < j; i, j = i+1, j-1 {
				row[i], row[j] = row[j], row[i]
			}
		}
		return out, nil
	}
}

// newJitter shifts each row by a random horizontal offset within
// [-amplitude, amplitude], wrapping at the edges.
func newJitter(amplitude int) stage.Transform[Frame] {
	return func(_ context.Context, f Frame) (Frame, error) {
		if amplitude <= 0 || f.Width == 0 {
			return f, nil
		}
		out := f.clone()
		for y := 0; y < f.Height; y++ {
			shift := rand.Intn(2*amplitude+1) - amplitude
			if shift == 0 {
				continue
			}
			src := f.Pix[y*f.Width : (y+1)*f.Width]
			dst := out.Pix[y*f.Width : (y+1)*f.Width]
			for x := 0; x < f.Width; x++ {
				dst[x] = src[((x-shift)%f.Width+f.Width)%f.Width]
			}
		}
		return out, nil
	}
}

// newTint brightens every pixel by amount, clamping at white.
func newTint(amount int) stage.Transform[Frame] {
	return func(_ context.Context, f Frame) (Frame, error) {
		out := f.clone()
		for i, p := range out.Pix {
			v := int(p) + amount
			if v > 255 {
				v = 255
			}
			if v < 0 {
				v = 0
			}
			out.Pix[i] = uint8(v)
		}
		return out, nil
	}
}

var heartMask = []string{
	".XX.XX.",
	"XXXXXXX",
	"XXXXXXX",
	".XXXXX.",
	"..XXX..",
	"...X...",
}

// newHeartOverlay stamps a small heart in the center of the frame.
func newHeartOverlay() stage.Transform[Frame] {
	return func(_ context.Context, f Frame) (Frame, error) {
		out := f.clone()
		mh := len(heartMask)
		mw := len(heartMask[0])
		offY := (f.Height - mh) / 2
		offX := (f.Width - mw) / 2
		if offY < 0 || offX < 0 {
			return out, nil
		}
		for my := 0; my < mh; my++ {
			for mx := 0; mx < mw; mx++ {
				if heartMask[my][mx] == 'X' {
					out.Pix[(offY+my)*f.Width+offX+mx] = 255
				}
			}
		}
		return out, nil
	}
}

// newDisplay consumes rendered frames, logging progress and halting
// once budget frames have been shown. A zero budget runs until
// stopped. The returned frame doubles as the render token fed back to
// the generator.
func newDisplay(budget int, logEvery int, logger *slog.Logger) stage.Transform[Frame] {
	if logEvery <= 0 {
		logEvery = 10
	}
	var shown int
	return func(_ context.Context, f Frame) (Frame, error) {
		shown++
		if shown%logEvery == 0 {
			logger.Info("frames displayed", "count", shown, "seq", f.Seq, "checksum", checksum(f))
		}
		if budget > 0 && shown >= budget {
			logger.Info("frame budget reached", "count", shown)
			return f, stage.ErrHalt
		}
		return f, nil
	}
}

func checksum(f Frame) uint32 {
	var sum uint32
	for _, p := range f.Pix {
		sum = sum*31 + uint32(p)
	}
	return sum
}

// registerTransforms wires the demo transforms into a registry so
// pipelines can reference them from a YAML definition.
func registerTransforms(reg *config.Registry[Frame], logger *slog.Logger) error {
	factories := map[string]config.Factory[Frame]{
		"generate": func(params map[string]any) (stage.Transform[Frame], error) {
			return newGenerator(intParam(params, "width", 64), intParam(params, "height", 48)), nil
		},
		"mirror": func(map[string]any) (stage.Transform[Frame], error) {
			return newMirror(), nil
		},
		"jitter": func(params map[string]any) (stage.Transform[Frame], error) {
			return newJitter(intParam(params, "amplitude", 2)), nil
		},
		"tint": func(params map[string]any) (stage.Transform[Frame], error) {
			return newTint(intParam(params, "amount", 40)), nil
		},
		"heart": func(map[string]any) (stage.Transform[Frame], error) {
			return newHeartOverlay(), nil
		},
		"display": func(params map[string]any) (stage.Transform[Frame], error) {
			return newDisplay(
				intParam(params, "budget", 0),
				intParam(params, "log_every", 10),
				logger,
			), nil
		},
	}

	for name, factory := range factories {
		if err := reg.Register(name, factory); err != nil {
			return fmt.Errorf("register transform %q: %w", name, err)
		}
	}
	return nil
}

// intParam reads an integer parameter, tolerating the numeric types
// YAML decoding produces.
func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
