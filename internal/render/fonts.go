package render

import (
	"fmt"
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Fonts holds the regular and bold typefaces used on posters. Custom TTF files
// can be configured; the embedded Go fonts are the fallback.
//
// font.Face values are not safe for concurrent use, so measurement goes
// through a mutex-guarded cache and drawing gets fresh faces per render.
type Fonts struct {
	regular *truetype.Font
	bold    *truetype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	size float64
	bold bool
}

// NewFonts loads the typefaces at regularPath and boldPath. Empty or unreadable
// paths fall back to Go Regular / Go Bold.
func NewFonts(regularPath, boldPath string, logger *zap.Logger) (*Fonts, error) {
	regular, err := loadFont(regularPath, goregular.TTF, logger)
	if err != nil {
		return nil, fmt.Errorf("loading regular font: %w", err)
	}
	bold, err := loadFont(boldPath, gobold.TTF, logger)
	if err != nil {
		return nil, fmt.Errorf("loading bold font: %w", err)
	}

	return &Fonts{
		regular: regular,
		bold:    bold,
		faces:   make(map[faceKey]font.Face),
	}, nil
}

// DefaultFonts returns the embedded Go fonts. It cannot fail in practice.
func DefaultFonts() *Fonts {
	f, err := NewFonts("", "", zap.NewNop())
	if err != nil {
		panic(err)
	}
	return f
}

func loadFont(path string, fallback []byte, logger *zap.Logger) (*truetype.Font, error) {
	data := fallback
	if path != "" {
		custom, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("could not load custom font, using default",
				zap.String("path", path),
				zap.Error(err),
			)
		} else {
			data = custom
		}
	}
	return truetype.Parse(data)
}

// Face returns a new face at size. Callers own it for the duration of one render.
func (f *Fonts) Face(size float64, bold bool) font.Face {
	tf := f.regular
	if bold {
		tf = f.bold
	}
	return truetype.NewFace(tf, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// MeasureString returns the advance width of text in pixels.
func (f *Fonts) MeasureString(text string, size float64, bold bool) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := faceKey{size: size, bold: bold}
	face, ok := f.faces[key]
	if !ok {
		face = f.Face(size, bold)
		f.faces[key] = face
	}
	return float64(font.MeasureString(face, text)) / 64
}
