package layout

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleveque/promo-composer/internal/model"
)

// fixedMeasurer gives every rune the same advance: half the font size.
type fixedMeasurer struct{}

func (fixedMeasurer) MeasureString(text string, fontSize float64, _ bool) float64 {
	return float64(utf8.RuneCountInString(text)) * fontSize / 2
}

func runeWidth(s string) float64 { return float64(utf8.RuneCountInString(s)) * 10 }

func TestWrap_Greedy(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth float64
		want     []string
	}{
		{"breaks at overflow", "AAAA BBBB", runeWidth("AAAA"), []string{"AAAA", "BBBB"}},
		{"fits on one line", "AAAA BBBB", runeWidth("AAAA BBBB"), []string{"AAAA BBBB"}},
		{"wide max fits on one line", "AAAA BBBB", 10000, []string{"AAAA BBBB"}},
		{"newlines wrap independently", "Hello\nWorld", 10000, []string{"Hello", "World"}},
		{"blank line preserved", "a\n\nb", 10000, []string{"a", "", "b"}},
		{"long word alone", "tiny enormousword x", runeWidth("tiny"), []string{"tiny", "enormousword", "x"}},
		{"collapses whitespace", "  a   b  ", 10000, []string{"a b"}},
		{"empty text", "", 100, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.text, tt.maxWidth, runeWidth))
		})
	}
}

func TestClamp(t *testing.T) {
	lines := []string{"one", "two", "three"}
	assert.Equal(t, lines, Clamp(lines, 3))
	assert.Equal(t, []string{"one", "two…"}, Clamp(lines, 2))
	// The input slice is not modified.
	assert.Equal(t, "two", lines[1])
}

func TestLayout_UnknownFormat(t *testing.T) {
	r := NewRegistry(fixedMeasurer{})
	_, err := r.Layout(model.Format("640x480"), "Hello")
	require.Error(t, err)

	var cfgErr *model.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
	assert.True(t, errors.Is(err, model.ErrUnsupportedFormat))
}

func TestLayout_CanvasSizes(t *testing.T) {
	r := NewRegistry(fixedMeasurer{})
	sizes := map[model.Format][2]int{
		model.FormatStory:     {900, 1600},
		model.FormatSquare:    {1200, 1200},
		model.FormatLandscape: {1200, 628},
	}
	for format, size := range sizes {
		d, err := r.Layout(format, "Title")
		require.NoError(t, err)
		assert.Equal(t, size[0], d.Width, format)
		assert.Equal(t, size[1], d.Height, format)
	}
}

func TestLayout_RectsInsideCanvasAndPhotoClearOfCTA(t *testing.T) {
	r := NewRegistry(fixedMeasurer{})
	titles := []string{
		"",
		"Hi",
		"16 Water Attractions\nOne Epic Splash Day.",
		strings.Repeat("word ", 80),
		strings.Repeat("line\n", 20),
		"Supercalifragilisticexpialidocious-and-then-some-more-characters",
	}

	for _, format := range r.Formats() {
		for _, title := range titles {
			d, err := r.Layout(format, title)
			require.NoError(t, err)

			canvas := d.Canvas()
			rects := map[string]model.Rect{
				"panel":  d.Panel,
				"photo":  d.Photo,
				"cta":    d.CTA.Slot,
				"logo":   d.Logo.Bounds(),
				"qr":     d.QR,
				"handle": d.Handle(),
			}
			for name, rect := range rects {
				assert.True(t, rect.Within(canvas), "%s %s outside canvas: %+v", format, name, rect)
				assert.Positive(t, rect.W, "%s %s width", format, name)
				assert.Positive(t, rect.H, "%s %s height", format, name)
			}
			assert.False(t, d.Photo.Intersects(d.CTA.Slot), "%s photo overlaps CTA", format)
			assert.False(t, d.Photo.Intersects(d.Panel), "%s panel covers photo", format)
			assert.True(t, d.CTA.Slot.Within(d.Panel), "%s CTA outside panel", format)
			assert.GreaterOrEqual(t, d.TitleLines, 1)
			assert.LessOrEqual(t, d.TitleLines, d.Title.MaxLines)
		}
	}
}

func TestLayout_StoryAnchorsFollowTitleLines(t *testing.T) {
	r := NewRegistry(fixedMeasurer{})

	one, err := r.Layout(model.FormatStory, "Short")
	require.NoError(t, err)
	two, err := r.Layout(model.FormatStory, "Hello\nWorld")
	require.NoError(t, err)

	assert.Equal(t, 1, one.TitleLines)
	assert.Equal(t, 2, two.TitleLines)
	assert.InDelta(t, one.Title.Advance(), two.CTA.Slot.Y-one.CTA.Slot.Y, 1e-9)
	assert.InDelta(t, one.Title.Advance(), two.Photo.Y-one.Photo.Y, 1e-9)
}

func TestLayout_SquareCTAIsAbsolute(t *testing.T) {
	r := NewRegistry(fixedMeasurer{})

	one, err := r.Layout(model.FormatSquare, "Short")
	require.NoError(t, err)
	three, err := r.Layout(model.FormatSquare, "a\nb\nc")
	require.NoError(t, err)

	assert.Equal(t, one.CTA.Slot, three.CTA.Slot)
	assert.InDelta(t, one.Panel.Right()-one.CTA.Inset, one.CTA.Slot.Right(), 1e-9)
}

func TestDescriptor_ClampScale(t *testing.T) {
	r := NewRegistry(fixedMeasurer{})
	story, _ := r.Layout(model.FormatStory, "")
	square, _ := r.Layout(model.FormatSquare, "")

	assert.Equal(t, 5.0, story.ClampScale(50))
	assert.Equal(t, 3.0, square.ClampScale(50))
	assert.Equal(t, 0.1, story.ClampScale(-2))
	assert.Equal(t, 1.5, square.ClampScale(1.5))
}
