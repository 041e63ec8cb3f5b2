package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t300\t40\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t100\t40\t96.5\tOLD\n" +
	"5\t1\t1\t1\t1\t2\t120\t12\t190\t38\t93.5\tTOM\n" +
	"5\t1\t1\t1\t2\t1\t10\t60\t120\t30\t80\t45%\n" +
	"5\t1\t1\t1\t2\t2\t140\t60\t60\t30\t-1\t \n" +
	"5\t1\t1\t1\t2\t3\t210\t60\t100\t30\t90\tAlc./Vol.\n" +
	"5\t1\t2\t1\t1\t1\t10\t200\t200\t10\t70\t-----\n"

type stubRunner struct {
	out   string
	err   error
	name  string
	args  []string
	stdin []byte
}

func (r *stubRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	r.name, r.args, r.stdin = name, args, stdin
	if r.err != nil {
		return nil, []byte("Error in pixReadMem"), r.err
	}
	return []byte(r.out), nil, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestParseTSV_GroupsWordsIntoLines(t *testing.T) {
	frags := parseTSV(sampleTSV, GranularityLine)
	require.Len(t, frags, 3)

	assert.Equal(t, "OLD TOM", frags[0].Text)
	assert.InDelta(t, 0.95, frags[0].Confidence, 1e-9)
	require.NotNil(t, frags[0].Position)
	assert.Equal(t, extract.Region{X: 10, Y: 10, Width: 300, Height: 40}, *frags[0].Position)

	assert.Equal(t, "45% Alc./Vol.", frags[1].Text)
	assert.InDelta(t, 0.85, frags[1].Confidence, 1e-9)

	assert.Equal(t, "-----", frags[2].Text)
	assert.Empty(t, DropNoise(frags[2:]))
}

func TestParseTSV_Paragraphs(t *testing.T) {
	frags := parseTSV(sampleTSV, GranularityParagraph)
	require.Len(t, frags, 2)
	assert.Equal(t, "OLD TOM 45% Alc./Vol.", frags[0].Text)
	assert.InDelta(t, 0.9, frags[0].Confidence, 1e-9)
}

func TestParseTSV_EmptyOutput(t *testing.T) {
	assert.Empty(t, parseTSV("", GranularityLine))
	assert.Empty(t, parseTSV("level\tpage_num\n", GranularityLine))
}

func TestParseGranularity(t *testing.T) {
	assert.Equal(t, GranularityParagraph, ParseGranularity(" Paragraph "))
	assert.Equal(t, GranularityLine, ParseGranularity("word"))
	assert.Equal(t, GranularityLine, ParseGranularity(""))
}

func TestExtractor_RunsTesseractWithNormalizedImage(t *testing.T) {
	r := &stubRunner{out: sampleTSV}
	e := newExtractor(Config{Lang: "eng", PSM: 6, TessdataDir: "/td"}, r, quietLogger())

	frags, err := e.Extract(context.Background(), extract.Image{ID: "a.png", Data: pngBytes(t, 40, 20)})
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "OLD TOM", frags[0].Text)

	assert.Equal(t, "tesseract", r.name)
	assert.Equal(t, []string{"stdin", "stdout", "-l", "eng", "--psm", "6", "--tessdata-dir", "/td", "tsv"}, r.args)
	_, format, err := image.DecodeConfig(bytes.NewReader(r.stdin))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestExtractor_CommandFailureIsExtractionError(t *testing.T) {
	e := newExtractor(Config{}, &stubRunner{err: errors.New("exit status 1")}, quietLogger())
	_, err := e.Extract(context.Background(), extract.Image{ID: "a.png", Data: pngBytes(t, 10, 10)})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)
	assert.Contains(t, err.Error(), "pixReadMem")
}

func TestExtractor_CancelledContextReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newExtractor(Config{}, &stubRunner{err: errors.New("signal: killed")}, quietLogger())
	_, err := e.Extract(ctx, extract.Image{ID: "a.png", Data: pngBytes(t, 10, 10)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeImage(t *testing.T) {
	t.Run("png", func(t *testing.T) {
		n, err := NormalizeImage(pngBytes(t, 30, 20), Limits{})
		require.NoError(t, err)
		assert.Equal(t, "png", n.Format)
		assert.Equal(t, 30, n.Width)
		assert.Equal(t, 20, n.Height)
		assert.False(t, n.Scaled)
	})

	t.Run("jpeg is accepted", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 16)), nil))
		n, err := NormalizeImage(buf.Bytes(), Limits{})
		require.NoError(t, err)
		assert.Equal(t, "jpeg", n.Format)
	})

	t.Run("downscales long side", func(t *testing.T) {
		n, err := NormalizeImage(pngBytes(t, 400, 100), Limits{MaxDimension: 200})
		require.NoError(t, err)
		assert.True(t, n.Scaled)
		assert.Equal(t, 200, n.Width)
		assert.Equal(t, 50, n.Height)
	})

	failures := map[string]struct {
		data func(t *testing.T) []byte
		lim  Limits
	}{
		"empty":   {data: func(*testing.T) []byte { return nil }},
		"garbage": {data: func(*testing.T) []byte { return []byte("definitely not an image") }},
		"gif": {data: func(t *testing.T) []byte {
			var buf bytes.Buffer
			require.NoError(t, gif.Encode(&buf, image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black}), nil))
			return buf.Bytes()
		}},
		"too many bytes":  {data: func(t *testing.T) []byte { return pngBytes(t, 10, 10) }, lim: Limits{MaxBytes: 8}},
		"too many pixels": {data: func(t *testing.T) []byte { return pngBytes(t, 100, 100) }, lim: Limits{MaxPixels: 500}},
	}
	for name, tc := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeImage(tc.data(t), tc.lim)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrExtraction)
		})
	}
}
