package ocr

import (
	"math"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
)

// Granularity selects how recognized words are grouped into fragments.
type Granularity string

const (
	GranularityLine      Granularity = "line"
	GranularityParagraph Granularity = "paragraph"
)

// ParseGranularity maps a config value, defaulting to line.
func ParseGranularity(s string) Granularity {
	if strings.EqualFold(strings.TrimSpace(s), string(GranularityParagraph)) {
		return GranularityParagraph
	}
	return GranularityLine
}

type tsvGroup struct {
	words          []string
	confSum        float64
	confN          int
	minX, minY     float64
	maxX, maxY     float64
}

// parseTSV turns tesseract TSV output into fragments, grouping word rows
// (level 5) by line or paragraph in reading order. Word confidences (0..100)
// are averaged into a 0..1 fragment confidence.
func parseTSV(out string, g Granularity) []extract.TextFragment {
	var order []string
	groups := map[string]*tsvGroup{}

	for i, ln := range strings.Split(out, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue
		} // skip header
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[11:], " "))
		conf, err := strconv.ParseFloat(cols[10], 64)
		if text == "" || err != nil || conf < 0 {
			continue
		}

		key := strings.Join(cols[1:4], ".")
		if g == GranularityLine {
			key += "." + cols[4]
		}
		grp, ok := groups[key]
		if !ok {
			grp = &tsvGroup{minX: math.MaxFloat64, minY: math.MaxFloat64}
			groups[key] = grp
			order = append(order, key)
		}
		grp.words = append(grp.words, text)
		grp.confSum += conf
		grp.confN++

		left, _ := strconv.ParseFloat(cols[6], 64)
		top, _ := strconv.ParseFloat(cols[7], 64)
		w, _ := strconv.ParseFloat(cols[8], 64)
		h, _ := strconv.ParseFloat(cols[9], 64)
		grp.minX = math.Min(grp.minX, left)
		grp.minY = math.Min(grp.minY, top)
		grp.maxX = math.Max(grp.maxX, left+w)
		grp.maxY = math.Max(grp.maxY, top+h)
	}

	frags := make([]extract.TextFragment, 0, len(order))
	for _, key := range order {
		grp := groups[key]
		region := &extract.Region{X: grp.minX, Y: grp.minY, Width: grp.maxX - grp.minX, Height: grp.maxY - grp.minY}
		conf := grp.confSum / float64(grp.confN) / 100.0
		if f, ok := extract.Fragment(strings.Join(grp.words, " "), conf, region); ok {
			frags = append(frags, f)
		}
	}
	return frags
}
