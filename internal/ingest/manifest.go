package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/joseph-ayodele/label-verifier/internal/common"
)

// ManifestRow is one image of a batch manifest and the values declared for it.
type ManifestRow struct {
	Line     int
	Image    string
	RuleSet  string
	Declared map[string]string // column name -> value; blank cells are omitted
}

// Column names with a fixed meaning; every other column is a declared field.
var (
	imageColumns   = []string{"image_filename", "image", "filename"}
	ruleSetColumns = []string{"rule_set", "ruleset"}
)

// ReadManifestFile opens and parses a CSV manifest.
func ReadManifestFile(path string) ([]ManifestRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.InvalidInputError("open manifest %q: %v", path, err)
	}
	defer func() { _ = f.Close() }()
	return ReadManifest(f)
}

// ReadManifest parses a CSV manifest. The header must contain an image
// column (image_filename, image or filename); an optional rule_set column
// selects the rule set per row. A row with an empty image cell is kept with
// an empty Image so that only that item is rejected.
func ReadManifest(r io.Reader) ([]ManifestRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, common.InvalidInputError("manifest is empty")
	}
	if err != nil {
		return nil, common.InvalidInputError("manifest header: %v", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	imageCol := indexOf(header, imageColumns)
	if imageCol < 0 {
		return nil, common.InvalidInputError("manifest has no image column (want one of %s)", strings.Join(imageColumns, ", "))
	}
	ruleSetCol := indexOf(header, ruleSetColumns)

	var rows []ManifestRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, common.InvalidInputError("manifest: %v", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		row := ManifestRow{Line: line, Declared: map[string]string{}}
		for i, v := range rec {
			v = strings.TrimSpace(v)
			if i >= len(header) || header[i] == "" {
				continue
			}
			switch i {
			case imageCol:
				row.Image = v
			case ruleSetCol:
				row.RuleSet = v
			default:
				if v != "" {
					row.Declared[header[i]] = v
				}
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, common.InvalidInputError("manifest lists no images")
	}
	return rows, nil
}

func indexOf(header []string, names []string) int {
	for i, h := range header {
		for _, n := range names {
			if strings.EqualFold(h, n) {
				return i
			}
		}
	}
	return -1
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
