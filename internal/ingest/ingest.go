// Package ingest turns label images on disk, optionally described by a CSV
// manifest, into verification requests.
package ingest

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/label-verifier/constants"
	"github.com/joseph-ayodele/label-verifier/internal/core"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
)

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Hidden  uint32
	Failed  uint32
}

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && strings.HasPrefix(base, ".")
}

// Loader reads images below Root.
type Loader struct {
	Root   string
	Logger *slog.Logger
}

// Request builds the request for the image at rel (relative to Root). An
// image that cannot be read yields a request without data, which the
// processor rejects as INVALID_REQUEST.
func (l Loader) Request(rel, ruleSet string, declared map[string]string) core.Request {
	logger := l.logger()
	req := core.Request{
		Image:    extract.Image{ID: rel},
		RuleSet:  ruleSet,
		Declared: declared,
	}
	if !filepath.IsLocal(rel) {
		logger.Warn("ingest.image.outside_root", "image", rel, "root", l.Root)
		return req
	}
	data, err := os.ReadFile(filepath.Join(l.Root, rel))
	if err != nil {
		logger.Warn("ingest.image.unreadable", "image", rel, "err", err)
		return req
	}
	req.Image.Data = data
	return req
}

func (l Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// DirectoryRequests builds one request per file from ScanDirectory.
func (l Loader) DirectoryRequests(files []string, ruleSet string) []core.Request {
	out := make([]core.Request, 0, len(files))
	for _, f := range files {
		out = append(out, l.Request(f, ruleSet, nil))
	}
	return out
}

// ManifestRequests builds one request per manifest row, in manifest order.
// defaultRuleSet applies to rows that name none.
func (l Loader) ManifestRequests(rows []ManifestRow, defaultRuleSet string) []core.Request {
	out := make([]core.Request, 0, len(rows))
	for _, r := range rows {
		rs := r.RuleSet
		if rs == "" {
			rs = defaultRuleSet
		}
		if r.Image == "" {
			// kept so the row fails on its own as INVALID_REQUEST
			l.logger().Warn("ingest.manifest.image_missing", "line", r.Line)
			out = append(out, core.Request{RuleSet: rs, Declared: r.Declared})
			continue
		}
		out = append(out, l.Request(r.Image, rs, r.Declared))
	}
	return out
}
