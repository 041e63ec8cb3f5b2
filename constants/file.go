package constants

import "strings"

// Image formats accepted for verification.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// AllowedExtensions holds the file extensions picked up by the batch command.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without dot) is a supported image extension.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MapDecodedFormat maps the format name returned by image.DecodeConfig to a
// supported format, or "" when the format is not accepted.
func MapDecodedFormat(name string) string {
	switch strings.ToLower(name) {
	case "png":
		return FormatPNG
	case "jpeg", "jpg":
		return FormatJPEG
	default:
		return ""
	}
}
