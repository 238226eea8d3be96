package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// extensions the photo and sticker loaders can decode
var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"bmp": true, "tiff": true, "webp": true,
}

var unsafeChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

// EnsureDir creates dir and its parents when missing
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// GetFileExtension returns the lower-case extension of filename without the dot
func GetFileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	return imageExts[GetFileExtension(filename)]
}

// OutputExtension maps an export format onto the file extension it is written with
func OutputExtension(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "jpg"
	case "webp":
		return "webp"
	}
	return "png"
}

// GenerateOutputFilename names the export of inputFile: prefix, base name,
// suffix and the extension of format, inside outputDir
func GenerateOutputFilename(inputFile, outputDir, prefix, suffix, format string) string {
	base := filepath.Base(inputFile)
	name := SanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
	return filepath.Join(outputDir, prefix+name+suffix+"."+OutputExtension(format))
}

// FileExists checks if a regular file (or symlink to one) exists at path
func FileExists(path string) bool {
	info, ok := stat(path)
	return ok && !info.IsDir()
}

// DirExists checks if a directory exists at path
func DirExists(path string) bool {
	info, ok := stat(path)
	return ok && info.IsDir()
}

func stat(path string) (os.FileInfo, bool) {
	info, err := os.Stat(path)
	return info, err == nil
}

// SanitizeFilename replaces path separators and shell-hostile characters
// with underscores. Leading dots are dropped since the sticker walk treats
// dot files as hidden.
func SanitizeFilename(filename string) string {
	return strings.Trim(unsafeChars.Replace(filename), " .")
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	value := float64(size)
	prefixes := "KMGTPE"
	i := -1
	for value >= unit && i < len(prefixes)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.1f %cB", value, prefixes[i])
}
