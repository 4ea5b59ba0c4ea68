package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"strings"
)

// ErrInvalidFileName is returned for names that cannot become an object key.
var ErrInvalidFileName = errors.New("invalid file name")

// OwnerPrefix returns the storage namespace for an owner. User IDs never
// appear in object keys.
func OwnerPrefix(owner string) string {
	sum := sha256.Sum256([]byte(owner))
	return hex.EncodeToString(sum[:16])
}

// ObjectName turns a display file name into a key-safe name: the base is
// slugged and a plain alphanumeric extension is kept.
func ObjectName(fileName string) (string, error) {
	name := strings.TrimSpace(fileName)
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidFileName
	}
	ext := path.Ext(name)
	base := Slugify(strings.TrimSuffix(name, ext), "")
	if base == "" {
		return "", ErrInvalidFileName
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || Slugify(ext, "") != ext || strings.Contains(ext, "-") {
		return base, nil
	}
	return base + "." + ext, nil
}
