package service

import (
	"crypto/rand"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"assetapi/internal/model"
)

const (
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	suffixLen      = 6
	fallbackBase   = "image"
)

// GenerateFilename builds a collision-resistant stored name of the form
// <unixMillis>-<6 random alphanumerics>-<sanitized base><ext>.
func GenerateFilename(now time.Time, originalName, contentType string) (string, error) {
	suffix, err := randomSuffix(suffixLen)
	if err != nil {
		return "", fmt.Errorf("generate filename: %w", err)
	}
	base, ext := SplitOriginalName(originalName, contentType)
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix + "-" + base + ext, nil
}

// SplitOriginalName returns the sanitized base and the extension to store
// originalName under. The base keeps only ASCII letters and digits; the
// extension is the lowercased original one when alphanumeric, else derived
// from contentType.
func SplitOriginalName(originalName, contentType string) (string, string) {
	// browsers on Windows may send a full path
	name := path.Base(strings.ReplaceAll(originalName, `\`, "/"))
	if name == "." || name == "/" {
		name = ""
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || !isAlnum(ext) {
		ext = strings.TrimPrefix(model.ExtensionForContentType(contentType), ".")
	}

	base = keepAlnum(base)
	if base == "" {
		base = fallbackBase
	}
	return base, "." + ext
}

func keepAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if isAlnumByte(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isAlnumByte(s[i]) {
			return false
		}
	}
	return true
}

func isAlnumByte(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

// randomSuffix draws n characters uniformly from suffixAlphabet using crypto/rand.
func randomSuffix(n int) (string, error) {
	// largest multiple of len(alphabet) below 256, to avoid modulo bias
	const limit = 256 - 256%len(suffixAlphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, suffixAlphabet[int(b)%len(suffixAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// ValidateFilename rejects names that could address anything outside the flat
// serving namespace. name must already be URL-decoded.
func ValidateFilename(name string) error {
	if name == "" ||
		strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) ||
		strings.ContainsRune(name, 0) {
		return ErrInvalidFilename
	}
	return nil
}
