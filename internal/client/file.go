package client

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"assetapi/internal/model"
)

// FileFromPath reads a local file and guesses its content type from the
// leading bytes, falling back to the extension.
func FileFromPath(p string) (File, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", p, err)
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		ct = model.ContentTypeForName(p)
	}
	return File{Name: filepath.Base(p), ContentType: ct, Data: data}, nil
}
