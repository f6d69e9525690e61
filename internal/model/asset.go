package model

import "time"

// PublicPathPrefix is the URL path under which stored assets are served.
const PublicPathPrefix = "/uploads/"

// Asset is a stored image file plus its identifying metadata.
// OriginalName is only used to derive an extension and a display label.
type Asset struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName,omitempty"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	ModifiedAt   time.Time `json:"modified"`
}

// PublicPath returns the serving path for a stored filename.
func PublicPath(filename string) string {
	return PublicPathPrefix + filename
}
