package model

import "time"

// AssetAction names what happened to an asset in the audit trail.
type AssetAction string

const (
	AssetActionUpload AssetAction = "upload"
	AssetActionDelete AssetAction = "delete"
)

// AssetEvent is one row of the audit trail. It records history only;
// asset existence is always decided by the storage backend.
type AssetEvent struct {
	ID           string      `json:"id"`
	Filename     string      `json:"filename"`
	Action       AssetAction `json:"action"`
	OriginalName string      `json:"original_name"`
	Size         int64       `json:"size"`
	ContentType  string      `json:"content_type"`
	RequestID    string      `json:"request_id"`
	CreatedAt    time.Time   `json:"created_at"`
}
