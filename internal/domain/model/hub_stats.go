package model

// HubStats is the observable state of the live layer, served by the status API.
type HubStats struct {
	State         ConnectionState `json:"state"`
	Username      string          `json:"username,omitempty"`
	Total         int             `json:"total"`
	Unread        int             `json:"unread"`
	DedupEntries  int             `json:"dedup_entries"`
	Version       uint64          `json:"version"`
	Consumers     []string        `json:"consumers,omitempty"`
	ActiveMatchID int64           `json:"active_match_id,omitempty"`
}
