package types

// Envelope is the response body for every action endpoint. Code mirrors the HTTP status.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Data    any    `json:"data,omitempty"`
	Total   *int64 `json:"total,omitempty"`
	Stats   any    `json:"stats,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Page is the list payload returned by paginated actions.
type Page[T any] struct {
	Items []T
	Total int64
}
