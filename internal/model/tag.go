package model

// Tag is a normalized (lowercased, trimmed) label. Tags are a shared global
// vocabulary, not scoped per owner.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TagWithCount is a Tag together with its usage count, for filter UIs.
type TagWithCount struct {
	Tag
	Count int `json:"count"`
}
