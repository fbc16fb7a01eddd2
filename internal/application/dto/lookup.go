package dto

// SimilarContentRequest looks up content similar to a text within a space.
type SimilarContentRequest struct {
	SpaceID   int64    `json:"space_id"`
	Text      string   `json:"text"`
	Limit     int      `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	// SubsetSourceLocalIDs restricts the search when present; an empty
	// list matches nothing.
	SubsetSourceLocalIDs []string `json:"subset_source_local_ids,omitempty"`
}

// SimilarContentResult is one matching content row.
type SimilarContentResult struct {
	ContentID     int64   `json:"content_id"`
	SourceLocalID string  `json:"source_local_id,omitempty"`
	Text          string  `json:"text"`
	Similarity    float64 `json:"similarity"`
}

// SimilarContentResponse lists matches, most similar first.
type SimilarContentResponse struct {
	Results []SimilarContentResult `json:"results"`
}
