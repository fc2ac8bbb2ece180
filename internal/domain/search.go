package domain

// SearchHit is one ranked match. Score only orders hits within one index.
type SearchHit struct {
	EntityID int64   `json:"entity_id"`
	Title    string  `json:"title"`
	Score    float64 `json:"score"`
}
