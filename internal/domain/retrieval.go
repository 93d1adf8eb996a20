package domain

// RetrievalResult pairs a knowledge chunk with its similarity score.
//
// Score comes from vector search. The textual fallback path assigns the
// sentinel 0: fallback matches are unranked, not ranked-last, and callers
// should treat all zero-score results as equally relevant.
type RetrievalResult struct {
	Chunk *KnowledgeChunk
	Score float32
}

// Usage tracks consumed AI credits for one organization against its plan
// allowance.
type Usage struct {
	OrgID string
	Used  int64
	Limit int64
}

// Exhausted reports whether the allowance has been used up.
func (u *Usage) Exhausted() bool {
	return u.Limit > 0 && u.Used >= u.Limit
}
