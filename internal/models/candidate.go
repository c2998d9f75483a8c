package models

// CandidateFile is one file offered by a peer in a search response.
type CandidateFile struct {
	ID        string `json:"id,omitempty"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Extension string `json:"extension,omitempty"`
	BitRate   *int   `json:"bitRate,omitempty"`
}

// SearchResponse groups the files offered by one peer.
type SearchResponse struct {
	Username string          `json:"username"`
	Files    []CandidateFile `json:"files"`
}
