package domain

// Candidate is a trickled ICE candidate as browsers serialize it.
type Candidate struct {
	Candidate     string `json:"candidate" validate:"required"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}
