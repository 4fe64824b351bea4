package models

// ScoreFrame is one scoring request on the websocket stream. ID is echoed in the reply.
type ScoreFrame struct {
	ID string `json:"id,omitempty" validate:"max=64"`
	RecommendRequest
}

// ScoreReply answers a ScoreFrame with either a result or an error payload.
type ScoreReply struct {
	ID     string          `json:"id,omitempty"`
	Result *Recommendation `json:"result,omitempty"`
	Error  interface{}     `json:"error,omitempty"`
}
