package models

// ExceededResponse is the literal 429 body clients have always received.
type ExceededResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const (
	ExceededMessage = "Rate limit exceeded. Please try again later."
	ExceededCode    = "rate_limit_exceeded"
)

// StatusResponse reports a counter without consuming from it.
type StatusResponse struct {
	Client     string `json:"client"`
	Path       string `json:"path"`
	Exempt     bool   `json:"exempt"`
	Rate       string `json:"rate,omitempty"`
	Limit      int    `json:"limit"`
	Current    int    `json:"current"`
	Remaining  int    `json:"remaining"`
	ResetInSec int    `json:"reset_in_seconds"`
}
