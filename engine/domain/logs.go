package domain

import "time"

// QueryLog records one answered diagnosis request.
type QueryLog struct {
	ID       string    `json:"id"`
	Query    string    `json:"query"`
	Brand    string    `json:"brand,omitempty"`
	Model    string    `json:"model,omitempty"`
	Language Language  `json:"language"`
	Response string    `json:"response"`
	Results  int       `json:"results"`
	At       time.Time `json:"at"`
}

// CallLog records a customer calling a tow operator.
type CallLog struct {
	ID           string    `json:"id"`
	CallerNumber string    `json:"caller_number"`
	OwnerID      int64     `json:"owner_id"`
	At           time.Time `json:"at"`
}
