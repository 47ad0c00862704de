package entity

// Warning records a branch-local failure that degraded the result without aborting it.
type Warning struct {
	Category Category `json:"category,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Message  string   `json:"message"`
}
