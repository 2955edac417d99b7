package kafka

import "remarknews/config"

// RunRequest asks the service to produce a digest now. Zero fields keep the
// configured values.
type RunRequest struct {
	RequestID string `json:"request_id,omitempty"`
	Format    string `json:"format,omitempty"`
	Hours     int    `json:"hours,omitempty"`
}

// Valid reports whether the request can be honored.
func (r *RunRequest) Valid() bool {
	switch r.Format {
	case "", config.FormatPDF, config.FormatEPUB:
	default:
		return false
	}
	return r.Hours >= 0
}
