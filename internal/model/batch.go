package model

// Batch outcome status constants
const (
	BatchSuccess   = "success"
	BatchDuplicate = "duplicate"
	BatchError     = "error"
)

// BatchOutcome is the per-file result of a multi-file PDF submission.
// A batch produces one outcome per file, in submission order; one file's
// failure never discards the outcomes of the others.
type BatchOutcome struct {
	Filename string  `json:"filename"`
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	BriefID  *string `json:"brief_id,omitempty"`
}

// BatchCounts aggregates a batch result for reporting.
type BatchCounts struct {
	Success   int `json:"success"`
	Duplicate int `json:"duplicate"`
	Error     int `json:"error"`
}

// CountOutcomes tallies outcomes by status.
func CountOutcomes(outcomes []BatchOutcome) BatchCounts {
	var c BatchCounts
	for _, o := range outcomes {
		switch o.Status {
		case BatchSuccess:
			c.Success++
		case BatchDuplicate:
			c.Duplicate++
		case BatchError:
			c.Error++
		}
	}
	return c
}
