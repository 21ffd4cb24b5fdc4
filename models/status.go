package models

// Status is the processing lifecycle of a DocFile track. A DocFile carries two
// independent tracks: one for the document metadata, one for its outgoing links.
type Status string

const (
	StatusProcessing Status = "Processing"
	StatusProcessed  Status = "Processed"
	StatusFailed     Status = "Failed"
)

// Terminal reports whether no further transition is defined for s.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }
