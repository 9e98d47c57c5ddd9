package core

// Snapshot is the complete current state of all events and attendance
// records. Each push replaces the previous snapshot wholesale; there is
// no incremental diffing anywhere in the pipeline.
type Snapshot struct {
	Events []Event `json:"events"`
}

// Empty reports whether the snapshot carries no events at all.
func (s Snapshot) Empty() bool {
	return len(s.Events) == 0
}
