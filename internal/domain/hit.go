package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// MaxBatchAssignments is the per-HIT assignment cap used in batch mode.
// Above this the marketplace charges the higher commission tier.
const MaxBatchAssignments = 9

// HIT represents one task object on the marketplace
type HIT struct {
	ID              string    `json:"HITId"`
	HITTypeID       string    `json:"HITTypeId"`
	GroupID         string    `json:"HITGroupId,omitempty"`
	MaxAssignments  int       `json:"MaxAssignments"`
	Expiration      time.Time `json:"Expiration"`
	Question        string    `json:"Question"`
	NumberCompleted int       `json:"NumberOfAssignmentsCompleted"`
	NumberAvailable int       `json:"NumberOfAssignmentsAvailable"`
	NumberPending   int       `json:"NumberOfAssignmentsPending"`
	CreatedAt       time.Time `json:"CreationTime"`
}

// InProgress reports whether the HIT still has assignments left to complete
func (h *HIT) InProgress() bool {
	return h.NumberCompleted < h.MaxAssignments
}

// BatchSet is the persisted group of HITs backing one logical task.
// In single mode it holds exactly one HIT whose cap is unconstrained.
type BatchSet struct {
	Batch bool
	HITs  []HIT
}

// NewSingleSet wraps one HIT as a single-mode set
func NewSingleSet(h HIT) *BatchSet {
	return &BatchSet{HITs: []HIT{h}}
}

// NewBatchSet wraps HITs as a batch-mode set
func NewBatchSet(hits []HIT) *BatchSet {
	return &BatchSet{Batch: true, HITs: hits}
}

// Capacity returns the sum of MaxAssignments across members
func (s *BatchSet) Capacity() int {
	total := 0
	for _, h := range s.HITs {
		total += h.MaxAssignments
	}
	return total
}

// LatestExpiration returns the latest member expiration, or the zero time for an empty set
func (s *BatchSet) LatestExpiration() time.Time {
	var latest time.Time
	for _, h := range s.HITs {
		if h.Expiration.After(latest) {
			latest = h.Expiration
		}
	}
	return latest
}

// Replace swaps in updated copies of members by ID, leaving order intact
func (s *BatchSet) Replace(updated ...HIT) {
	for _, u := range updated {
		for i := range s.HITs {
			if s.HITs[i].ID == u.ID {
				s.HITs[i] = u
				break
			}
		}
	}
}

// MarshalJSON writes a single-mode set as one object and a batch-mode set as an array
func (s BatchSet) MarshalJSON() ([]byte, error) {
	if !s.Batch && len(s.HITs) == 1 {
		return json.Marshal(s.HITs[0])
	}
	hits := s.HITs
	if hits == nil {
		hits = []HIT{}
	}
	return json.Marshal(hits)
}

// UnmarshalJSON accepts either layout written by MarshalJSON
func (s *BatchSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var hits []HIT
		if err := json.Unmarshal(trimmed, &hits); err != nil {
			return err
		}
		s.Batch = true
		s.HITs = hits
		return nil
	}
	var h HIT
	if err := json.Unmarshal(trimmed, &h); err != nil {
		return err
	}
	s.Batch = false
	s.HITs = []HIT{h}
	return nil
}

// HITTypeParams are the shared properties of every HIT created for a task
type HITTypeParams struct {
	Title                     string
	Description               string
	Keywords                  string
	Reward                    string
	AssignmentDuration        time.Duration
	AutoApprovalDelay         time.Duration
	QualificationRequirements []ResolvedRequirement
}

// HITParams describes a standalone HIT creation in single mode
type HITParams struct {
	HITTypeParams
	MaxAssignments int
	Lifetime       time.Duration
	Question       string
}

// QualificationType is a custom qualification type owned by the requester
type QualificationType struct {
	ID   string
	Name string
}
