// Package dirty decides whether an edited member row differs from its last saved values.
package dirty

import (
	"encoding/json"
	"roster/common"
	"roster/domain"
	"sync"
)

// tracked field names, in signature order
const (
	FieldFullName   = "fullName"
	FieldRole       = "role"
	FieldHourlyRate = "hourlyRate"
	FieldIsActive   = "isActive"
	FieldManagerID  = "managerId"
)

// Fields is the null-coalesced projection of the mutable member fields.
type Fields struct {
	FullName   string `json:"fullName"`
	Role       string `json:"role"`
	HourlyRate string `json:"hourlyRate"`
	IsActive   bool   `json:"isActive"`
	ManagerID  string `json:"managerId"`
}

func FieldsOf(m domain.Member) Fields {
	return Fields{
		FullName:   m.FullName,
		Role:       string(m.Role),
		HourlyRate: m.HourlyRate.String(),
		IsActive:   m.IsActive,
		ManagerID:  common.DerefString(m.ManagerID),
	}
}

// Signature is the canonical serialization of Fields.
type Signature string

func Baseline(m domain.Member) Signature {
	b, err := json.Marshal(FieldsOf(m))
	if err != nil {
		// Fields holds only strings and a bool
		panic(err)
	}
	return Signature(b)
}

func IsDirty(m domain.Member, base Signature) bool {
	return Baseline(m) != base
}

// Diff lists the tracked fields whose values differ between before and after.
func Diff(before, after domain.Member) []string {
	a, b := FieldsOf(before), FieldsOf(after)
	var changed []string
	if a.FullName != b.FullName {
		changed = append(changed, FieldFullName)
	}
	if a.Role != b.Role {
		changed = append(changed, FieldRole)
	}
	if a.HourlyRate != b.HourlyRate {
		changed = append(changed, FieldHourlyRate)
	}
	if a.IsActive != b.IsActive {
		changed = append(changed, FieldIsActive)
	}
	if a.ManagerID != b.ManagerID {
		changed = append(changed, FieldManagerID)
	}
	return changed
}

// Tracker keeps the last saved signature of each row by member id.
// Commit must be called after every successful save.
type Tracker struct {
	mu        sync.Mutex
	baselines map[string]Signature
}

func NewTracker() *Tracker {
	return &Tracker{baselines: map[string]Signature{}}
}

func (t *Tracker) Capture(rows ...domain.Member) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range rows {
		t.baselines[row.ID] = Baseline(row)
	}
}

// IsDirty reports true for rows without a baseline.
func (t *Tracker) IsDirty(row domain.Member) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	base, found := t.baselines[row.ID]
	if !found {
		return true
	}
	return IsDirty(row, base)
}

func (t *Tracker) Commit(row domain.Member) {
	t.Capture(row)
}

func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.baselines, id)
}

func (t *Tracker) Baseline(id string) (Signature, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	base, found := t.baselines[id]
	return base, found
}
