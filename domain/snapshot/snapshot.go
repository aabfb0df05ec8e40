package snapshot

import (
	"math"
	"roster/bizerror"
	"roster/directory"
	"roster/domain"
	"roster/domain/invitation"
	"roster/session"
	"time"
)

// Now is the clock month boundaries are computed from.
var Now = time.Now

type Snapshot struct {
	UsersTotal        int     `json:"usersTotal"`
	UsersActive       int     `json:"usersActive"`
	ContractorsActive int     `json:"contractorsActive"`
	ProjectsTotal     int     `json:"projectsTotal"`
	ProjectsActive    int     `json:"projectsActive"`
	HoursMonth        float64 `json:"hoursMonth"`
	PendingInvites    int     `json:"pendingInvites"`

	Month string `json:"month"`
}

type SnapshotManagerTraits interface {
	Snapshot(s *session.Session) (*Snapshot, error)
}

type SnapshotManager struct {
	store       directory.Store
	invitations invitation.InvitationManagerTraits
}

func NewSnapshotManager(store directory.Store, invitations invitation.InvitationManagerTraits) *SnapshotManager {
	return &SnapshotManager{store: store, invitations: invitations}
}

// Snapshot is computed fresh on every call. A failed sub query fails the whole snapshot.
func (m *SnapshotManager) Snapshot(s *session.Session) (*Snapshot, error) {
	if !s.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	ctx := s.Ctx()
	members, err := m.store.ListMembers(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	projects, err := m.store.ListProjects(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	from, to := MonthRange(Now())
	entries, err := m.store.ListTimeEntries(ctx, s.OrgID, from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	if err != nil {
		return nil, err
	}
	views, err := m.invitations.List(s)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{UsersTotal: len(members), ProjectsTotal: len(projects), Month: from.Format("2006-01"),
		PendingInvites: invitation.CountPending(views)}
	for _, member := range members {
		if member.IsActive {
			snapshot.UsersActive++
			if member.Role == domain.RoleContractor {
				snapshot.ContractorsActive++
			}
		}
	}
	for _, p := range projects {
		if p.IsActive {
			snapshot.ProjectsActive++
		}
	}
	hours := 0.0
	for i := range entries {
		hours += EntryHours(&entries[i])
	}
	snapshot.HoursMonth = math.Round(hours*100) / 100
	return snapshot, nil
}

// MonthRange returns the first day of the month of t and of the following month, in t's location.
func MonthRange(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 1, 0)
}

var clockLayouts = []string{"15:04", "15:04:05"}

func parseClock(v *string) (time.Duration, bool) {
	if v == nil {
		return 0, false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, *v); err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

// EntryHours is the worked time of one entry minus lunch, never negative. A time out before
// the time in is an overnight shift. Entries without both times count 0.
func EntryHours(e *domain.TimeEntry) float64 {
	in, ok := parseClock(e.TimeIn)
	if !ok {
		return 0
	}
	out, ok := parseClock(e.TimeOut)
	if !ok {
		return 0
	}
	worked := out - in
	if worked < 0 {
		worked += 24 * time.Hour
	}
	return math.Max(0, worked.Hours()-e.LunchHours)
}
