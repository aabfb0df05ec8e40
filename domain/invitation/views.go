package invitation

import (
	"fmt"
	"os"
	"roster/client/idp"
	"roster/domain"
	"sort"
	"strconv"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
)

// DeriveStatus is computed from identity provider facts only and never stored.
func DeriveStatus(a *idp.Account) Status {
	if a.LastSignInAt != nil || a.EmailConfirmedAt != nil {
		return StatusActive
	}
	return StatusPending
}

// View is an identity provider account seen as an invitation of the organization.
type View struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
	InvitedAt        *time.Time `json:"invitedAt"`
	LastSignInAt     *time.Time `json:"lastSignInAt"`
	EmailConfirmedAt *time.Time `json:"emailConfirmedAt"`

	FullName string      `json:"fullName"`
	Role     domain.Role `json:"role"`
}

func ViewOf(a *idp.Account) View {
	return View{
		ID:               a.ID,
		Email:            a.Email,
		Status:           DeriveStatus(a),
		CreatedAt:        a.CreatedAt,
		InvitedAt:        a.InvitedAt,
		LastSignInAt:     a.LastSignInAt,
		EmailConfirmedAt: a.EmailConfirmedAt,
	}
}

// SortViews orders pending before active, then newest first, then by id.
func SortViews(views []View) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Status != b.Status {
			return a.Status == StatusPending
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// CountPending returns the number of pending views.
func CountPending(views []View) int {
	n := 0
	for _, v := range views {
		if v.Status == StatusPending {
			n++
		}
	}
	return n
}

// Paging controls how accounts are read from the identity provider.
type Paging struct {
	PageSize int
	Interval time.Duration
}

var DefaultPaging = Paging{PageSize: 1000, Interval: 100 * time.Millisecond}

func PagingFromEnv() (Paging, error) {
	paging := DefaultPaging
	if v := os.Getenv("IDP_PAGE_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return paging, fmt.Errorf("invalid IDP_PAGE_SIZE '%s'", v)
		}
		paging.PageSize = size
	}
	if v := os.Getenv("IDP_PAGE_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil || interval < 0 {
			return paging, fmt.Errorf("invalid IDP_PAGE_INTERVAL '%s'", v)
		}
		paging.Interval = interval
	}
	return paging, nil
}
