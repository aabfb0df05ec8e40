package indices

import (
	"context"
	"roster/bizerror"
	"roster/client/es"
	"roster/domain"
	"roster/session"
	"sync"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	SyncStarted     = "started"
	SyncRunning     = "already running"
	SyncRateLimited = "request rate limited"
	SyncDisabled    = "search disabled"
)

type MemberLister interface {
	ListMembers(ctx context.Context, orgID types.ID) ([]domain.Member, error)
	IndexLogStore
}

var (
	SyncRequestInterval = time.Minute
	SyncRequestBurst    = 1

	lock     sync.Mutex
	running  = map[types.ID]bool{}
	limiters = map[types.ID]*rate.Limiter{}

	IndicesFullSyncFunc    = IndicesFullSync
	ScheduleNewSyncRunFunc = ScheduleNewSyncRun
)

// ScheduleNewSyncRun re-indexes every member of the admin's organization in the background.
func ScheduleNewSyncRun(s *session.Session, lister MemberLister) (string, error) {
	if !s.IsAdmin() {
		return "", bizerror.ErrForbidden
	}
	if !es.Enabled() {
		return SyncDisabled, nil
	}

	orgID := s.OrgID
	lock.Lock()
	if running[orgID] {
		lock.Unlock()
		return SyncRunning, nil
	}
	if !orgLimiter(orgID).Allow() {
		lock.Unlock()
		return SyncRateLimited, nil
	}
	running[orgID] = true
	lock.Unlock()

	go func() {
		defer releaseRun(orgID)
		if err := IndicesFullSyncFunc(context.Background(), lister, orgID); err != nil {
			logrus.WithField("orgId", orgID).Warnf("indices fully sync: %v", err)
		}
	}()
	return SyncStarted, nil
}

func claimRun(orgID types.ID) bool {
	lock.Lock()
	defer lock.Unlock()
	if running[orgID] {
		return false
	}
	running[orgID] = true
	return true
}

func releaseRun(orgID types.ID) {
	lock.Lock()
	delete(running, orgID)
	lock.Unlock()
}

// orgLimiter must be called with lock held.
func orgLimiter(orgID types.ID) *rate.Limiter {
	limiter, found := limiters[orgID]
	if !found {
		limiter = rate.NewLimiter(rate.Every(SyncRequestInterval), SyncRequestBurst)
		limiters[orgID] = limiter
	}
	return limiter
}

// IndicesFullSync indexes every member of the organization, then applies the pending index logs
// so removed members leave the index too.
func IndicesFullSync(ctx context.Context, lister MemberLister, orgID types.ID) error {
	members, err := lister.ListMembers(ctx, orgID)
	if err != nil {
		return err
	}
	if err := IndexMembers(ctx, members); err != nil {
		return err
	}
	if err := FlushIndexLogs(ctx, lister, orgID); err != nil {
		return err
	}
	logrus.WithField("orgId", orgID).Infof("indices fully sync: %d members indexed", len(members))
	return nil
}
