package indices

import (
	"context"
	"errors"
	"roster/bizerror"
	"roster/client/es"
	"roster/domain"
	"roster/indices/indexlog"

	"github.com/fundwit/go-commons/types"
	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var PendingBatchSize = 500

// FullSyncSchedule re-indexes every organization nightly.
const FullSyncSchedule = "0 0 23 * * ?"

type OrgDirectory interface {
	ListOrgIDs(ctx context.Context) ([]types.ID, error)
	MemberLister
}

func StartCron(store OrgDirectory) (*cron.Cron, error) {
	crontab := cron.New(cron.WithSeconds())
	if _, err := crontab.AddFunc(FullSyncSchedule, func() { syncAllOrganizations(context.Background(), store) }); err != nil {
		return nil, err
	}
	crontab.Start()
	return crontab, nil
}

// syncAllOrganizations runs a full sync for each organization not already being synced,
// and returns how many succeeded.
func syncAllOrganizations(ctx context.Context, store OrgDirectory) int {
	if !es.Enabled() {
		return 0
	}
	orgIDs, err := store.ListOrgIDs(ctx)
	if err != nil {
		logrus.Errorf("fully index: %v", err)
		return 0
	}
	synced := 0
	for _, orgID := range orgIDs {
		if !claimRun(orgID) {
			continue
		}
		err := IndicesFullSyncFunc(ctx, store, orgID)
		releaseRun(orgID)
		if err != nil {
			logrus.WithField("orgId", orgID).Warnf("indices fully sync: %v", err)
			continue
		}
		synced++
	}
	return synced
}

// IndexLogStore holds the member changes not yet applied to the search index.
type IndexLogStore interface {
	FindMember(ctx context.Context, id string) (*domain.Member, error)
	LoadPendingIndexLogs(ctx context.Context, orgID types.ID, limit int) ([]indexlog.IndexLogRecord, error)
	FinishIndexLogs(ctx context.Context, ids []types.ID) error
}

// FlushIndexLogs applies the pending index logs of the organization, oldest first. Logs that fail stay pending
// for the next flush or full sync. When search is disabled the logs are only marked as applied.
func FlushIndexLogs(ctx context.Context, store IndexLogStore, orgID types.ID) error {
	for {
		records, err := store.LoadPendingIndexLogs(ctx, orgID, PendingBatchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		applied := make([]types.ID, 0, len(records))
		errs := BatchActionError{}
		for i := range records {
			if err := applyIndexLog(ctx, store, &records[i]); err != nil {
				errs[records[i].SourceID] = err
				continue
			}
			applied = append(applied, records[i].ID)
		}
		if len(applied) > 0 {
			if err := store.FinishIndexLogs(ctx, applied); err != nil {
				return err
			}
		}
		if len(errs) > 0 {
			return errs
		}
		if len(records) < PendingBatchSize {
			return nil
		}
	}
}

func applyIndexLog(ctx context.Context, store IndexLogStore, record *indexlog.IndexLogRecord) error {
	if !es.Enabled() || record.SourceType != indexlog.SourceMember {
		return nil
	}
	if !record.Deletion {
		member, err := store.FindMember(ctx, record.SourceID)
		if err != nil && !errors.Is(err, bizerror.ErrNotFound) {
			return err
		}
		if err == nil && member.OrgID == record.OrgID {
			return IndexMembers(ctx, []domain.Member{*member})
		}
	}
	return DeleteMemberDocument(ctx, record.SourceID)
}
