package directory_test

import (
	"context"
	"errors"
	"roster/bizerror"
	"roster/common"
	"roster/directory"
	"roster/domain"
	"roster/indices/indexlog"
	"roster/testinfra"
	"sync"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("GormStore", func() {
	var (
		testDatabase *testinfra.TestDatabase
		store        *directory.GormStore
		ctx          context.Context
	)
	BeforeEach(func() {
		testDatabase = testinfra.StartTestDatabase("roster")
		store = directory.NewGormStore(testDatabase.DS)
		Expect(store.AutoMigrate()).To(BeNil())
		ctx = context.Background()
	})
	AfterEach(func() {
		testinfra.StopTestDatabase(testDatabase)
	})

	Describe("members", func() {
		It("should upsert, update and delete members within an organization", func() {
			m := domain.Member{ID: "u1", OrgID: 10, Role: domain.RoleContractor, FullName: "Ann",
				HourlyRate: decimal.RequireFromString("42.5"), IsActive: true, ManagerID: common.StringPtr("m1")}
			Expect(store.UpsertMember(ctx, &m)).To(BeNil())
			Expect(store.UpsertMember(ctx, &domain.Member{ID: "u2", OrgID: 20, Role: domain.RoleAdmin, IsActive: true})).To(BeNil())

			got, err := store.GetMember(ctx, 10, "u1")
			Expect(err).To(BeNil())
			Expect(got.FullName).To(Equal("Ann"))
			Expect(got.Role).To(Equal(domain.RoleContractor))
			Expect(got.HourlyRate.Equal(decimal.RequireFromString("42.5"))).To(BeTrue())
			Expect(*got.ManagerID).To(Equal("m1"))
			Expect(got.CreateTime.IsZero()).To(BeFalse())

			// other organization
			_, err = store.GetMember(ctx, 20, "u1")
			Expect(err).To(Equal(bizerror.ErrNotFound))
			found, err := store.FindMember(ctx, "u2")
			Expect(err).To(BeNil())
			Expect(found.OrgID).To(Equal(types.ID(20)))

			members, err := store.ListMembers(ctx, 10)
			Expect(err).To(BeNil())
			Expect(len(members)).To(Equal(1))
			orgIDs, err := store.ListOrgIDs(ctx)
			Expect(err).To(BeNil())
			Expect(orgIDs).To(Equal([]types.ID{10, 20}))

			// upsert again overwrites the mutable fields, one row remains
			m2 := domain.Member{ID: "u1", OrgID: 10, Role: domain.RoleManager, FullName: "Ann B", IsActive: false}
			Expect(store.UpsertMember(ctx, &m2)).To(BeNil())
			members, err = store.ListMembers(ctx, 10)
			Expect(err).To(BeNil())
			Expect(len(members)).To(Equal(1))
			Expect(members[0].FullName).To(Equal("Ann B"))
			Expect(members[0].ManagerID).To(BeNil())
			Expect(members[0].IsActive).To(BeFalse())

			updated := members[0]
			updated.FullName = "Ann C"
			updated.IsActive = true
			updated.HourlyRate = decimal.NewFromInt(10)
			Expect(store.UpdateMember(ctx, &updated)).To(BeNil())
			got, err = store.GetMember(ctx, 10, "u1")
			Expect(err).To(BeNil())
			Expect(got.FullName).To(Equal("Ann C"))
			Expect(got.IsActive).To(BeTrue())
			Expect(got.HourlyRate.Equal(decimal.NewFromInt(10))).To(BeTrue())

			Expect(store.DeleteMember(ctx, 10, "u1")).To(BeNil())
			Expect(store.DeleteMember(ctx, 10, "u1")).To(BeNil())
			_, err = store.GetMember(ctx, 10, "u1")
			Expect(errors.Is(err, bizerror.ErrNotFound)).To(BeTrue())
		})

		It("should update many members in one transaction", func() {
			Expect(store.UpsertMember(ctx, &domain.Member{ID: "a", OrgID: 10, Role: domain.RoleContractor, FullName: "A"})).To(BeNil())
			Expect(store.UpsertMember(ctx, &domain.Member{ID: "b", OrgID: 10, Role: domain.RoleContractor, FullName: "B"})).To(BeNil())

			members, err := store.ListMembers(ctx, 10)
			Expect(err).To(BeNil())
			for i := range members {
				members[i].FullName = members[i].FullName + "2"
			}
			Expect(store.UpdateMembers(ctx, members)).To(BeNil())

			members, err = store.ListMembers(ctx, 10)
			Expect(err).To(BeNil())
			Expect([]string{members[0].FullName, members[1].FullName}).To(ConsistOf("A2", "B2"))
		})
	})

	Describe("index logs", func() {
		It("should log member writes and keep only the latest pending change per member", func() {
			Expect(store.UpsertMember(ctx, &domain.Member{ID: "u1", OrgID: 10, Role: domain.RoleContractor})).To(BeNil())
			Expect(store.UpsertMember(ctx, &domain.Member{ID: "u2", OrgID: 10, Role: domain.RoleContractor})).To(BeNil())
			Expect(store.UpsertMember(ctx, &domain.Member{ID: "x1", OrgID: 20, Role: domain.RoleContractor})).To(BeNil())
			Expect(store.UpdateMember(ctx, &domain.Member{ID: "u1", OrgID: 10, Role: domain.RoleManager})).To(BeNil())
			Expect(store.DeleteMember(ctx, 10, "u2")).To(BeNil())

			records, err := store.LoadPendingIndexLogs(ctx, 10, 10)
			Expect(err).To(BeNil())
			Expect(len(records)).To(Equal(2))
			Expect(records[0].SourceType).To(Equal(indexlog.SourceMember))
			Expect(records[0].SourceID).To(Equal("u1"))
			Expect(records[0].Deletion).To(BeFalse())
			Expect(records[1].SourceID).To(Equal("u2"))
			Expect(records[1].Deletion).To(BeTrue())
			Expect(records[0].ID < records[1].ID).To(BeTrue())

			limited, err := store.LoadPendingIndexLogs(ctx, 10, 1)
			Expect(err).To(BeNil())
			Expect(len(limited)).To(Equal(1))

			Expect(store.FinishIndexLogs(ctx, []types.ID{records[0].ID})).To(BeNil())
			Expect(store.FinishIndexLogs(ctx, nil)).To(BeNil())
			records, err = store.LoadPendingIndexLogs(ctx, 10, 10)
			Expect(err).To(BeNil())
			Expect(len(records)).To(Equal(1))
			Expect(records[0].SourceID).To(Equal("u2"))

			records, err = store.LoadPendingIndexLogs(ctx, 20, 10)
			Expect(err).To(BeNil())
			Expect(len(records)).To(Equal(1))
		})

		It("should not log writes refused on a cancelled context", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			Expect(store.UpdateMember(cancelled, &domain.Member{ID: "u1", OrgID: 10})).ToNot(BeNil())
			records, err := store.LoadPendingIndexLogs(ctx, 10, 10)
			Expect(err).To(BeNil())
			Expect(records).To(BeEmpty())
		})
	})

	Describe("projects", func() {
		It("should create, update and list projects by organization", func() {
			p := domain.Project{ID: 100, OrgID: 10, Name: "alpha", IsActive: true, WeekStart: domain.WeekStartMonday}
			Expect(store.CreateProject(ctx, &p)).To(BeNil())
			Expect(store.CreateProject(ctx, &domain.Project{ID: 200, OrgID: 20, Name: "beta", IsActive: true,
				WeekStart: domain.WeekStartSunday})).To(BeNil())

			_, err := store.GetProject(ctx, 10, 200)
			Expect(err).To(Equal(bizerror.ErrNotFound))

			p.IsActive = false
			p.WeekStart = domain.WeekStartSunday
			Expect(store.UpdateProject(ctx, &p)).To(BeNil())
			got, err := store.GetProject(ctx, 10, 100)
			Expect(err).To(BeNil())
			Expect(got.Name).To(Equal("alpha"))
			Expect(got.IsActive).To(BeFalse())
			Expect(got.WeekStart).To(Equal(domain.WeekStartSunday))

			projects, err := store.ListProjects(ctx, 10)
			Expect(err).To(BeNil())
			Expect(len(projects)).To(Equal(1))
			Expect(projects[0].ID).To(Equal(types.ID(100)))
		})
	})

	Describe("memberships", func() {
		It("should keep one row per project and member across upserts", func() {
			row := domain.ProjectMember{ProjectID: 100, MemberID: "u1", OrgID: 10, IsActive: true}
			Expect(store.UpsertMemberships(ctx, row)).To(BeNil())
			Expect(store.UpsertMemberships(ctx, row)).To(BeNil())
			row.IsActive = false
			Expect(store.UpsertMemberships(ctx, row)).To(BeNil())
			row.IsActive = true
			Expect(store.UpsertMemberships(ctx, row)).To(BeNil())

			rows, err := store.ListMemberships(ctx, 10, directory.MembershipFilter{})
			Expect(err).To(BeNil())
			Expect(len(rows)).To(Equal(1))
			Expect(rows[0].IsActive).To(BeTrue())
			Expect(rows[0].UpdateTime.Before(rows[0].CreateTime)).To(BeFalse())

			got, err := store.GetMembership(ctx, 10, 100, "u1")
			Expect(err).To(BeNil())
			Expect(got.IsActive).To(BeTrue())
			_, err = store.GetMembership(ctx, 20, 100, "u1")
			Expect(err).To(Equal(bizerror.ErrNotFound))
		})

		It("should converge concurrent upserts on the same key", func() {
			wg := sync.WaitGroup{}
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(active bool) {
					defer wg.Done()
					defer GinkgoRecover()
					Expect(store.UpsertMemberships(ctx,
						domain.ProjectMember{ProjectID: 100, MemberID: "u1", OrgID: 10, IsActive: active})).To(BeNil())
				}(i%2 == 0)
			}
			wg.Wait()

			rows, err := store.ListMemberships(ctx, 10, directory.MembershipFilter{})
			Expect(err).To(BeNil())
			Expect(len(rows)).To(Equal(1))
		})

		It("should filter and delete memberships", func() {
			Expect(store.UpsertMemberships(ctx,
				domain.ProjectMember{ProjectID: 100, MemberID: "u1", OrgID: 10, IsActive: true},
				domain.ProjectMember{ProjectID: 200, MemberID: "u1", OrgID: 10, IsActive: false},
				domain.ProjectMember{ProjectID: 100, MemberID: "u2", OrgID: 10, IsActive: true},
			)).To(BeNil())

			member := "u1"
			rows, err := store.ListMemberships(ctx, 10, directory.MembershipFilter{MemberID: &member, ActiveOnly: true})
			Expect(err).To(BeNil())
			Expect(len(rows)).To(Equal(1))
			Expect(rows[0].ProjectID).To(Equal(types.ID(100)))

			project := types.ID(100)
			rows, err = store.ListMemberships(ctx, 10, directory.MembershipFilter{ProjectID: &project})
			Expect(err).To(BeNil())
			Expect(len(rows)).To(Equal(2))

			n, err := store.DeleteMemberships(ctx, 10, "u1")
			Expect(err).To(BeNil())
			Expect(n).To(Equal(int64(2)))
			n, err = store.DeleteMemberships(ctx, 10, "u1")
			Expect(err).To(BeNil())
			Expect(n).To(Equal(int64(0)))
		})

		It("should refuse writes on a cancelled context", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			err := store.UpsertMemberships(cancelled, domain.ProjectMember{ProjectID: 100, MemberID: "u1", OrgID: 10})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())

			rows, err := store.ListMemberships(ctx, 10, directory.MembershipFilter{})
			Expect(err).To(BeNil())
			Expect(len(rows)).To(BeZero())
		})
	})

	Describe("time entries", func() {
		It("should list entries in a date range and delete by member", func() {
			db := testDatabase.DS.GormDB()
			Expect(db.Create(&domain.TimeEntry{ID: 1, OrgID: 10, MemberID: "u1", EntryDate: "2024-04-30"}).Error).To(BeNil())
			Expect(db.Create(&domain.TimeEntry{ID: 2, OrgID: 10, MemberID: "u1", EntryDate: "2024-05-01",
				TimeIn: common.StringPtr("09:00"), TimeOut: common.StringPtr("17:00")}).Error).To(BeNil())
			Expect(db.Create(&domain.TimeEntry{ID: 3, OrgID: 10, MemberID: "u2", EntryDate: "2024-05-31"}).Error).To(BeNil())
			Expect(db.Create(&domain.TimeEntry{ID: 4, OrgID: 10, MemberID: "u2", EntryDate: "2024-06-01"}).Error).To(BeNil())
			Expect(db.Create(&domain.TimeEntry{ID: 5, OrgID: 20, MemberID: "u3", EntryDate: "2024-05-10"}).Error).To(BeNil())

			entries, err := store.ListTimeEntries(ctx, 10, "2024-05-01", "2024-06-01")
			Expect(err).To(BeNil())
			Expect(len(entries)).To(Equal(2))
			Expect(entries[0].ID).To(Equal(types.ID(2)))
			Expect(*entries[0].TimeOut).To(Equal("17:00"))
			Expect(entries[1].ID).To(Equal(types.ID(3)))

			n, err := store.DeleteTimeEntries(ctx, 10, "u1")
			Expect(err).To(BeNil())
			Expect(n).To(Equal(int64(2)))
			n, err = store.DeleteTimeEntries(ctx, 10, "nobody")
			Expect(err).To(BeNil())
			Expect(n).To(BeZero())
		})
	})
})
