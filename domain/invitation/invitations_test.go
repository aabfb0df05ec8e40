package invitation_test

import (
	"context"
	"errors"
	"roster/bizerror"
	"roster/client/idp"
	"roster/common"
	"roster/domain"
	"roster/domain/invitation"
	"roster/session"
	"roster/testinfra"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("InvitationManager", func() {
	var (
		store    *testinfra.MemoryStore
		provider *testinfra.FakeProvider
		manager  *invitation.InvitationManager
		admin    = testinfra.BuildSession("admin", 10, domain.RoleAdmin)
		ctx      = context.Background()
	)
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	BeforeEach(func() {
		store = testinfra.NewMemoryStore()
		provider = testinfra.NewFakeProvider()
		manager = invitation.NewInvitationManager(store, provider, invitation.Paging{PageSize: 2})
		store.Members["admin"] = domain.Member{ID: "admin", OrgID: 10, Role: domain.RoleAdmin, IsActive: true}
	})

	Describe("List", func() {
		It("should list accounts of the organization only, pending first and newest first", func() {
			signedIn := day(5)
			provider.AddAccount(idp.Account{ID: "A", Email: "a@example.com", CreatedAt: day(1)})
			provider.AddAccount(idp.Account{ID: "B", Email: "b@example.com", CreatedAt: day(3), LastSignInAt: &signedIn})
			provider.AddAccount(idp.Account{ID: "C", Email: "c@example.com", CreatedAt: day(2)})
			provider.AddAccount(idp.Account{ID: "D", Email: "d@example.com", CreatedAt: day(4)})
			provider.AddAccount(idp.Account{ID: "E", Email: "e@example.com", CreatedAt: day(4)})
			for _, id := range []string{"A", "B", "C"} {
				store.Members[id] = domain.Member{ID: id, OrgID: 10, Role: domain.RoleContractor, FullName: "name " + id}
			}
			store.Members["D"] = domain.Member{ID: "D", OrgID: 20, Role: domain.RoleContractor}

			views, err := manager.List(admin)
			Expect(err).To(BeNil())
			Expect(len(views)).To(Equal(3))
			Expect([]string{views[0].ID, views[1].ID, views[2].ID}).To(Equal([]string{"C", "A", "B"}))
			Expect(views[0].Status).To(Equal(invitation.StatusPending))
			Expect(views[0].FullName).To(Equal("name C"))
			Expect(views[2].Status).To(Equal(invitation.StatusActive))
			// 5 accounts in pages of 2, the third page is short
			Expect(provider.CallsOf("ListAccounts")).To(Equal(3))
		})

		It("should return an empty list when nothing is pending", func() {
			views, err := manager.List(admin)
			Expect(err).To(BeNil())
			Expect(views).To(BeEmpty())
		})

		It("should be forbidden for non admins", func() {
			_, err := manager.List(testinfra.BuildSession("m", 10, domain.RoleManager))
			Expect(err).To(Equal(bizerror.ErrForbidden))
			Expect(provider.CallsOf("ListAccounts")).To(BeZero())
		})

		It("should fail when the identity provider fails", func() {
			provider.Fail("ListAccounts", errors.New("timeout"))
			_, err := manager.List(admin)
			Expect(errors.Is(err, bizerror.ErrUpstreamFailure)).To(BeTrue())
		})
	})

	Describe("CreateLink", func() {
		It("should generate a link and attach the account as contractor", func() {
			link, err := manager.CreateLink(&invitation.LinkCreation{Email: "  New@Example.com "}, admin)
			Expect(err).To(BeNil())
			Expect(link.Email).To(Equal("new@example.com"))
			Expect(link.ActionLink).To(Equal("https://idp.example.com/verify?type=invite&user=" + link.MemberID))

			member := store.Members[link.MemberID]
			Expect(member.OrgID).To(Equal(types.ID(10)))
			Expect(member.Role).To(Equal(domain.RoleContractor))
			Expect(member.IsActive).To(BeTrue())

			// same email again keeps the member row
			store.Members[link.MemberID] = domain.Member{ID: link.MemberID, OrgID: 10, Role: domain.RoleManager, IsActive: true}
			again, err := manager.CreateLink(&invitation.LinkCreation{Email: "new@example.com"}, admin)
			Expect(err).To(BeNil())
			Expect(again.MemberID).To(Equal(link.MemberID))
			Expect(store.Members[link.MemberID].Role).To(Equal(domain.RoleManager))
		})

		It("should reject empty or malformed emails before calling the identity provider", func() {
			for _, email := range []string{"", "  ", "not-an-email", "a@"} {
				_, err := manager.CreateLink(&invitation.LinkCreation{Email: email}, admin)
				Expect(err).To(Equal(bizerror.ErrInvalidEmail))
				Expect(errors.Is(err, bizerror.ErrInvalidInput)).To(BeTrue())
			}
			Expect(provider.CallsOf("GenerateInviteLink")).To(BeZero())
		})

		It("should be forbidden for non admins", func() {
			_, err := manager.CreateLink(&invitation.LinkCreation{Email: "x@example.com"},
				testinfra.BuildSession("m", 10, domain.RoleManager))
			Expect(err).To(Equal(bizerror.ErrForbidden))
		})

		It("should refuse accounts of another organization", func() {
			a := provider.AddAccount(idp.Account{Email: "other@example.com"})
			store.Members[a.ID] = domain.Member{ID: a.ID, OrgID: 20, Role: domain.RoleContractor}
			_, err := manager.CreateLink(&invitation.LinkCreation{Email: "other@example.com"}, admin)
			Expect(err).To(Equal(bizerror.ErrMemberInOtherOrg))
			Expect(store.Members[a.ID].OrgID).To(Equal(types.ID(20)))
			// the pending link of the other organization stays valid
			Expect(provider.CallsOf("GenerateInviteLink")).To(BeZero())

			_, err = manager.Invite(&invitation.InviteRequest{Email: "OTHER@example.com"}, admin)
			Expect(err).To(Equal(bizerror.ErrMemberInOtherOrg))
			Expect(provider.CallsOf("InviteByEmail")).To(BeZero())
		})
	})

	Describe("Invite", func() {
		BeforeEach(func() {
			store.Members["mgr"] = domain.Member{ID: "mgr", OrgID: 10, Role: domain.RoleManager, IsActive: true}
			store.Members["c0"] = domain.Member{ID: "c0", OrgID: 10, Role: domain.RoleContractor, IsActive: true}
		})

		It("should send an invitation email and upsert the member", func() {
			member, err := manager.Invite(&invitation.InviteRequest{Email: "bob@example.com", FullName: " Bob ",
				HourlyRate: decimal.RequireFromString("30"), ManagerID: common.StringPtr("mgr")}, admin)
			Expect(err).To(BeNil())
			Expect(member.Role).To(Equal(domain.RoleContractor))
			Expect(member.FullName).To(Equal("Bob"))
			Expect(*member.ManagerID).To(Equal("mgr"))
			Expect(provider.CallsOf("InviteByEmail")).To(Equal(1))
			Expect(provider.CallsOf("CreateAccount")).To(BeZero())
			Expect(store.Members[member.ID].HourlyRate.Equal(decimal.RequireFromString("30"))).To(BeTrue())
			account := provider.Accounts[member.ID]
			Expect(invitation.DeriveStatus(&account)).To(Equal(invitation.StatusPending))
		})

		It("should create a confirmed account when a password is given", func() {
			member, err := manager.Invite(&invitation.InviteRequest{Email: "eve@example.com", Role: domain.RoleManager,
				ManagerID: common.StringPtr("mgr"), Password: "secret123"}, admin)
			Expect(err).To(BeNil())
			Expect(member.Role).To(Equal(domain.RoleManager))
			Expect(member.ManagerID).To(BeNil())
			Expect(provider.CallsOf("CreateAccount")).To(Equal(1))
			Expect(provider.Accounts[member.ID].EmailConfirmedAt).ToNot(BeNil())
		})

		It("should validate before calling the identity provider", func() {
			cases := []struct {
				request invitation.InviteRequest
				err     error
			}{
				{invitation.InviteRequest{Email: "bad"}, bizerror.ErrInvalidEmail},
				{invitation.InviteRequest{Email: "x@example.com", Role: "owner"}, bizerror.ErrInvalidRole},
				{invitation.InviteRequest{Email: "x@example.com", Role: domain.RoleAdmin}, bizerror.ErrInvalidRole},
				{invitation.InviteRequest{Email: "x@example.com", HourlyRate: decimal.NewFromInt(-1)}, bizerror.ErrNegativeRate},
				{invitation.InviteRequest{Email: "x@example.com", ManagerID: common.StringPtr("c0")}, bizerror.ErrInvalidManager},
				{invitation.InviteRequest{Email: "x@example.com", ManagerID: common.StringPtr("ghost")}, bizerror.ErrInvalidManager},
			}
			for _, c := range cases {
				_, err := manager.Invite(&c.request, admin)
				Expect(err).To(Equal(c.err))
			}
			Expect(provider.CallsOf("InviteByEmail")).To(BeZero())
			Expect(len(provider.Accounts)).To(BeZero())
		})
	})

	Describe("Cancel", func() {
		var pending idp.Account
		BeforeEach(func() {
			pending = provider.AddAccount(idp.Account{Email: "p@example.com", CreatedAt: day(1)})
			store.Members[pending.ID] = domain.Member{ID: pending.ID, OrgID: 10, Role: domain.RoleContractor, IsActive: true}
			Expect(store.UpsertMemberships(ctx,
				domain.ProjectMember{ProjectID: 1, MemberID: pending.ID, OrgID: 10, IsActive: true},
				domain.ProjectMember{ProjectID: 2, MemberID: pending.ID, OrgID: 10, IsActive: false})).To(BeNil())
			store.TimeEntries = append(store.TimeEntries, domain.TimeEntry{ID: 1, OrgID: 10, MemberID: pending.ID, EntryDate: "2024-01-02"})
		})

		It("should remove memberships, time entries, member row and account", func() {
			Expect(manager.Cancel(pending.ID, admin)).To(BeNil())
			Expect(store.MembershipRows(1, pending.ID)).To(BeEmpty())
			Expect(store.MembershipRows(2, pending.ID)).To(BeEmpty())
			Expect(store.TimeEntries).To(BeEmpty())
			Expect(store.Members).ToNot(HaveKey(pending.ID))
			Expect(provider.Accounts).ToNot(HaveKey(pending.ID))
		})

		It("should be idempotent", func() {
			Expect(manager.Cancel(pending.ID, admin)).To(BeNil())
			Expect(manager.Cancel(pending.ID, admin)).To(Equal(bizerror.ErrNotFound))
		})

		It("should be retryable while the member row exists", func() {
			store.Fail("DeleteTimeEntries", errors.New("lost connection"))
			err := manager.Cancel(pending.ID, admin)
			Expect(errors.Is(err, bizerror.ErrUpstreamFailure)).To(BeTrue())
			Expect(store.MembershipRows(1, pending.ID)).To(BeEmpty())
			Expect(store.Members).To(HaveKey(pending.ID))

			store.Fail("DeleteTimeEntries", nil)
			Expect(manager.Cancel(pending.ID, admin)).To(BeNil())
			Expect(store.TimeEntries).To(BeEmpty())
			Expect(provider.Accounts).ToNot(HaveKey(pending.ID))
		})

		It("should leave an orphaned account when the account deletion failed", func() {
			provider.Fail("DeleteAccount", errors.New("timeout"))
			err := manager.Cancel(pending.ID, admin)
			Expect(errors.Is(err, bizerror.ErrUpstreamFailure)).To(BeTrue())
			Expect(store.Members).ToNot(HaveKey(pending.ID))
			Expect(store.MembershipRows(1, pending.ID)).To(BeEmpty())
			Expect(provider.Accounts).To(HaveKey(pending.ID))

			// without a member row the account belongs to no organization
			provider.Fail("DeleteAccount", nil)
			Expect(manager.Cancel(pending.ID, admin)).To(Equal(bizerror.ErrNotFound))
			Expect(provider.CallsOf("DeleteAccount")).To(Equal(1))
			Expect(provider.Accounts).To(HaveKey(pending.ID))
		})

		It("should never delete accounts without a member row in the organization", func() {
			stranger := provider.AddAccount(idp.Account{ID: "stranger", Email: "s@example.com"})
			Expect(manager.Cancel(stranger.ID, admin)).To(Equal(bizerror.ErrNotFound))
			Expect(provider.Accounts).To(HaveKey("stranger"))
			Expect(provider.CallsOf("DeleteAccount")).To(BeZero())
		})

		It("should drop the cached sessions of the cancelled member", func() {
			auth := testinfra.CacheSession(testinfra.BuildSession(pending.ID, 10, domain.RoleContractor))
			Expect(manager.Cancel(pending.ID, admin)).To(BeNil())
			_, found := session.TokenCache.Get(strings.TrimPrefix(auth, "Bearer "))
			Expect(found).To(BeFalse())
		})

		It("should stop at the first failed step", func() {
			store.Fail("DeleteMember", errors.New("lost connection"))
			err := manager.Cancel(pending.ID, admin)
			Expect(errors.Is(err, bizerror.ErrUpstreamFailure)).To(BeTrue())
			Expect(store.MembershipRows(1, pending.ID)).To(BeEmpty())
			Expect(store.Members).To(HaveKey(pending.ID))
			Expect(provider.CallsOf("DeleteAccount")).To(BeZero())
		})

		It("should refuse accepted invitations, other organizations and the admin itself", func() {
			signedIn := day(2)
			active := provider.AddAccount(idp.Account{Email: "act@example.com", LastSignInAt: &signedIn})
			store.Members[active.ID] = domain.Member{ID: active.ID, OrgID: 10, Role: domain.RoleContractor, IsActive: true}
			Expect(manager.Cancel(active.ID, admin)).To(Equal(bizerror.ErrInvitationAccepted))

			tenantless := provider.AddAccount(idp.Account{Email: "free@example.com", LastSignInAt: &signedIn})
			Expect(manager.Cancel(tenantless.ID, admin)).To(Equal(bizerror.ErrNotFound))

			other := provider.AddAccount(idp.Account{Email: "o@example.com"})
			store.Members[other.ID] = domain.Member{ID: other.ID, OrgID: 20, Role: domain.RoleContractor}
			Expect(manager.Cancel(other.ID, admin)).To(Equal(bizerror.ErrNotFound))

			Expect(manager.Cancel("admin", admin)).To(Equal(bizerror.ErrSelfCancel))
			Expect(manager.Cancel(pending.ID, testinfra.BuildSession("m", 10, domain.RoleManager))).To(Equal(bizerror.ErrForbidden))

			Expect(provider.CallsOf("DeleteAccount")).To(BeZero())
			Expect(store.CallsOf("DeleteMemberships")).To(BeZero())
		})
	})
})
