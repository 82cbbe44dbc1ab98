package expense_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/logger"
)

func money(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func participants(pairs ...string) []split.Participant {
	out := make([]split.Participant, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, split.Participant{MemberID: pairs[i], Share: decimal.RequireFromString(pairs[i+1])})
	}
	return out
}

func shares(ps []split.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Share.StringFixed(2)
	}
	return out
}

func reasonOf(err error) split.Reason {
	reason, ok := split.ReasonOf(err)
	Expect(ok).To(BeTrue(), "expected a validation error, got %v", err)
	return reason
}

func strPtr(s string) *string { return &s }

var _ = Describe("Service", func() {
	var (
		ctx    context.Context
		store  *memStore
		groups *memGroups
		svc    *expense.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newMemStore()
		groups = newMemGroups()
		groups.add("trip", "olga", "amir", "bea", "chen")
		groups.add("other", "zed")
		svc = expense.NewService(store, groups, logger.Discard())
	})

	createReq := func() *expense.CreateExpenseRequest {
		return &expense.CreateExpenseRequest{
			GroupID:      "trip",
			Title:        "Dinner",
			Amount:       money("100"),
			PayerID:      "amir",
			SplitType:    "EQUAL",
			Participants: participants("amir", "0", "bea", "0", "chen", "0"),
		}
	}

	Describe("Create", func() {
		It("computes EQUAL shares on the server and ignores submitted ones", func() {
			req := createReq()
			req.Participants = participants("amir", "90", "bea", "-5", "chen", "1")

			e, err := svc.Create(ctx, "amir", req)
			Expect(err).NotTo(HaveOccurred())
			Expect(shares(e.Participants)).To(Equal([]string{"33.33", "33.33", "33.34"}))
			Expect(e.ID).NotTo(BeEmpty())
			Expect(e.Version).To(Equal(1))
		})

		It("fills in category and date defaults", func() {
			before := time.Now()
			e, err := svc.Create(ctx, "amir", createReq())
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Category).To(Equal("General"))
			Expect(e.Notes).To(BeEmpty())
			Expect(e.Date).To(BeTemporally(">=", before))
		})

		It("keeps valid PERCENTAGE shares", func() {
			req := createReq()
			req.SplitType = "PERCENTAGE"
			req.Participants = participants("bea", "25", "chen", "25", "amir", "50")

			e, err := svc.Create(ctx, "bea", req)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.SplitType).To(Equal(split.PolicyPercentage))
			Expect(shares(e.Participants)).To(Equal([]string{"25.00", "25.00", "50.00"}))
		})

		It("rejects missing fields", func() {
			req := createReq()
			req.Title = "  "
			_, err := svc.Create(ctx, "amir", req)
			Expect(reasonOf(err)).To(Equal(split.ReasonMissingFields))

			req = createReq()
			req.Amount = nil
			_, err = svc.Create(ctx, "amir", req)
			Expect(reasonOf(err)).To(Equal(split.ReasonMissingFields))
		})

		It("rejects a negative amount", func() {
			req := createReq()
			req.Amount = money("-1")
			_, err := svc.Create(ctx, "amir", req)
			Expect(reasonOf(err)).To(Equal(split.ReasonInvalidInput))
		})

		It("reports an unknown group as not found", func() {
			req := createReq()
			req.GroupID = "nowhere"
			_, err := svc.Create(ctx, "amir", req)
			Expect(errors.Is(err, group.ErrGroupNotFound)).To(BeTrue())
		})

		It("forbids callers outside the group", func() {
			_, err := svc.Create(ctx, "zed", createReq())
			Expect(errors.Is(err, expense.ErrForbidden)).To(BeTrue())
			Expect(store.expenses).To(BeEmpty())
		})

		It("rejects a payer who is not a member", func() {
			req := createReq()
			req.PayerID = "zed"
			_, err := svc.Create(ctx, "amir", req)
			Expect(reasonOf(err)).To(Equal(split.ReasonPayerNotMember))
		})

		It("rejects a participant who is not a member", func() {
			req := createReq()
			req.Participants = participants("amir", "0", "zed", "0")
			_, err := svc.Create(ctx, "amir", req)
			Expect(reasonOf(err)).To(Equal(split.ReasonParticipantNotMember))
		})

		It("rejects duplicate participants", func() {
			req := createReq()
			req.Participants = participants("amir", "0", "bea", "0", "amir", "0")
			_, err := svc.Create(ctx, "amir", req)
			Expect(reasonOf(err)).To(Equal(split.ReasonDuplicateParticipant))
		})

		It("rejects percentages that do not reach 100", func() {
			req := createReq()
			req.SplitType = "PERCENTAGE"
			req.Participants = participants("amir", "50", "bea", "49")
			_, err := svc.Create(ctx, "amir", req)
			Expect(reasonOf(err)).To(Equal(split.ReasonPercentageSumMismatch))
		})

		It("rejects custom amounts that do not reach the total", func() {
			req := createReq()
			req.SplitType = "CUSTOM"
			req.Participants = participants("amir", "60", "bea", "30")
			_, err := svc.Create(ctx, "amir", req)
			Expect(reasonOf(err)).To(Equal(split.ReasonCustomSumMismatch))
		})

		It("rejects an empty participant list", func() {
			req := createReq()
			req.Participants = nil
			_, err := svc.Create(ctx, "amir", req)
			Expect(reasonOf(err)).To(Equal(split.ReasonMissingParticipants))
		})

		It("passes storage failures through unchanged", func() {
			store.failWith = errStoreDown
			_, err := svc.Create(ctx, "amir", createReq())
			Expect(err).To(MatchError(errStoreDown))
			_, isValidation := split.ReasonOf(err)
			Expect(isValidation).To(BeFalse())
		})
	})

	Describe("Modify", func() {
		var created *expense.Expense

		BeforeEach(func() {
			req := createReq()
			req.SplitType = "CUSTOM"
			req.Participants = participants("amir", "50", "bea", "30", "chen", "20")
			var err error
			created, err = svc.Create(ctx, "amir", req)
			Expect(err).NotTo(HaveOccurred())
		})

		It("leaves participants untouched when no split field changes", func() {
			e, err := svc.Modify(ctx, "amir", created.ID, &expense.UpdateExpenseRequest{
				Title: strPtr("Late dinner"),
				Notes: strPtr("tip included"),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Title).To(Equal("Late dinner"))
			Expect(e.Participants).To(HaveLen(3))
			for i, p := range e.Participants {
				Expect(p.MemberID).To(Equal(created.Participants[i].MemberID))
				Expect(p.Share.Equal(created.Participants[i].Share)).To(BeTrue())
			}
			Expect(e.Version).To(Equal(created.Version + 1))
		})

		It("re-validates when the amount changes", func() {
			_, err := svc.Modify(ctx, "amir", created.ID, &expense.UpdateExpenseRequest{Amount: money("120")})
			Expect(reasonOf(err)).To(Equal(split.ReasonCustomSumMismatch))

			stored, _ := store.GetByID(ctx, created.ID)
			Expect(stored.Amount.StringFixed(2)).To(Equal("100.00"))
		})

		It("recomputes EQUAL shares when only the amount changes", func() {
			eq, err := svc.Create(ctx, "amir", &expense.CreateExpenseRequest{
				GroupID:      "trip",
				Title:        "Taxi",
				Amount:       money("100"),
				PayerID:      "amir",
				SplitType:    "EQUAL",
				Participants: participants("amir", "0", "bea", "0"),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(shares(eq.Participants)).To(Equal([]string{"50.00", "50.00"}))

			garbage := participants("amir", "10", "bea", "90")
			e, err := svc.Modify(ctx, "amir", eq.ID, &expense.UpdateExpenseRequest{
				Amount:       money("101"),
				Participants: &garbage,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(shares(e.Participants)).To(Equal([]string{"50.50", "50.50"}))
		})

		It("switches policy and recomputes", func() {
			e, err := svc.Modify(ctx, "olga", created.ID, &expense.UpdateExpenseRequest{SplitType: strPtr("equal")})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.SplitType).To(Equal(split.PolicyEqual))
			Expect(shares(e.Participants)).To(Equal([]string{"33.33", "33.33", "33.34"}))
		})

		It("lets the group owner modify", func() {
			_, err := svc.Modify(ctx, "olga", created.ID, &expense.UpdateExpenseRequest{Title: strPtr("Owner edit")})
			Expect(err).NotTo(HaveOccurred())
		})

		It("forbids members who are neither owner nor payer", func() {
			_, err := svc.Modify(ctx, "bea", created.ID, &expense.UpdateExpenseRequest{Title: strPtr("Mine now")})
			Expect(errors.Is(err, expense.ErrForbidden)).To(BeTrue())
		})

		It("authorizes against the stored payer, not the proposed one", func() {
			_, err := svc.Modify(ctx, "bea", created.ID, &expense.UpdateExpenseRequest{PayerID: strPtr("bea")})
			Expect(errors.Is(err, expense.ErrForbidden)).To(BeTrue())

			_, err = svc.Modify(ctx, "amir", created.ID, &expense.UpdateExpenseRequest{PayerID: strPtr("bea")})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Modify(ctx, "amir", created.ID, &expense.UpdateExpenseRequest{Title: strPtr("Again")})
			Expect(errors.Is(err, expense.ErrForbidden)).To(BeTrue())
		})

		It("forbids a payer who has left the group", func() {
			groups.remove("trip", "amir")
			moved := participants("bea", "0", "chen", "0")
			_, err := svc.Modify(ctx, "amir", created.ID, &expense.UpdateExpenseRequest{
				PayerID:      strPtr("bea"),
				SplitType:    strPtr("EQUAL"),
				Amount:       money("5000"),
				Participants: &moved,
			})
			Expect(errors.Is(err, expense.ErrForbidden)).To(BeTrue())

			stored, _ := store.GetByID(ctx, created.ID)
			Expect(stored.PayerID).To(Equal("amir"))
			Expect(stored.Amount.StringFixed(2)).To(Equal("100.00"))
			Expect(stored.Version).To(Equal(created.Version))
		})

		It("leaves EQUAL participants identical when no split field changes", func() {
			eq, err := svc.Create(ctx, "amir", &expense.CreateExpenseRequest{
				GroupID:      "trip",
				Title:        "Taxi",
				Amount:       money("100"),
				PayerID:      "amir",
				SplitType:    "EQUAL",
				Participants: participants("amir", "0", "bea", "0", "chen", "0"),
			})
			Expect(err).NotTo(HaveOccurred())
			before, _ := store.GetByID(ctx, eq.ID)

			_, err = svc.Modify(ctx, "amir", eq.ID, &expense.UpdateExpenseRequest{
				Title:    strPtr("Airport taxi"),
				Category: strPtr("Transport"),
			})
			Expect(err).NotTo(HaveOccurred())

			after, _ := store.GetByID(ctx, eq.ID)
			Expect(after.Title).To(Equal("Airport taxi"))
			Expect(split.MemberIDs(after.Participants)).To(Equal(split.MemberIDs(before.Participants)))
			Expect(shares(after.Participants)).To(Equal(shares(before.Participants)))
			Expect(shares(after.Participants)).To(Equal([]string{"33.33", "33.33", "33.34"}))
		})

		It("rejects a new payer outside the group", func() {
			_, err := svc.Modify(ctx, "amir", created.ID, &expense.UpdateExpenseRequest{PayerID: strPtr("zed")})
			Expect(reasonOf(err)).To(Equal(split.ReasonPayerNotMember))
		})

		It("re-checks participant membership even without split changes", func() {
			groups.remove("trip", "chen")
			_, err := svc.Modify(ctx, "amir", created.ID, &expense.UpdateExpenseRequest{Title: strPtr("Still dinner")})
			Expect(reasonOf(err)).To(Equal(split.ReasonParticipantNotMember))
		})

		It("rejects a stale client version", func() {
			stale := created.Version
			_, err := svc.Modify(ctx, "amir", created.ID, &expense.UpdateExpenseRequest{Title: strPtr("First")})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Modify(ctx, "amir", created.ID, &expense.UpdateExpenseRequest{Title: strPtr("Second"), Version: &stale})
			Expect(errors.Is(err, expense.ErrConflict)).To(BeTrue())
		})

		It("reports a concurrent write as a conflict", func() {
			store.bumpBeforeUpdate = true
			_, err := svc.Modify(ctx, "amir", created.ID, &expense.UpdateExpenseRequest{Title: strPtr("Racing")})
			Expect(errors.Is(err, expense.ErrConflict)).To(BeTrue())
		})

		It("reports unknown expenses as not found", func() {
			_, err := svc.Modify(ctx, "amir", "missing", &expense.UpdateExpenseRequest{Title: strPtr("x")})
			Expect(errors.Is(err, expense.ErrExpenseNotFound)).To(BeTrue())
		})
	})

	Describe("Delete", func() {
		var created *expense.Expense

		BeforeEach(func() {
			var err error
			created, err = svc.Create(ctx, "amir", createReq())
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets the payer delete", func() {
			Expect(svc.Delete(ctx, "amir", created.ID)).To(Succeed())
			Expect(store.expenses).NotTo(HaveKey(created.ID))
		})

		It("lets the owner delete", func() {
			Expect(svc.Delete(ctx, "olga", created.ID)).To(Succeed())
		})

		It("forbids other members", func() {
			err := svc.Delete(ctx, "chen", created.ID)
			Expect(errors.Is(err, expense.ErrForbidden)).To(BeTrue())
			Expect(store.expenses).To(HaveKey(created.ID))
		})

		It("forbids a payer who has left the group", func() {
			groups.remove("trip", "amir")
			err := svc.Delete(ctx, "amir", created.ID)
			Expect(errors.Is(err, expense.ErrForbidden)).To(BeTrue())
			Expect(store.expenses).To(HaveKey(created.ID))
		})

		It("reports unknown expenses as not found", func() {
			err := svc.Delete(ctx, "amir", "missing")
			Expect(errors.Is(err, expense.ErrExpenseNotFound)).To(BeTrue())
		})
	})

	Describe("Get and ListByGroup", func() {
		It("returns expenses to members only", func() {
			created, err := svc.Create(ctx, "amir", createReq())
			Expect(err).NotTo(HaveOccurred())

			got, err := svc.Get(ctx, "chen", created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("Dinner"))

			_, err = svc.Get(ctx, "zed", created.ID)
			Expect(errors.Is(err, expense.ErrForbidden)).To(BeTrue())
		})

		It("lists newest date first", func() {
			for i, day := range []int{3, 10, 7} {
				req := createReq()
				req.Title = []string{"a", "b", "c"}[i]
				date := time.Date(2024, 5, day, 12, 0, 0, 0, time.UTC)
				req.Date = &date
				_, err := svc.Create(ctx, "amir", req)
				Expect(err).NotTo(HaveOccurred())
			}

			page, err := svc.ListByGroup(ctx, "bea", "trip", 1, 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(3))
			list := page.Expenses
			titles := []string{list[0].Title, list[1].Title, list[2].Title}
			Expect(titles).To(Equal([]string{"b", "c", "a"}))
		})

		It("falls back to default paging for out of range values", func() {
			for i := 0; i < 3; i++ {
				_, err := svc.Create(ctx, "amir", createReq())
				Expect(err).NotTo(HaveOccurred())
			}

			page, err := svc.ListByGroup(ctx, "bea", "trip", 0, 500)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Page).To(Equal(1))
			Expect(page.PerPage).To(Equal(20))
			Expect(page.TotalPages()).To(Equal(1))

			page, err = svc.ListByGroup(ctx, "bea", "trip", 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Expenses).To(HaveLen(1))
			Expect(page.TotalPages()).To(Equal(2))
		})

		It("forbids listing for non-members", func() {
			_, err := svc.ListByGroup(ctx, "zed", "trip", 1, 20)
			Expect(errors.Is(err, expense.ErrForbidden)).To(BeTrue())
		})
	})

	Describe("Preview", func() {
		It("gives the payer the remaining percentage", func() {
			p, err := svc.Preview(ctx, "amir", &expense.PreviewRequest{
				GroupID:      "trip",
				Amount:       money("200"),
				PayerID:      "amir",
				SplitType:    "PERCENTAGE",
				Participants: participants("bea", "30"),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.PayerShare.StringFixed(2)).To(Equal("70.00"))
			Expect(p.Participants[1].MemberID).To(Equal("amir"))
			Expect(p.Breakdown[0].Amount.StringFixed(2)).To(Equal("60.00"))
			Expect(p.Breakdown[1].Amount.StringFixed(2)).To(Equal("140.00"))
		})

		It("submits cleanly after a successful preview", func() {
			p, err := svc.Preview(ctx, "amir", &expense.PreviewRequest{
				GroupID:      "trip",
				Amount:       money("90"),
				PayerID:      "amir",
				SplitType:    "CUSTOM",
				Participants: participants("bea", "25.50", "chen", "10"),
			})
			Expect(err).NotTo(HaveOccurred())

			req := createReq()
			req.Amount = money("90")
			req.SplitType = "CUSTOM"
			req.Participants = p.Participants
			e, err := svc.Create(ctx, "amir", req)
			Expect(err).NotTo(HaveOccurred())
			Expect(shares(e.Participants)).To(Equal([]string{"25.50", "10.00", "54.50"}))
		})

		It("rejects entries that exceed the total", func() {
			_, err := svc.Preview(ctx, "amir", &expense.PreviewRequest{
				GroupID:      "trip",
				Amount:       money("50"),
				PayerID:      "amir",
				SplitType:    "CUSTOM",
				Participants: participants("bea", "60"),
			})
			Expect(reasonOf(err)).To(Equal(split.ReasonCustomSumMismatch))
		})

		It("rejects participants outside the group", func() {
			_, err := svc.Preview(ctx, "amir", &expense.PreviewRequest{
				GroupID:      "trip",
				Amount:       money("50"),
				PayerID:      "amir",
				SplitType:    "EQUAL",
				Participants: participants("zed", "0"),
			})
			Expect(reasonOf(err)).To(Equal(split.ReasonParticipantNotMember))
		})
	})
})
