package expense_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/logger"
	"github.com/fkhayef/splitledger/pkg/middleware"
)

const (
	tripID  = "6f1c2a7e-3b9d-4c57-9a10-2d4e8f6b1a01"
	ownerID = "0b6e3c52-8a41-4f0e-9d7b-5c2a1e9f4d10"
	amirID  = "1c7f4d63-9b52-4a1f-8e8c-6d3b2fa05e21"
	beaID   = "2d805e74-ac63-4b20-9f9d-7e4c30b16f32"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
	Meta *struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
}

var errBadUUID = errors.New(`pq: invalid input syntax for type uuid`)

// uuidGroups fails like a uuid column does when handed anything but a uuid
type uuidGroups struct{ *memGroups }

func (g uuidGroups) GetGroup(ctx context.Context, id string) (*group.Group, error) {
	if uuid.Validate(id) != nil {
		return nil, errBadUUID
	}
	return g.memGroups.GetGroup(ctx, id)
}

func (g uuidGroups) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	if uuid.Validate(groupID) != nil || uuid.Validate(userID) != nil {
		return false, errBadUUID
	}
	return g.memGroups.IsMember(ctx, groupID, userID)
}

var _ = Describe("Handler", func() {
	var (
		store  *memStore
		router chi.Router
		caller string
	)

	BeforeEach(func() {
		store = newMemStore()
		groups := newMemGroups()
		groups.add(tripID, ownerID, amirID, beaID)
		svc := expense.NewService(store, uuidGroups{groups}, logger.Discard())
		caller = amirID

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), caller)))
			})
		})
		router.Mount("/expenses", expense.NewHandler(svc, logger.Discard()).Routes())
	})

	do := func(method, path, body string) (*httptest.ResponseRecorder, envelope) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		var env envelope
		Expect(json.Unmarshal(rec.Body.Bytes(), &env)).To(Succeed())
		return rec, env
	}

	createBody := func(splitType, participants string) string {
		return `{"groupId":"` + tripID + `","title":"Groceries","amount":100,"payerId":"` + amirID +
			`","splitType":"` + splitType + `","participants":` + participants + `}`
	}

	It("creates an expense and returns amounts as numbers", func() {
		rec, env := do(http.MethodPost, "/expenses",
			createBody("EQUAL", `[{"userId":"`+amirID+`"},{"userId":"`+beaID+`"}]`))
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(env.Success).To(BeTrue())

		var out struct {
			Amount       float64 `json:"amount"`
			Category     string  `json:"category"`
			Participants []struct {
				UserID string  `json:"userId"`
				Share  float64 `json:"share"`
			} `json:"participants"`
			Breakdown []struct {
				Percent float64 `json:"percent"`
			} `json:"breakdown"`
		}
		Expect(json.Unmarshal(env.Data, &out)).To(Succeed())
		Expect(out.Amount).To(Equal(100.0))
		Expect(out.Category).To(Equal("General"))
		Expect(out.Participants).To(HaveLen(2))
		Expect(out.Participants[0].Share).To(Equal(50.0))
		Expect(out.Breakdown[1].Percent).To(Equal(50.0))
	})

	It("reports validation failures with their reason", func() {
		rec, env := do(http.MethodPost, "/expenses",
			createBody("PERCENTAGE", `[{"userId":"`+amirID+`","share":60},{"userId":"`+beaID+`","share":30}]`))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(env.Error.Code).To(Equal("INVALID_EXPENSE"))
		Expect(env.Error.Reason).To(Equal("PERCENTAGE_SUM_MISMATCH"))
	})

	It("rejects malformed bodies", func() {
		rec, env := do(http.MethodPost, "/expenses", `{"amount":`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(env.Error.Code).To(Equal("BAD_REQUEST"))
	})

	It("returns 404 for unknown expenses", func() {
		rec, env := do(http.MethodGet, "/expenses/"+ownerID, "")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(env.Error.Code).To(Equal("NOT_FOUND"))
	})

	It("rejects ids that are not uuids", func() {
		rec, _ := do(http.MethodGet, "/expenses/42", "")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	Describe("ids in the body that are not uuids", func() {
		It("reports an unknown group as not found", func() {
			body := `{"groupId":"abc","title":"Groceries","amount":100,"payerId":"` + amirID +
				`","splitType":"EQUAL","participants":[{"userId":"` + amirID + `"}]}`
			rec, env := do(http.MethodPost, "/expenses", body)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(env.Error.Code).To(Equal("NOT_FOUND"))
		})

		It("reports a malformed payer as not a member", func() {
			body := `{"groupId":"` + tripID + `","title":"Groceries","amount":100,"payerId":"abc",` +
				`"splitType":"EQUAL","participants":[{"userId":"` + amirID + `"}]}`
			rec, env := do(http.MethodPost, "/expenses", body)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Reason).To(Equal("PAYER_NOT_MEMBER"))
		})

		It("reports a malformed participant as not a member", func() {
			rec, env := do(http.MethodPost, "/expenses",
				createBody("EQUAL", `[{"userId":"`+amirID+`"},{"userId":"bea"}]`))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Reason).To(Equal("PARTICIPANT_NOT_MEMBER"))
		})

		It("checks preview ids the same way", func() {
			body := `{"groupId":"nope","amount":80,"payerId":"` + amirID + `","splitType":"EQUAL"}`
			rec, _ := do(http.MethodPost, "/expenses/preview", body)
			Expect(rec.Code).To(Equal(http.StatusNotFound))

			body = `{"groupId":"` + tripID + `","amount":80,"payerId":"` + amirID +
				`","splitType":"CUSTOM","participants":[{"userId":"x1","share":30}]}`
			rec, env := do(http.MethodPost, "/expenses/preview", body)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Reason).To(Equal("PARTICIPANT_NOT_MEMBER"))
		})

		It("checks a modified payer and participants", func() {
			_, env := do(http.MethodPost, "/expenses",
				createBody("EQUAL", `[{"userId":"`+amirID+`"},{"userId":"`+beaID+`"}]`))
			var created struct {
				ID string `json:"id"`
			}
			Expect(json.Unmarshal(env.Data, &created)).To(Succeed())

			rec, env := do(http.MethodPatch, "/expenses/"+created.ID, `{"payerId":"amir"}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Reason).To(Equal("PAYER_NOT_MEMBER"))

			rec, env = do(http.MethodPatch, "/expenses/"+created.ID, `{"participants":[{"userId":"bea"}]}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Reason).To(Equal("PARTICIPANT_NOT_MEMBER"))
		})
	})

	It("returns 403 when a non-payer modifies", func() {
		rec, env := do(http.MethodPost, "/expenses",
			createBody("EQUAL", `[{"userId":"`+amirID+`"},{"userId":"`+beaID+`"}]`))
		Expect(rec.Code).To(Equal(http.StatusCreated))
		var created struct {
			ID string `json:"id"`
		}
		Expect(json.Unmarshal(env.Data, &created)).To(Succeed())

		caller = beaID
		rec, env = do(http.MethodPatch, "/expenses/"+created.ID, `{"title":"Mine"}`)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(env.Error.Code).To(Equal("FORBIDDEN"))
	})

	It("returns 409 on a stale version", func() {
		_, env := do(http.MethodPost, "/expenses",
			createBody("EQUAL", `[{"userId":"`+amirID+`"},{"userId":"`+beaID+`"}]`))
		var created struct {
			ID string `json:"id"`
		}
		Expect(json.Unmarshal(env.Data, &created)).To(Succeed())

		rec, env := do(http.MethodPatch, "/expenses/"+created.ID, `{"title":"Again","version":7}`)
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(env.Error.Code).To(Equal("CONFLICT"))
	})

	It("hides storage failures behind a generic 500", func() {
		store.failWith = errStoreDown
		rec, env := do(http.MethodGet, "/expenses/"+ownerID, "")
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(env.Error.Code).To(Equal("INTERNAL_ERROR"))
		Expect(env.Error.Message).NotTo(ContainSubstring("connection refused"))
	})

	It("previews the payer's share", func() {
		body := `{"groupId":"` + tripID + `","amount":80,"payerId":"` + amirID +
			`","splitType":"CUSTOM","participants":[{"userId":"` + beaID + `","share":30}]}`
		rec, env := do(http.MethodPost, "/expenses/preview", body)
		Expect(rec.Code).To(Equal(http.StatusOK))

		var out struct {
			PayerShare float64 `json:"payerShare"`
		}
		Expect(json.Unmarshal(env.Data, &out)).To(Succeed())
		Expect(out.PayerShare).To(Equal(50.0))
	})

	It("lists a group's expenses with paging metadata", func() {
		do(http.MethodPost, "/expenses", createBody("EQUAL", `[{"userId":"`+amirID+`"}]`))
		rec, env := do(http.MethodGet, "/expenses/group/"+tripID+"?per_page=5", "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var out []map[string]any
		Expect(json.Unmarshal(env.Data, &out)).To(Succeed())
		Expect(out).To(HaveLen(1))
		Expect(env.Meta.PerPage).To(Equal(5))
		Expect(env.Meta.Total).To(Equal(1))

		_, env = do(http.MethodGet, "/expenses/group/"+tripID+"?page=0&per_page=1000", "")
		Expect(env.Meta.Page).To(Equal(1))
		Expect(env.Meta.PerPage).To(Equal(20))
	})
})
