package middlewares_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/middlewares"
)

var _ = Describe("RequireTenant", func() {
	var (
		req          *http.Request
		rr           *httptest.ResponseRecorder
		seenTenantID domain.TenantID
		handler      http.Handler
	)

	BeforeEach(func() {
		seenTenantID = ""
		handler = middlewares.RequireTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, ok := middlewares.GetTenantID(r.Context())
			Expect(ok).To(BeTrue())
			seenTenantID = tenantID
		}))

		r, err := http.NewRequest("GET", "/api/qr", nil)
		Expect(err).ShouldNot(HaveOccurred())
		req = r
		rr = httptest.NewRecorder()
	})

	It("Should pass the tenant id to the handler", func() {
		req.Header.Set(middlewares.TenantIDHeader, "tenant-1234")

		handler.ServeHTTP(rr, req)

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(seenTenantID).To(Equal(domain.TenantID("tenant-1234")))
	})

	DescribeTable("Should reject unusable tenant headers",
		func(tenantHeader string) {
			if tenantHeader != "" {
				req.Header.Set(middlewares.TenantIDHeader, tenantHeader)
			}

			handler.ServeHTTP(rr, req)

			Expect(rr.Code).To(Equal(http.StatusBadRequest))
			Expect(seenTenantID).To(BeEmpty())

			var body map[string]interface{}
			Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
			Expect(body["status"]).To(BeEquivalentTo(http.StatusBadRequest))
			Expect(body["detail"]).ToNot(BeEmpty())
		},
		Entry("missing", ""),
		Entry("path traversal", ".."),
		Entry("path separator", "a/b"),
	)
})
