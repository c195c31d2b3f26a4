package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/config"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/controller"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/middlewares"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/provider"

	"github.com/gorilla/mux"
)

const (
	URL_BASE_PATH = "/api"

	HEALTH_ENDPOINT       = URL_BASE_PATH + "/health"
	QR_ENDPOINT           = URL_BASE_PATH + "/qr"
	CONNECT_ENDPOINT      = URL_BASE_PATH + "/connect"
	SEND_MESSAGE_ENDPOINT = URL_BASE_PATH + "/send-message"
	LOGOUT_ENDPOINT       = URL_BASE_PATH + "/logout"
	SESSIONS_ENDPOINT     = URL_BASE_PATH + "/sessions"
	GROUPS_ENDPOINT       = URL_BASE_PATH + "/groups"

	TENANT_ID = "tenant-1"
)

func createSendMessagePostBody(phone string, message string) io.Reader {
	body, _ := json.Marshal(map[string]string{"phone": phone, "message": message})
	return strings.NewReader(string(body))
}

var _ = Describe("Control", func() {

	var (
		cs       *ControlServer
		sessions *MockSessionManager
		sender   *MockMessageSender
	)

	BeforeEach(func() {
		apiMux := mux.NewRouter()
		cfg := config.GetConfig()
		cfg.ServiceToServiceCredentials = map[string]interface{}{}

		sessions = NewMockSessionManager()
		sender = &MockMessageSender{}

		cs = NewControlServer(sessions, sender, apiMux, URL_BASE_PATH, cfg)
		cs.Routes()
	})

	serve := func(method string, endpoint string, body io.Reader, tenantID string) (*httptest.ResponseRecorder, map[string]interface{}) {
		req, err := http.NewRequest(method, endpoint, body)
		Expect(err).NotTo(HaveOccurred())

		if tenantID != "" {
			req.Header.Add(middlewares.TenantIDHeader, tenantID)
		}

		rr := httptest.NewRecorder()
		cs.router.ServeHTTP(rr, req)

		var m map[string]interface{}
		json.Unmarshal(rr.Body.Bytes(), &m)

		return rr, m
	}

	DescribeTable("Requests without a tenant header",
		func(method string, endpoint string) {
			rr, m := serve(method, endpoint, nil, "")

			Expect(rr.Code).To(Equal(http.StatusBadRequest))
			Expect(m).Should(HaveKeyWithValue("status", BeEquivalentTo(http.StatusBadRequest)))
		},
		Entry("health", http.MethodGet, HEALTH_ENDPOINT),
		Entry("qr", http.MethodGet, QR_ENDPOINT),
		Entry("connect", http.MethodPost, CONNECT_ENDPOINT),
		Entry("send-message", http.MethodPost, SEND_MESSAGE_ENDPOINT),
		Entry("logout", http.MethodPost, LOGOUT_ENDPOINT),
		Entry("groups", http.MethodGet, GROUPS_ENDPOINT),
	)

	Describe("Connecting to the health endpoint", func() {
		It("Should report a tenant without a session as not connected", func() {
			rr, m := serve(http.MethodGet, HEALTH_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("status", "ok"))
			Expect(m).Should(HaveKeyWithValue("connected", false))
			Expect(m).Should(HaveKeyWithValue("tenantId", TENANT_ID))
			Expect(m).Should(HaveKeyWithValue("state", string(domain.Closed)))
		})

		It("Should report an open session as connected", func() {
			sessions.put(controller.SessionSnapshot{TenantID: TENANT_ID, State: domain.Open, Phone: "5491112345678"})

			rr, m := serve(http.MethodGet, HEALTH_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("connected", true))
			Expect(m).Should(HaveKeyWithValue("state", string(domain.Open)))
		})
	})

	Describe("Connecting to the qr endpoint", func() {
		It("Should return a null code when the tenant has no session", func() {
			rr, m := serve(http.MethodGet, QR_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("connected", false))
			Expect(m).Should(HaveKey("qrCode"))
			Expect(m["qrCode"]).To(BeNil())
		})

		It("Should return the pairing code while pairing", func() {
			sessions.put(controller.SessionSnapshot{TenantID: TENANT_ID, State: domain.AwaitingPairing, PairingCode: "2@abc"})

			rr, m := serve(http.MethodGet, QR_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("qrCode", "2@abc"))
			Expect(m).Should(HaveKeyWithValue("connected", false))
		})

		It("Should return the phone once paired", func() {
			sessions.put(controller.SessionSnapshot{TenantID: TENANT_ID, State: domain.Open, Phone: "5491112345678"})

			rr, m := serve(http.MethodGet, QR_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("connected", true))
			Expect(m).Should(HaveKeyWithValue("phone", "5491112345678"))
			Expect(m).ShouldNot(HaveKey("qrCode"))
		})

		It("Should return a null code while connecting", func() {
			sessions.put(controller.SessionSnapshot{TenantID: TENANT_ID, State: domain.Connecting})

			_, m := serve(http.MethodGet, QR_ENDPOINT, nil, TENANT_ID)

			Expect(m).Should(HaveKeyWithValue("connected", false))
			Expect(m["qrCode"]).To(BeNil())
		})
	})

	Describe("Connecting to the connect endpoint", func() {
		It("Should start a session with the tenant name", func() {
			req, err := http.NewRequest(http.MethodPost, CONNECT_ENDPOINT, nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Add(middlewares.TenantIDHeader, TENANT_ID)
			req.Header.Add(middlewares.TenantNameHeader, "Acme")

			rr := httptest.NewRecorder()
			cs.router.ServeHTTP(rr, req)

			var m map[string]interface{}
			json.Unmarshal(rr.Body.Bytes(), &m)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("success", true))
			Expect(m).Should(HaveKey("message"))
			Expect(sessions.connected).To(Equal([]string{TENANT_ID + "/Acme"}))
		})

		It("Should report an already open session", func() {
			sessions.put(controller.SessionSnapshot{TenantID: TENANT_ID, State: domain.Open, Phone: "5491112345678"})

			rr, m := serve(http.MethodPost, CONNECT_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("connected", true))
			Expect(m).Should(HaveKeyWithValue("phone", "5491112345678"))
		})

		It("Should return 503 while shutting down", func() {
			sessions.connectErr = controller.ErrShuttingDown

			rr, m := serve(http.MethodPost, CONNECT_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(m).Should(HaveKeyWithValue("detail", controller.ErrShuttingDown.Error()))
		})
	})

	Describe("Connecting to the send-message endpoint", func() {
		It("Should send the message", func() {
			rr, m := serve(http.MethodPost, SEND_MESSAGE_ENDPOINT, createSendMessagePostBody("5491112345678", "hola"), TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("success", true))
			Expect(sender.sent).To(Equal([]sentMessage{{TenantID: TENANT_ID, Destination: "5491112345678", Text: "hola"}}))
		})

		DescribeTable("Should reject incomplete bodies",
			func(body string) {
				rr, m := serve(http.MethodPost, SEND_MESSAGE_ENDPOINT, strings.NewReader(body), TENANT_ID)

				Expect(rr.Code).To(Equal(http.StatusBadRequest))
				Expect(m).Should(HaveKeyWithValue("status", BeEquivalentTo(http.StatusBadRequest)))
				Expect(sender.sent).To(BeEmpty())
			},
			Entry("missing phone", `{"message": "hola"}`),
			Entry("missing message", `{"phone": "5491112345678"}`),
			Entry("empty message", `{"phone": "5491112345678", "message": ""}`),
			Entry("malformed json", `{"phone": `),
			Entry("two objects", `{"phone": "1", "message": "a"}{"phone": "2", "message": "b"}`),
		)

		It("Should reject an unusable destination", func() {
			rr, _ := serve(http.MethodPost, SEND_MESSAGE_ENDPOINT, createSendMessagePostBody("+-()", "hola"), TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusBadRequest))
		})

		It("Should return a failure when the tenant is not connected", func() {
			sender.sendErr = controller.ErrNotConnected

			rr, m := serve(http.MethodPost, SEND_MESSAGE_ENDPOINT, createSendMessagePostBody("5491112345678", "hola"), TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusInternalServerError))
			Expect(m).Should(HaveKeyWithValue("success", false))
			Expect(m).Should(HaveKey("error"))
		})

		It("Should return a failure when the send fails", func() {
			sender.sendErr = errMockSendFailed

			rr, m := serve(http.MethodPost, SEND_MESSAGE_ENDPOINT, createSendMessagePostBody("5491112345678", "hola"), TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusInternalServerError))
			Expect(m).Should(HaveKeyWithValue("success", false))
		})
	})

	Describe("Connecting to the logout endpoint", func() {
		It("Should log out a tenant with a session", func() {
			sessions.put(controller.SessionSnapshot{TenantID: TENANT_ID, State: domain.Open})

			rr, m := serve(http.MethodPost, LOGOUT_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("success", true))
			Expect(sessions.loggedOut).To(Equal([]domain.TenantID{TENANT_ID}))
		})

		It("Should succeed for a tenant without a session", func() {
			rr, m := serve(http.MethodPost, LOGOUT_ENDPOINT, nil, "tenant-unknown")

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("success", true))
		})

		It("Should report a failed logout", func() {
			sessions.logoutErr = io.ErrUnexpectedEOF

			rr, m := serve(http.MethodPost, LOGOUT_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusInternalServerError))
			Expect(m).Should(HaveKeyWithValue("success", false))
		})
	})

	Describe("Connecting to the groups endpoint", func() {
		It("Should list the groups of an open session", func() {
			sender.groups = []provider.Group{
				{ID: "120363000000000001@g.us", Name: "Ventas", Participants: 12, IsAdmin: true},
			}

			rr, m := serve(http.MethodGet, GROUPS_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m["groups"]).To(ConsistOf(map[string]interface{}{
				"id":           "120363000000000001@g.us",
				"name":         "Ventas",
				"participants": float64(12),
				"isAdmin":      true,
			}))
		})

		It("Should return an empty list when the tenant is not connected", func() {
			sender.groupsErr = controller.ErrNotConnected

			rr, m := serve(http.MethodGet, GROUPS_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("groups", BeEmpty()))
		})

		It("Should return an empty list when the gateway fails", func() {
			sender.groupsErr = provider.ErrGroupsFailed

			rr, m := serve(http.MethodGet, GROUPS_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("groups", BeEmpty()))
		})
	})

	Describe("Connecting to the sessions endpoint", func() {
		It("Should return an empty list", func() {
			rr, m := serve(http.MethodGet, SESSIONS_ENDPOINT, nil, "")

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m).Should(HaveKeyWithValue("sessions", BeEmpty()))
		})

		It("Should list every registered session", func() {
			sessions.put(controller.SessionSnapshot{TenantID: TENANT_ID, TenantName: "Acme", State: domain.Open})

			rr, m := serve(http.MethodGet, SESSIONS_ENDPOINT, nil, "")

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(m["sessions"]).To(ConsistOf(map[string]interface{}{
				"tenantId":   TENANT_ID,
				"tenantName": "Acme",
				"connected":  true,
				"state":      string(domain.Open),
			}))
		})
	})

	Describe("Using service to service credentials", func() {
		BeforeEach(func() {
			apiMux := mux.NewRouter()
			cfg := config.GetConfig()
			cfg.ServiceToServiceCredentials = map[string]interface{}{"crm": "12345"}

			cs = NewControlServer(sessions, sender, apiMux, URL_BASE_PATH, cfg)
			cs.Routes()
		})

		It("Should reject requests without a key", func() {
			rr, _ := serve(http.MethodGet, HEALTH_ENDPOINT, nil, TENANT_ID)

			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})

		It("Should accept requests with the key", func() {
			req, err := http.NewRequest(http.MethodGet, HEALTH_ENDPOINT, nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Add(middlewares.TenantIDHeader, TENANT_ID)
			req.Header.Add(middlewares.PSKClientIdHeader, "crm")
			req.Header.Add(middlewares.PSKHeader, "12345")

			rr := httptest.NewRecorder()
			cs.router.ServeHTTP(rr, req)

			Expect(rr.Code).To(Equal(http.StatusOK))
		})
	})
})
