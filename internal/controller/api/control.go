package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/config"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/controller"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/middlewares"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/provider"

	"github.com/gorilla/mux"
	"github.com/redhatinsights/platform-go-middlewares/v2/request_id"
	"github.com/sirupsen/logrus"
)

const (
	connectStartedMessage = "Connection started. Scan the pairing code."
	sendFailedMessage     = "Unable to send message"
)

type SessionManager interface {
	Connect(tenantID domain.TenantID, tenantName string) (controller.SessionSnapshot, error)
	Status(tenantID domain.TenantID) (controller.SessionSnapshot, bool)
	ListActive() []controller.ActiveSession
	Logout(ctx context.Context, tenantID domain.TenantID) error
}

type MessageSender interface {
	Send(ctx context.Context, tenantID domain.TenantID, destination string, text string) (string, error)
	ListGroups(ctx context.Context, tenantID domain.TenantID) ([]provider.Group, error)
}

// ControlServer is the tenant facing http surface.  Handlers only read and
// mutate the session registry, connection attempts run in the background.
type ControlServer struct {
	sessions  SessionManager
	sender    MessageSender
	router    *mux.Router
	urlPrefix string
	config    *config.Config
}

func NewControlServer(sessions SessionManager, sender MessageSender, r *mux.Router, urlPrefix string, cfg *config.Config) *ControlServer {
	return &ControlServer{
		sessions:  sessions,
		sender:    sender,
		router:    r,
		urlPrefix: urlPrefix,
		config:    cfg,
	}
}

func (s *ControlServer) Routes() {
	mmw := &middlewares.MetricsMiddleware{}
	amw := &middlewares.AuthMiddleware{Secrets: s.config.ServiceToServiceCredentials}

	securedSubRouter := s.router.PathPrefix(s.urlPrefix).Subrouter()
	securedSubRouter.Use(logger.AccessLoggerMiddleware,
		mmw.RecordHTTPMetrics,
		amw.Authenticate)

	securedSubRouter.HandleFunc("/sessions", s.handleSessionListing()).Methods(http.MethodGet)

	tenantSubRouter := securedSubRouter.NewRoute().Subrouter()
	tenantSubRouter.Use(middlewares.RequireTenant)

	tenantSubRouter.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	tenantSubRouter.HandleFunc("/qr", s.handlePairingCode()).Methods(http.MethodGet)
	tenantSubRouter.HandleFunc("/connect", s.handleConnect()).Methods(http.MethodPost)
	tenantSubRouter.HandleFunc("/send-message", s.handleSendMessage()).Methods(http.MethodPost)
	tenantSubRouter.HandleFunc("/logout", s.handleLogout()).Methods(http.MethodPost)
	tenantSubRouter.HandleFunc("/groups", s.handleGroupListing()).Methods(http.MethodGet)
}

type healthResponse struct {
	Status    string                 `json:"status"`
	Connected bool                   `json:"connected"`
	TenantID  domain.TenantID        `json:"tenantId"`
	State     domain.ConnectionState `json:"state"`
}

type pairingCodeResponse struct {
	QrCode    *string `json:"qrCode,omitempty"`
	Connected bool    `json:"connected"`
	Phone     string  `json:"phone,omitempty"`
}

// notPairedResponse keeps qrCode in the body as an explicit null
type notPairedResponse struct {
	Connected bool    `json:"connected"`
	QrCode    *string `json:"qrCode"`
}

type connectResponse struct {
	Success   bool   `json:"success,omitempty"`
	Message   string `json:"message,omitempty"`
	Connected bool   `json:"connected,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type sendMessageRequest struct {
	Phone   string `json:"phone" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type groupListResponse struct {
	Groups []provider.Group `json:"groups"`
}

type sessionListResponse struct {
	Sessions []controller.ActiveSession `json:"sessions"`
}

func requestLogger(req *http.Request, tenantID domain.TenantID) *logrus.Entry {
	return logger.Log.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"request_id": request_id.GetReqID(req.Context()),
	})
}

func (s *ControlServer) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		tenantID, _ := middlewares.GetTenantID(req.Context())

		snapshot, _ := s.sessions.Status(tenantID)

		writeJSONResponse(w, http.StatusOK, healthResponse{
			Status:    "ok",
			Connected: snapshot.State == domain.Open,
			TenantID:  tenantID,
			State:     snapshot.State,
		})
	}
}

func (s *ControlServer) handlePairingCode() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		tenantID, _ := middlewares.GetTenantID(req.Context())

		snapshot, found := s.sessions.Status(tenantID)

		switch {
		case found && snapshot.State == domain.Open:
			writeJSONResponse(w, http.StatusOK, pairingCodeResponse{Connected: true, Phone: snapshot.Phone})
		case found && snapshot.PairingCode != "":
			code := snapshot.PairingCode
			writeJSONResponse(w, http.StatusOK, pairingCodeResponse{QrCode: &code, Connected: false})
		default:
			writeJSONResponse(w, http.StatusOK, notPairedResponse{Connected: false})
		}
	}
}

func (s *ControlServer) handleConnect() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		tenantID, _ := middlewares.GetTenantID(req.Context())
		logger := requestLogger(req, tenantID)

		snapshot, err := s.sessions.Connect(tenantID, req.Header.Get(middlewares.TenantNameHeader))
		if err != nil {
			logger.WithFields(logrus.Fields{"error": err}).Error("Unable to start tenant session")

			status := http.StatusInternalServerError
			if errors.Is(err, controller.ErrShuttingDown) {
				status = http.StatusServiceUnavailable
			}
			writeErrorResponse(w, status, "Unable to start the session", err.Error())
			return
		}

		if snapshot.State == domain.Open {
			writeJSONResponse(w, http.StatusOK, connectResponse{Connected: true, Phone: snapshot.Phone})
			return
		}

		logger.Info("Session connect requested")

		writeJSONResponse(w, http.StatusOK, connectResponse{Success: true, Message: connectStartedMessage})
	}
}

func (s *ControlServer) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		tenantID, _ := middlewares.GetTenantID(req.Context())
		logger := requestLogger(req, tenantID)

		body := http.MaxBytesReader(w, req.Body, 1048576)

		var msgRequest sendMessageRequest

		if err := decodeJSON(body, &msgRequest); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Unable to process json input", err.Error())
			return
		}

		messageID, err := s.sender.Send(req.Context(), tenantID, msgRequest.Phone, msgRequest.Message)
		if errors.Is(err, domain.ErrInvalidAddress) {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid destination", err.Error())
			return
		}

		if err != nil {
			logger.WithFields(logrus.Fields{"error": err}).Warn("Unable to send message")
			writeJSONResponse(w, http.StatusInternalServerError, successResponse{Success: false, Error: sendFailedMessage})
			return
		}

		logger.WithFields(logrus.Fields{"message_id": messageID}).Debug("Message sent")

		writeJSONResponse(w, http.StatusOK, successResponse{Success: true})
	}
}

func (s *ControlServer) handleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		tenantID, _ := middlewares.GetTenantID(req.Context())
		logger := requestLogger(req, tenantID)

		if err := s.sessions.Logout(req.Context(), tenantID); err != nil {
			logger.WithFields(logrus.Fields{"error": err}).Error("Unable to log out tenant session")
			writeJSONResponse(w, http.StatusInternalServerError, successResponse{Success: false, Error: err.Error()})
			return
		}

		writeJSONResponse(w, http.StatusOK, successResponse{Success: true})
	}
}

func (s *ControlServer) handleSessionListing() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sessions := s.sessions.ListActive()
		if sessions == nil {
			sessions = []controller.ActiveSession{}
		}

		writeJSONResponse(w, http.StatusOK, sessionListResponse{Sessions: sessions})
	}
}

// handleGroupListing answers with an empty list when the session is not open
// or the gateway cannot list the groups
func (s *ControlServer) handleGroupListing() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		tenantID, _ := middlewares.GetTenantID(req.Context())

		groups, err := s.sender.ListGroups(req.Context(), tenantID)
		if err != nil && !errors.Is(err, controller.ErrNotConnected) {
			requestLogger(req, tenantID).WithFields(logrus.Fields{"error": err}).Warn("Unable to list groups")
		}

		if err != nil || groups == nil {
			groups = []provider.Group{}
		}

		writeJSONResponse(w, http.StatusOK, groupListResponse{Groups: groups})
	}
}
