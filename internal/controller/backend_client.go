package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	TenantIDHeader  = "X-Tenant-ID"
	requestIDHeader = logger.RequestIDHeader

	recordMessagePath    = "/bot/messages"
	currentTenantPath    = "/tenants/public/current"
	botConfigPath        = "/bot/public/config"
	generateResponsePath = "/bot/generate-response"

	autoReplyPlan = "pro"
)

type BackendError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

// BackendClient talks to the tenant-facing backend.  Every call carries the
// tenant id header.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewBackendClient(baseURL string, timeout time.Duration) *BackendClient {
	return &BackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *BackendClient) RecordMessage(ctx context.Context, tenantID domain.TenantID, record MessageRecord) error {
	return c.makeHttpRequest(ctx, tenantID, http.MethodPost, recordMessagePath, record, nil)
}

type currentTenantResponse struct {
	Tenant struct {
		Plan string `json:"plan"`
	} `json:"tenant"`
}

type botConfigResponse struct {
	Config struct {
		IsActive *bool `json:"isActive"`
	} `json:"config"`
}

// BotEnabled reports whether the tenant's plan includes automatic replies
// and the bot has not been switched off
func (c *BackendClient) BotEnabled(ctx context.Context, tenantID domain.TenantID) (bool, error) {
	var tenant currentTenantResponse
	if err := c.makeHttpRequest(ctx, tenantID, http.MethodGet, currentTenantPath, nil, &tenant); err != nil {
		return false, err
	}

	if strings.ToLower(tenant.Tenant.Plan) != autoReplyPlan {
		return false, nil
	}

	var botConfig botConfigResponse
	if err := c.makeHttpRequest(ctx, tenantID, http.MethodGet, botConfigPath, nil, &botConfig); err != nil {
		return false, err
	}

	return botConfig.Config.IsActive == nil || *botConfig.Config.IsActive, nil
}

type generateResponseRequest struct {
	Message string `json:"message"`
}

type generateResponseResponse struct {
	Response string `json:"response"`
}

func (c *BackendClient) GenerateResponse(ctx context.Context, tenantID domain.TenantID, message string) (string, error) {
	var resp generateResponseResponse
	err := c.makeHttpRequest(ctx, tenantID, http.MethodPost, generateResponsePath, generateResponseRequest{Message: message}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (c *BackendClient) makeHttpRequest(ctx context.Context, tenantID domain.TenantID, method, path string, body interface{}, out interface{}) error {

	requestID := uuid.NewString()

	logger := logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID, "request_id": requestID, "path": path})

	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			logger.WithFields(logrus.Fields{"error": err}).Error("Unable to marshal backend request into json")
			return err
		}
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TenantIDHeader, string(tenantID))
	req.Header.Set(requestIDHeader, requestID)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.backendRequestDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Debug("Backend request failed")
		return err
	}
	defer resp.Body.Close()

	metrics.backendStatusCodeCounter.With(prometheus.Labels{"status_code": strconv.Itoa(resp.StatusCode)}).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &BackendError{Method: method, Path: path, StatusCode: resp.StatusCode}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Error("Unable to parse backend response")
		return err
	}

	return nil
}
