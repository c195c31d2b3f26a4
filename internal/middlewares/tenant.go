package middlewares

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

const (
	TenantIDHeader   = "X-Tenant-ID"
	TenantNameHeader = "X-Tenant-Name"
)

type tenantErrorResponse struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// RequireTenant rejects requests without a valid tenant header and stores
// the tenant id on the request context
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := domain.TenantID(r.Header.Get(TenantIDHeader))

		var detail string
		switch {
		case tenantID == "":
			detail = TenantIDHeader + " header is required"
		case domain.ValidateTenantID(tenantID) != nil:
			detail = TenantIDHeader + " header is not a valid tenant id"
		}

		if detail != "" {
			logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID, "path": r.URL.Path}).Debug("Rejecting request without a usable tenant")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(tenantErrorResponse{
				Title:  http.StatusText(http.StatusBadRequest),
				Status: http.StatusBadRequest,
				Detail: detail,
			})
			return
		}

		ctx := context.WithValue(r.Context(), tenantKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetTenantID(ctx context.Context) (domain.TenantID, bool) {
	tenantID, ok := ctx.Value(tenantKey).(domain.TenantID)
	return tenantID, ok
}
