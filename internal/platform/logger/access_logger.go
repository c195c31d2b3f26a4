package logger

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "x-request-id"

func AccessLoggerMiddleware(next http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, next, logrusAccessLogAdapter)
}

// This method should be writing to the io.Writer, but the logrus Fields
// cannot be used when writing to the io.Writer directly.
func logrusAccessLogAdapter(w io.Writer, params handlers.LogFormatterParams) {
	request := fmt.Sprintf("%s %s %s", params.Request.Method, params.Request.URL, params.Request.Proto)
	Log.WithFields(logrus.Fields{
		"remote_addr": params.Request.RemoteAddr,
		"request":     request,
		"request_id":  params.Request.Header.Get(RequestIDHeader),
		"tenant_id":   params.Request.Header.Get("X-Tenant-ID"),
		"status":      params.StatusCode,
		"size":        params.Size},
	).Info("access")
}
