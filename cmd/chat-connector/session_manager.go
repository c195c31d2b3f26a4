package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/config"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/controller"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/controller/api"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/credentials"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/utils"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/utils/tls_utils"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/provider"
	"github.com/redhatinsights/platform-go-middlewares/v2/request_id"

	"github.com/gorilla/mux"
)

func buildGatewayDialer(cfg *config.Config) (*provider.GatewayDialer, error) {

	tlsConfigFuncs := []tls_utils.TlsConfigFunc{}

	if cfg.GatewayCAFile != "" {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithCACerts(cfg.GatewayCAFile))
	}

	if cfg.GatewaySkipVerify {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithSkipVerify())
	}

	tlsConfig, err := tls_utils.NewTlsConfig(tlsConfigFuncs...)
	if err != nil {
		return nil, err
	}

	dialOptions := []provider.DialOptionsFunc{
		provider.WithHandshakeTimeout(cfg.GatewayHandshakeTimeout),
		provider.WithKeepAlive(cfg.GatewayKeepalive),
		provider.WithWriteTimeout(cfg.GatewayWriteTimeout),
		provider.WithReadLimit(cfg.GatewayReadLimit),
		provider.WithEventBufferDepth(cfg.GatewayEventBufferDepth),
		provider.WithBrowserName(cfg.GatewayBrowserName),
	}

	if tlsConfig != nil {
		dialOptions = append(dialOptions, provider.WithTlsConfig(tlsConfig))
	}

	jwtGenerator, err := buildGatewayJwtGenerator(cfg)
	if err != nil {
		return nil, err
	}

	if jwtGenerator != nil {
		dialOptions = append(dialOptions, provider.WithJwtAsHttpHeader(jwtGenerator))
	} else {
		logger.Log.Warn("No gateway token secret configured, gateway sessions will not be authenticated")
	}

	return provider.NewGatewayDialer(cfg.GatewayUrl, dialOptions...)
}

func startSessionManager(listenAddr string) {

	logger.InitLogger()

	logger.Log.Info("Starting Chat-Connector session manager")

	cfg := config.GetConfig()
	logger.Log.Info("Chat-Connector configuration:\n", cfg)

	store, err := credentials.NewOsStore(cfg.AuthSessionsPath)
	if err != nil {
		logger.LogFatalError("Unable to open the credential store", err)
	}

	dialer, err := buildGatewayDialer(cfg)
	if err != nil {
		logger.LogFatalError("Unable to configure the gateway connection", err)
	}

	recorder, err := controller.NewMessageRecorder(cfg.MessageRecorderImpl, cfg)
	if err != nil {
		logger.LogFatalError("Unable to create the message recorder", err)
	}

	publisher, mqttClient, err := buildStatusPublisher(cfg)
	if err != nil {
		logger.LogFatalError("Unable to create the session status publisher", err)
	}

	registry := controller.NewSessionRegistry()

	dispatcher := controller.NewOutboundDispatcher(registry, recorder, cfg.SendMirrorTimeout)

	var responder *controller.AutoResponder
	if cfg.AutoReplyEnabled {
		logger.Log.Info("Auto reply is enabled")
		generator := controller.NewBackendClient(cfg.BackendBaseUrl, cfg.BackendTimeout)
		responder = controller.NewAutoResponder(generator, dispatcher, recorder, cfg.AutoReplyTimeout)
	}

	ingestion, err := controller.NewIngestionPipeline(recorder, cfg.DedupCacheSize, responder)
	if err != nil {
		logger.LogFatalError("Unable to create the ingestion pipeline", err)
	}

	lifecycle := controller.NewLifecycleController(registry, store, dialer, publisher, ingestion, controller.LifecycleConfig{
		ReconnectDelay:   cfg.ReconnectDelay,
		ReconnectCap:     cfg.ReconnectCap,
		ReconnectWindow:  cfg.ReconnectWindow,
		DialTimeout:      cfg.GatewayHandshakeTimeout,
		LogoutTimeout:    cfg.GatewayLogoutTimeout,
		IngestQueueDepth: cfg.IngestQueueDepth,
	})

	apiMux := mux.NewRouter()
	apiMux.Use(request_id.ConfiguredRequestID(logger.RequestIDHeader))

	monitoringServer := api.NewMonitoringServer(apiMux, cfg, lifecycle.Restored)
	monitoringServer.Routes()

	controlServer := api.NewControlServer(lifecycle, dispatcher, apiMux, cfg.UrlBasePath, cfg)
	controlServer.Routes()

	apiSrv := utils.StartHTTPServer(listenAddr, "session-manager", apiMux)

	if err := lifecycle.Restore(context.Background()); err != nil {
		logger.LogError("Unable to restore saved sessions", err)
	}

	signalChan := make(chan os.Signal, 1)

	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan

	logger.Log.Info("Received signal to shutdown: ", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HttpShutdownTimeout)
	defer cancel()

	utils.ShutdownHTTPServer(ctx, "session-manager", apiSrv)

	sessionCtx, sessionCancel := context.WithTimeout(context.Background(), cfg.HttpShutdownTimeout)
	defer sessionCancel()

	if err := lifecycle.Shutdown(sessionCtx); err != nil {
		logger.LogError("Sessions did not shut down cleanly", err)
	}

	if mqttClient != nil {
		mqttClient.Disconnect(cfg.MqttDisconnectQuiesceTime)
	}

	logger.Log.Info("Chat-Connector shutting down")
}
