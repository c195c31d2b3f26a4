package main

import (
	"fmt"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/config"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/credentials"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
)

func startSavedSessionReport() {

	logger.InitLogger()

	logger.Log.Info("Starting Chat-Connector saved session report")

	cfg := config.GetConfig()

	store, err := credentials.NewOsStore(cfg.AuthSessionsPath)
	if err != nil {
		logger.LogFatalError("Unable to open the credential store", err)
	}

	saved, err := store.List()
	if err != nil {
		logger.LogFatalError("Unable to list saved sessions", err)
	}

	for _, t := range saved {
		fmt.Printf("%s - %s\n", t.TenantID, t.TenantName)
	}
}
