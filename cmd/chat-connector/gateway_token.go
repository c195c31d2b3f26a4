package main

import (
	"context"
	"fmt"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/config"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/utils/jwt_utils"
)

// buildGatewayJwtGenerator returns nil when hmac signing is configured
// without a secret
func buildGatewayJwtGenerator(cfg *config.Config) (jwt_utils.JwtGenerator, error) {
	switch cfg.GatewayTokenGenerator {
	case jwt_utils.FileTokenGenerator:
		return jwt_utils.NewFileBasedJwtGenerator(cfg.GatewayTokenFile)
	case jwt_utils.HmacTokenGenerator, "":
		if cfg.GatewayTokenSecret == "" {
			return nil, nil
		}
		return jwt_utils.NewHMACBasedJwtGenerator(cfg.GatewayTokenSecret, cfg.GatewayTokenIssuer, cfg.GatewayTokenExpiry)
	default:
		return nil, fmt.Errorf("invalid gateway token generator impl: %s", cfg.GatewayTokenGenerator)
	}
}

func printGatewayToken(tenantID string) {

	logger.InitLogger()

	cfg := config.GetConfig()

	if err := domain.ValidateTenantID(domain.TenantID(tenantID)); err != nil {
		logger.LogFatalError("Invalid tenant id", err)
	}

	jwtGenerator, err := buildGatewayJwtGenerator(cfg)
	if err != nil {
		logger.LogFatalError("Unable to create the token generator", err)
	}

	if jwtGenerator == nil {
		logger.LogFatalError("Unable to create the token generator", jwt_utils.ErrMissingSecret)
	}

	token, err := jwtGenerator(context.Background(), tenantID)
	if err != nil {
		logger.LogFatalError("Unable to generate a token", err)
	}

	fmt.Println(token)
}
