package jwt_utils

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
)

const (
	HmacTokenGenerator = "jwt_hmac_generator"
	FileTokenGenerator = "jwt_file_reader"
)

var ErrMissingSecret = errors.New("a token secret is required")

// JwtGenerator returns a token that authenticates the given subject
type JwtGenerator func(ctx context.Context, subject string) (string, error)

func NewFileBasedJwtGenerator(filename string) (JwtGenerator, error) {
	logger.Log.Debug("Loading JWT from a file: ", filename)

	jwtBytes, err := os.ReadFile(filename)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Could not read jwt from file")
		return nil, err
	}

	jwtText := strings.TrimSpace(string(jwtBytes))

	return func(context.Context, string) (string, error) {
		return jwtText, nil
	}, nil
}

func NewHMACBasedJwtGenerator(secret string, issuer string, expiry time.Duration) (JwtGenerator, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	signKey := []byte(secret)

	return func(ctx context.Context, subject string) (string, error) {
		now := time.Now()
		expiryDate := now.Add(expiry)
		logger.Log.WithFields(logrus.Fields{"subject": subject}).Debug("Generating an HMAC JWT token with expiry : ", expiryDate)
		return createHmacToken(subject, issuer, now, expiryDate, signKey)
	}, nil
}

func createHmacToken(subject string, issuer string, issuedAt time.Time, exp time.Time, signKey []byte) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.StandardClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  issuedAt.UTC().Unix(),
		ExpiresAt: exp.UTC().Unix(),
	})
	return t.SignedString(signKey)
}
