package middlewares

import (
	"crypto/subtle"
	"errors"
)

type serviceCredentials struct {
	clientID string
	psk      string
}

func newServiceCredentials(clientID, psk string) (*serviceCredentials, error) {
	switch {
	case clientID == "":
		return nil, errors.New(authErrorLogHeader + "Missing " + PSKClientIdHeader + " header")
	case psk == "":
		return nil, errors.New(authErrorLogHeader + "Missing " + PSKHeader + " header")
	}
	return &serviceCredentials{
		clientID: clientID,
		psk:      psk,
	}, nil
}

type serviceCredentialsValidator struct {
	knownServiceCredentials map[string]interface{}
}

func (scv *serviceCredentialsValidator) validate(sc *serviceCredentials) error {
	knownPsk, ok := scv.knownServiceCredentials[sc.clientID].(string)
	switch {
	case !ok:
		return errors.New(authErrorLogHeader + "Provided ClientID not attached to any known keys")
	case subtle.ConstantTimeCompare([]byte(sc.psk), []byte(knownPsk)) != 1:
		return errors.New(authErrorLogHeader + "Provided PSK does not match known key for this client")
	}
	return nil
}
