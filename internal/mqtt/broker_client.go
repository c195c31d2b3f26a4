package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

var (
	ErrTLSHandshake      = errors.New("mqtt tls handshake failed")
	ErrBrokerConnect     = errors.New("mqtt broker connection failed")
	ErrConnectionLost    = errors.New("mqtt connection lost")
	ErrConnectionRefused = errors.New("mqtt connection refused")
	ErrTimeout           = errors.New("mqtt connection timeout")
	ErrEOF               = errors.New("mqtt connection closed unexpectedly")

	// CONNACK refusals
	ErrProtocolVersion       = errors.New("mqtt unacceptable protocol version")
	ErrIdentifierRejected    = errors.New("mqtt client identifier rejected")
	ErrServerUnavailable     = errors.New("mqtt server unavailable")
	ErrBadUsernameOrPassword = errors.New("mqtt bad username or password")
	ErrNotAuthorized         = errors.New("mqtt not authorized")
)

const (
	CodeConnectionLost    = 104 // ECONNRESET
	CodeConnectionRefused = 111 // ECONNREFUSED
	CodeTimeout           = 408
	CodeTLSHandshake      = 495
	CodeEOF               = 499
	CodeBrokerConnect     = 520
)

const (
	CategoryTLS      = "tls"
	CategoryNetwork  = "network"
	CategoryProtocol = "protocol"
	CategoryRuntime  = "runtime"
)

var connackErrors = map[byte]error{
	0x01: ErrProtocolVersion,
	0x02: ErrIdentifierRejected,
	0x03: ErrServerUnavailable,
	0x04: ErrBadUsernameOrPassword,
	0x05: ErrNotAuthorized,
}

type ConnectError struct {
	Code     int
	Kind     error
	Cause    error
	Category string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *ConnectError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Kind
}

func (e *ConnectError) Is(target error) bool {
	return target == e.Kind
}

type Subscriber struct {
	Topic      string
	EntryPoint MQTT.MessageHandler
	Qos        byte
}

// classifyNetworkError maps a transport failure.  category is network while
// connecting and runtime once the connection was up.
func classifyNetworkError(err error, category string) *ConnectError {
	newErr := func(code int, kind error) *ConnectError {
		return &ConnectError{Code: code, Kind: kind, Cause: err, Category: category}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return newErr(CodeTimeout, ErrTimeout)
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return newErr(CodeConnectionRefused, ErrConnectionRefused)
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return newErr(CodeConnectionLost, ErrConnectionLost)
	case errors.Is(err, io.EOF):
		return newErr(CodeEOF, ErrEOF)
	}

	lowerMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerMsg, "connection refused"):
		return newErr(CodeConnectionRefused, ErrConnectionRefused)
	case strings.Contains(lowerMsg, "timeout"):
		return newErr(CodeTimeout, ErrTimeout)
	case strings.Contains(lowerMsg, "eof"):
		return newErr(CodeEOF, ErrEOF)
	case strings.Contains(lowerMsg, "connection lost"), strings.Contains(lowerMsg, "keepalive"), strings.Contains(lowerMsg, "ping"):
		return newErr(CodeConnectionLost, ErrConnectionLost)
	}

	if category == CategoryRuntime {
		return newErr(CodeBrokerConnect, ErrConnectionLost)
	}
	return newErr(CodeBrokerConnect, ErrBrokerConnect)
}

func classifyConnectError(err error) *ConnectError {
	var tlsHeaderErr *tls.RecordHeaderError
	var unknownAuthErr x509.UnknownAuthorityError
	var certInvalidErr x509.CertificateInvalidError
	var hostErr x509.HostnameError

	if errors.As(err, &tlsHeaderErr) || errors.As(err, &unknownAuthErr) || errors.As(err, &certInvalidErr) || errors.As(err, &hostErr) {
		return &ConnectError{Code: CodeTLSHandshake, Kind: ErrTLSHandshake, Cause: err, Category: CategoryTLS}
	}

	return classifyNetworkError(err, CategoryNetwork)
}

func classifyProtocolReturnCode(rc byte) *ConnectError {
	if rc == 0x00 {
		return nil
	}

	kind, found := connackErrors[rc]
	if !found {
		kind = ErrBrokerConnect
	}

	return &ConnectError{Code: int(rc), Kind: kind, Cause: fmt.Errorf("connack=%d", rc), Category: CategoryProtocol}
}

// ClassifyConnectionLostError classifies the error handed to a connection
// lost callback
func ClassifyConnectionLostError(err error) *ConnectError {
	if err == nil {
		return &ConnectError{Code: CodeBrokerConnect, Kind: ErrConnectionLost, Cause: errors.New("connection lost"), Category: CategoryRuntime}
	}

	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce
	}

	return classifyNetworkError(err, CategoryRuntime)
}

func CreateBrokerConnection(brokerUrl string, brokerConfigFuncs ...MqttClientOptionsFunc) (MQTT.Client, error) {

	connOpts, err := NewBrokerOptions(brokerUrl, brokerConfigFuncs...)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to build MQTT ClientOptions")
		return nil, err
	}

	mqttClient := MQTT.NewClient(connOpts)
	if token := mqttClient.Connect(); token.Wait() {
		if ct, ok := token.(*MQTT.ConnectToken); ok {
			rc := ct.ReturnCode()
			if protoErr := classifyProtocolReturnCode(rc); protoErr != nil {
				logger.Log.WithFields(logrus.Fields{"error": protoErr, "connack_code": rc}).Error("MQTT CONNACK not accepted")
				return nil, protoErr
			}
		}

		if token.Error() != nil {
			connectErr := classifyConnectError(token.Error())
			logger.Log.WithFields(logrus.Fields{"error": connectErr}).Error("Unable to connect to MQTT broker")
			return nil, connectErr
		}
	}

	logger.Log.Info("Connected to MQTT broker: ", brokerUrl)

	return mqttClient, nil
}

func SubscribeToTopics(mqttClient MQTT.Client, subscribers ...Subscriber) error {
	for _, subscriber := range subscribers {
		logger.Log.Info("Subscribing to MQTT topic: ", subscriber.Topic)
		if token := mqttClient.Subscribe(subscriber.Topic, subscriber.Qos, subscriber.EntryPoint); token.Wait() && token.Error() != nil {
			logger.Log.WithFields(logrus.Fields{"error": token.Error(), "topic": subscriber.Topic}).Error("Subscribing to MQTT topic failed")
			return token.Error()
		}
	}
	return nil
}
