package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ENV_PREFIX = "CHAT_CONNECTOR"

	URL_APP_NAME                   = "URL_App_Name"
	URL_PATH_PREFIX                = "URL_Path_Prefix"
	URL_BASE_PATH                  = "URL_Base_Path"
	HTTP_SHUTDOWN_TIMEOUT          = "HTTP_Shutdown_Timeout"
	SERVICE_TO_SERVICE_CREDENTIALS = "Service_To_Service_Credentials"
	PROFILE                        = "Enable_Profile"

	AUTH_SESSIONS_PATH = "Auth_Sessions_Path"

	GATEWAY_URL                = "Gateway_Url"
	GATEWAY_HANDSHAKE_TIMEOUT  = "Gateway_Handshake_Timeout"
	GATEWAY_KEEPALIVE          = "Gateway_Keepalive"
	GATEWAY_WRITE_TIMEOUT      = "Gateway_Write_Timeout"
	GATEWAY_READ_LIMIT         = "Gateway_Read_Limit"
	GATEWAY_BROWSER_NAME       = "Gateway_Browser_Name"
	GATEWAY_TOKEN_SECRET       = "Gateway_Token_Secret"
	GATEWAY_TOKEN_EXPIRY       = "Gateway_Token_Expiry"
	GATEWAY_TOKEN_ISSUER       = "Gateway_Token_Issuer"
	GATEWAY_TOKEN_GENERATOR    = "Gateway_Token_Generator_Impl"
	GATEWAY_TOKEN_FILE         = "Gateway_Token_File"
	GATEWAY_CA_FILE            = "Gateway_CA_File"
	GATEWAY_SKIP_VERIFY        = "Gateway_Skip_Verify"
	GATEWAY_LOGOUT_TIMEOUT     = "Gateway_Logout_Timeout"
	GATEWAY_EVENT_BUFFER_DEPTH = "Gateway_Event_Buffer_Depth"

	RECONNECT_DELAY  = "Reconnect_Delay"
	RECONNECT_CAP    = "Reconnect_Cap"
	RECONNECT_WINDOW = "Reconnect_Window"

	INGEST_QUEUE_DEPTH = "Ingest_Queue_Depth"
	DEDUP_CACHE_SIZE   = "Dedup_Cache_Size"

	MESSAGE_RECORDER_IMPL = "Message_Recorder_Impl"
	BACKEND_BASE_URL      = "Backend_Base_Url"
	BACKEND_TIMEOUT       = "Backend_Timeout"
	SEND_MIRROR_TIMEOUT   = "Send_Mirror_Timeout"

	AUTO_REPLY_ENABLED = "Auto_Reply_Enabled"
	AUTO_REPLY_TIMEOUT = "Auto_Reply_Timeout"

	STATUS_PUBLISHER_IMPL     = "Status_Publisher_Impl"
	MQTT_BROKER_ADDRESS       = "MQTT_Broker_Address"
	MQTT_CLIENT_ID            = "MQTT_Client_Id"
	MQTT_TOPIC_PREFIX         = "MQTT_Topic_Prefix"
	MQTT_STATUS_QOS           = "MQTT_Status_QoS"
	MQTT_DISCONNECT_QUIESCE   = "MQTT_Disconnect_Quiesce_Time"
	MQTT_CONNECT_TIMEOUT      = "MQTT_Connect_Timeout"
	MQTT_PUBLISH_WAIT_TIMEOUT = "MQTT_Publish_Wait_Timeout"
	MQTT_BROKER_CA_FILE       = "MQTT_Broker_CA_File"
	MQTT_BROKER_SKIP_VERIFY   = "MQTT_Broker_Skip_Verify"

	BROKERS                      = "Kafka_Brokers"
	DEFAULT_BROKER_ADDRESS       = "kafka:29092"
	MESSAGES_TOPIC               = "Kafka_Messages_Topic"
	MESSAGES_BATCH_SIZE          = "Kafka_Messages_Batch_Size"
	MESSAGES_BATCH_BYTES         = "Kafka_Messages_Batch_Bytes"
	KAFKA_SASL_MECHANISM         = "Kafka_SASL_Mechanism"
	KAFKA_SASL_USERNAME          = "Kafka_Username"
	KAFKA_SASL_PASSWORD          = "Kafka_Password"
	KAFKA_CA                     = "Kafka_CA"
	KAFKA_WRITE_TIMEOUT          = "Kafka_Write_Timeout"
)

type Config struct {
	UrlAppName                  string
	UrlPathPrefix               string
	UrlBasePath                 string
	HttpShutdownTimeout         time.Duration
	ServiceToServiceCredentials map[string]interface{}
	Profile                     bool

	AuthSessionsPath string

	GatewayUrl              string
	GatewayHandshakeTimeout time.Duration
	GatewayKeepalive        time.Duration
	GatewayWriteTimeout     time.Duration
	GatewayReadLimit        int64
	GatewayBrowserName      string
	GatewayTokenSecret      string
	GatewayTokenExpiry      time.Duration
	GatewayTokenIssuer      string
	GatewayTokenGenerator   string
	GatewayTokenFile        string
	GatewayCAFile           string
	GatewaySkipVerify       bool
	GatewayLogoutTimeout    time.Duration
	GatewayEventBufferDepth int

	ReconnectDelay  time.Duration
	ReconnectCap    int
	ReconnectWindow time.Duration

	IngestQueueDepth int
	DedupCacheSize   int

	MessageRecorderImpl string
	BackendBaseUrl      string
	BackendTimeout      time.Duration
	SendMirrorTimeout   time.Duration

	AutoReplyEnabled bool
	AutoReplyTimeout time.Duration

	StatusPublisherImpl       string
	MqttBrokerAddress         string
	MqttClientId              string
	MqttTopicPrefix           string
	MqttStatusQoS             byte
	MqttDisconnectQuiesceTime uint
	MqttConnectTimeout        time.Duration
	MqttPublishWaitTimeout    time.Duration
	MqttBrokerCAFile          string
	MqttBrokerSkipVerify      bool

	KafkaBrokers            []string
	KafkaMessagesTopic      string
	KafkaMessagesBatchSize  int
	KafkaMessagesBatchBytes int
	KafkaSASLMechanism      string
	KafkaUsername           string
	KafkaPassword           string
	KafkaCA                 string
	KafkaWriteTimeout       time.Duration
}

func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", URL_PATH_PREFIX, c.UrlPathPrefix)
	fmt.Fprintf(&b, "%s: %s\n", URL_APP_NAME, c.UrlAppName)
	fmt.Fprintf(&b, "%s: %s\n", URL_BASE_PATH, c.UrlBasePath)
	fmt.Fprintf(&b, "%s: %s\n", HTTP_SHUTDOWN_TIMEOUT, c.HttpShutdownTimeout)
	fmt.Fprintf(&b, "%s: %t\n", PROFILE, c.Profile)
	fmt.Fprintf(&b, "%s: %s\n", AUTH_SESSIONS_PATH, c.AuthSessionsPath)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_URL, c.GatewayUrl)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_HANDSHAKE_TIMEOUT, c.GatewayHandshakeTimeout)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_KEEPALIVE, c.GatewayKeepalive)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_WRITE_TIMEOUT, c.GatewayWriteTimeout)
	fmt.Fprintf(&b, "%s: %d\n", GATEWAY_READ_LIMIT, c.GatewayReadLimit)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_BROWSER_NAME, c.GatewayBrowserName)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_TOKEN_EXPIRY, c.GatewayTokenExpiry)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_TOKEN_ISSUER, c.GatewayTokenIssuer)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_TOKEN_GENERATOR, c.GatewayTokenGenerator)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_TOKEN_FILE, c.GatewayTokenFile)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_CA_FILE, c.GatewayCAFile)
	fmt.Fprintf(&b, "%s: %t\n", GATEWAY_SKIP_VERIFY, c.GatewaySkipVerify)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_LOGOUT_TIMEOUT, c.GatewayLogoutTimeout)
	fmt.Fprintf(&b, "%s: %d\n", GATEWAY_EVENT_BUFFER_DEPTH, c.GatewayEventBufferDepth)
	fmt.Fprintf(&b, "%s: %s\n", RECONNECT_DELAY, c.ReconnectDelay)
	fmt.Fprintf(&b, "%s: %d\n", RECONNECT_CAP, c.ReconnectCap)
	fmt.Fprintf(&b, "%s: %s\n", RECONNECT_WINDOW, c.ReconnectWindow)
	fmt.Fprintf(&b, "%s: %d\n", INGEST_QUEUE_DEPTH, c.IngestQueueDepth)
	fmt.Fprintf(&b, "%s: %d\n", DEDUP_CACHE_SIZE, c.DedupCacheSize)
	fmt.Fprintf(&b, "%s: %s\n", MESSAGE_RECORDER_IMPL, c.MessageRecorderImpl)
	fmt.Fprintf(&b, "%s: %s\n", BACKEND_BASE_URL, c.BackendBaseUrl)
	fmt.Fprintf(&b, "%s: %s\n", BACKEND_TIMEOUT, c.BackendTimeout)
	fmt.Fprintf(&b, "%s: %s\n", SEND_MIRROR_TIMEOUT, c.SendMirrorTimeout)
	fmt.Fprintf(&b, "%s: %t\n", AUTO_REPLY_ENABLED, c.AutoReplyEnabled)
	fmt.Fprintf(&b, "%s: %s\n", AUTO_REPLY_TIMEOUT, c.AutoReplyTimeout)
	fmt.Fprintf(&b, "%s: %s\n", STATUS_PUBLISHER_IMPL, c.StatusPublisherImpl)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_ADDRESS, c.MqttBrokerAddress)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_CLIENT_ID, c.MqttClientId)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_TOPIC_PREFIX, c.MqttTopicPrefix)
	fmt.Fprintf(&b, "%s: %d\n", MQTT_STATUS_QOS, c.MqttStatusQoS)
	fmt.Fprintf(&b, "%s: %d\n", MQTT_DISCONNECT_QUIESCE, c.MqttDisconnectQuiesceTime)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_CONNECT_TIMEOUT, c.MqttConnectTimeout)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_PUBLISH_WAIT_TIMEOUT, c.MqttPublishWaitTimeout)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_CA_FILE, c.MqttBrokerCAFile)
	fmt.Fprintf(&b, "%s: %t\n", MQTT_BROKER_SKIP_VERIFY, c.MqttBrokerSkipVerify)
	fmt.Fprintf(&b, "%s: %s\n", BROKERS, c.KafkaBrokers)
	fmt.Fprintf(&b, "%s: %s\n", MESSAGES_TOPIC, c.KafkaMessagesTopic)
	fmt.Fprintf(&b, "%s: %d\n", MESSAGES_BATCH_SIZE, c.KafkaMessagesBatchSize)
	fmt.Fprintf(&b, "%s: %d\n", MESSAGES_BATCH_BYTES, c.KafkaMessagesBatchBytes)
	fmt.Fprintf(&b, "%s: %s\n", KAFKA_SASL_MECHANISM, c.KafkaSASLMechanism)
	fmt.Fprintf(&b, "%s: %s\n", KAFKA_SASL_USERNAME, c.KafkaUsername)
	fmt.Fprintf(&b, "%s: %s\n", KAFKA_CA, c.KafkaCA)
	fmt.Fprintf(&b, "%s: %s\n", KAFKA_WRITE_TIMEOUT, c.KafkaWriteTimeout)
	return b.String()
}

func GetConfig() *Config {
	options := viper.New()

	options.SetDefault(URL_PATH_PREFIX, "api")
	options.SetDefault(URL_APP_NAME, "chat-connector")
	options.SetDefault(HTTP_SHUTDOWN_TIMEOUT, 2)
	options.SetDefault(SERVICE_TO_SERVICE_CREDENTIALS, "")
	options.SetDefault(PROFILE, false)

	options.SetDefault(AUTH_SESSIONS_PATH, "auth_sessions")

	options.SetDefault(GATEWAY_URL, "ws://localhost:3100")
	options.SetDefault(GATEWAY_HANDSHAKE_TIMEOUT, 10)
	options.SetDefault(GATEWAY_KEEPALIVE, 25)
	options.SetDefault(GATEWAY_WRITE_TIMEOUT, 10)
	options.SetDefault(GATEWAY_READ_LIMIT, 16777216)
	options.SetDefault(GATEWAY_BROWSER_NAME, "Chrome")
	options.SetDefault(GATEWAY_TOKEN_SECRET, "")
	options.SetDefault(GATEWAY_TOKEN_EXPIRY, 60)
	options.SetDefault(GATEWAY_TOKEN_ISSUER, "chat-connector")
	options.SetDefault(GATEWAY_TOKEN_GENERATOR, "jwt_hmac_generator")
	options.SetDefault(GATEWAY_TOKEN_FILE, "")
	options.SetDefault(GATEWAY_CA_FILE, "")
	options.SetDefault(GATEWAY_SKIP_VERIFY, false)
	options.SetDefault(GATEWAY_LOGOUT_TIMEOUT, 5)
	options.SetDefault(GATEWAY_EVENT_BUFFER_DEPTH, 32)

	options.SetDefault(RECONNECT_DELAY, 3)
	options.SetDefault(RECONNECT_CAP, 10)
	options.SetDefault(RECONNECT_WINDOW, 120)

	options.SetDefault(INGEST_QUEUE_DEPTH, 64)
	options.SetDefault(DEDUP_CACHE_SIZE, 4096)

	options.SetDefault(MESSAGE_RECORDER_IMPL, "http")
	options.SetDefault(BACKEND_BASE_URL, "http://localhost:3001/api")
	options.SetDefault(BACKEND_TIMEOUT, 10)
	options.SetDefault(SEND_MIRROR_TIMEOUT, 10)

	options.SetDefault(AUTO_REPLY_ENABLED, false)
	options.SetDefault(AUTO_REPLY_TIMEOUT, 30)

	options.SetDefault(STATUS_PUBLISHER_IMPL, "none")
	options.SetDefault(MQTT_BROKER_ADDRESS, "tcp://localhost:1883")
	options.SetDefault(MQTT_CLIENT_ID, "chat-connector")
	options.SetDefault(MQTT_TOPIC_PREFIX, "chat-connector")
	options.SetDefault(MQTT_STATUS_QOS, 1)
	options.SetDefault(MQTT_DISCONNECT_QUIESCE, 1000)
	options.SetDefault(MQTT_CONNECT_TIMEOUT, 5)
	options.SetDefault(MQTT_PUBLISH_WAIT_TIMEOUT, 2)
	options.SetDefault(MQTT_BROKER_CA_FILE, "")
	options.SetDefault(MQTT_BROKER_SKIP_VERIFY, false)

	options.SetDefault(BROKERS, []string{DEFAULT_BROKER_ADDRESS})
	options.SetDefault(MESSAGES_TOPIC, "platform.chat-connector.messages")
	options.SetDefault(MESSAGES_BATCH_SIZE, 100)
	options.SetDefault(MESSAGES_BATCH_BYTES, 1048576)
	options.SetDefault(KAFKA_SASL_MECHANISM, "")
	options.SetDefault(KAFKA_SASL_USERNAME, "")
	options.SetDefault(KAFKA_SASL_PASSWORD, "")
	options.SetDefault(KAFKA_CA, "")
	options.SetDefault(KAFKA_WRITE_TIMEOUT, 10)

	options.SetEnvPrefix(ENV_PREFIX)
	options.AutomaticEnv()

	return &Config{
		UrlPathPrefix:               options.GetString(URL_PATH_PREFIX),
		UrlAppName:                  options.GetString(URL_APP_NAME),
		UrlBasePath:                 buildUrlBasePath(options.GetString(URL_PATH_PREFIX)),
		HttpShutdownTimeout:         options.GetDuration(HTTP_SHUTDOWN_TIMEOUT) * time.Second,
		ServiceToServiceCredentials: options.GetStringMap(SERVICE_TO_SERVICE_CREDENTIALS),
		Profile:                     options.GetBool(PROFILE),

		AuthSessionsPath: options.GetString(AUTH_SESSIONS_PATH),

		GatewayUrl:              options.GetString(GATEWAY_URL),
		GatewayHandshakeTimeout: options.GetDuration(GATEWAY_HANDSHAKE_TIMEOUT) * time.Second,
		GatewayKeepalive:        options.GetDuration(GATEWAY_KEEPALIVE) * time.Second,
		GatewayWriteTimeout:     options.GetDuration(GATEWAY_WRITE_TIMEOUT) * time.Second,
		GatewayReadLimit:        options.GetInt64(GATEWAY_READ_LIMIT),
		GatewayBrowserName:      options.GetString(GATEWAY_BROWSER_NAME),
		GatewayTokenSecret:      options.GetString(GATEWAY_TOKEN_SECRET),
		GatewayTokenExpiry:      options.GetDuration(GATEWAY_TOKEN_EXPIRY) * time.Minute,
		GatewayTokenIssuer:      options.GetString(GATEWAY_TOKEN_ISSUER),
		GatewayTokenGenerator:   options.GetString(GATEWAY_TOKEN_GENERATOR),
		GatewayTokenFile:        options.GetString(GATEWAY_TOKEN_FILE),
		GatewayCAFile:           options.GetString(GATEWAY_CA_FILE),
		GatewaySkipVerify:       options.GetBool(GATEWAY_SKIP_VERIFY),
		GatewayLogoutTimeout:    options.GetDuration(GATEWAY_LOGOUT_TIMEOUT) * time.Second,
		GatewayEventBufferDepth: options.GetInt(GATEWAY_EVENT_BUFFER_DEPTH),

		ReconnectDelay:  options.GetDuration(RECONNECT_DELAY) * time.Second,
		ReconnectCap:    options.GetInt(RECONNECT_CAP),
		ReconnectWindow: options.GetDuration(RECONNECT_WINDOW) * time.Second,

		IngestQueueDepth: options.GetInt(INGEST_QUEUE_DEPTH),
		DedupCacheSize:   options.GetInt(DEDUP_CACHE_SIZE),

		MessageRecorderImpl: options.GetString(MESSAGE_RECORDER_IMPL),
		BackendBaseUrl:      options.GetString(BACKEND_BASE_URL),
		BackendTimeout:      options.GetDuration(BACKEND_TIMEOUT) * time.Second,
		SendMirrorTimeout:   options.GetDuration(SEND_MIRROR_TIMEOUT) * time.Second,

		AutoReplyEnabled: options.GetBool(AUTO_REPLY_ENABLED),
		AutoReplyTimeout: options.GetDuration(AUTO_REPLY_TIMEOUT) * time.Second,

		StatusPublisherImpl:       options.GetString(STATUS_PUBLISHER_IMPL),
		MqttBrokerAddress:         options.GetString(MQTT_BROKER_ADDRESS),
		MqttClientId:              options.GetString(MQTT_CLIENT_ID),
		MqttTopicPrefix:           options.GetString(MQTT_TOPIC_PREFIX),
		MqttStatusQoS:             byte(options.GetUint(MQTT_STATUS_QOS)),
		MqttDisconnectQuiesceTime: options.GetUint(MQTT_DISCONNECT_QUIESCE),
		MqttConnectTimeout:        options.GetDuration(MQTT_CONNECT_TIMEOUT) * time.Second,
		MqttPublishWaitTimeout:    options.GetDuration(MQTT_PUBLISH_WAIT_TIMEOUT) * time.Second,
		MqttBrokerCAFile:          options.GetString(MQTT_BROKER_CA_FILE),
		MqttBrokerSkipVerify:      options.GetBool(MQTT_BROKER_SKIP_VERIFY),

		KafkaBrokers:            options.GetStringSlice(BROKERS),
		KafkaMessagesTopic:      options.GetString(MESSAGES_TOPIC),
		KafkaMessagesBatchSize:  options.GetInt(MESSAGES_BATCH_SIZE),
		KafkaMessagesBatchBytes: options.GetInt(MESSAGES_BATCH_BYTES),
		KafkaSASLMechanism:      options.GetString(KAFKA_SASL_MECHANISM),
		KafkaUsername:           options.GetString(KAFKA_SASL_USERNAME),
		KafkaPassword:           options.GetString(KAFKA_SASL_PASSWORD),
		KafkaCA:                 options.GetString(KAFKA_CA),
		KafkaWriteTimeout:       options.GetDuration(KAFKA_WRITE_TIMEOUT) * time.Second,
	}
}

func buildUrlBasePath(pathPrefix string) string {
	return fmt.Sprintf("/%s", pathPrefix)
}
