package mqtt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
)

const (
	defaultTopicPrefix string = "chat-connector"
	statusTopic        string = "%s/status"
	statusWildcard     string = "+/status"
)

func NewTopicBuilder(prefix string) *TopicBuilder {

	topicBuilder := &TopicBuilder{prefix: defaultTopicPrefix}
	if prefix != "" {
		topicBuilder.prefix = prefix
	}

	return topicBuilder
}

type TopicBuilder struct {
	prefix string
}

func (tb *TopicBuilder) BuildSessionStatusTopic(tenantID domain.TenantID) string {
	topicStringFmt := tb.prefix + "/" + statusTopic
	return fmt.Sprintf(topicStringFmt, tenantID)
}

func (tb *TopicBuilder) BuildWildcardStatusTopic() string {
	return tb.prefix + "/" + statusWildcard
}

// VerifySessionStatusTopic extracts the tenant from a status topic
func (tb *TopicBuilder) VerifySessionStatusTopic(topic string) (domain.TenantID, error) {

	items := strings.Split(topic, "/")
	if len(items) != 3 {
		return "", errors.New("MQTT topic requires 3 sections: " + tb.prefix + ", <tenantID>, status " + topic)
	}

	if items[0] != tb.prefix || items[2] != "status" {
		return "", errors.New("MQTT topic needs to be " + tb.prefix + "/<tenantID>/status")
	}

	tenantID := domain.TenantID(items[1])
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return "", err
	}

	return tenantID, nil
}
