package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound messages at 1 MiB, in line with common
// broker defaults.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for broker acknowledgement.
// Retained messages replace the broker's stored value for the topic, so new
// subscribers see the latest state; use them for roster and status topics
// only, never for events.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
