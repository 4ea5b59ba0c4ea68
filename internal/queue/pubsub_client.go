package queue

import (
	"context"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSubClient publishes queue messages to a Google Pub/Sub topic.
type PubSubClient struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubClient(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*PubSubClient, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID and PUBSUB_TOPIC are required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return NewPubSubClientWithClient(client, topicID), nil
}

// NewPubSubClientWithClient wraps an existing client, e.g. one dialed to the
// emulator.
func NewPubSubClientWithClient(client *pubsub.Client, topicID string) *PubSubClient {
	return &PubSubClient{client: client, topic: client.Topic(topicID)}
}

// Send publishes msg and waits for the server acknowledgement.
func (p *PubSubClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode pubsub message: %w", err)
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"kind":    string(msg.Kind),
			"attempt": strconv.Itoa(msg.Attempt),
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("pubsub publish: %w", err)
	}
	return nil
}

// Close flushes pending publishes and releases the client.
func (p *PubSubClient) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

var _ Client = (*PubSubClient)(nil)
