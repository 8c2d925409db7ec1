package pgmq

import "context"

// Publisher adapts the pgmq client to the dispatch Publisher interface so
// local/dev deployments can run without Pub/Sub. The topic argument is the
// queue name; pgmq assigns no message IDs we care about, so an empty id is
// returned.
type Publisher struct {
	client *Client
}

// NewQueuePublisher wraps a pgmq client as a Publisher.
func NewQueuePublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	if err := p.client.Send(ctx, topic, payload); err != nil {
		return "", err
	}
	return "", nil
}
