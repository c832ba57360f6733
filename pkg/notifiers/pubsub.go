package notifiers

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type pubsubNotifier struct {
	id     string
	client *pubsub.Client
	topic  *pubsub.Topic
	log    Logger
}

// newPubSubNotifier connects to Google Pub/Sub. PUBSUB_EMULATOR_HOST is
// honored by the client library.
func newPubSubNotifier(ctx context.Context, cfg NotifierConfig, opts BuildOptions) (Notifier, error) {
	if cfg.PubSub == nil {
		return nil, fmt.Errorf("notifier %q missing pubsub configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var clientOpts []option.ClientOption
	if cfg.PubSub.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.PubSub.CredentialsFile))
	}
	if cfg.PubSub.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.PubSub.Endpoint))
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &pubsubNotifier{
		id:     cfg.ID,
		client: client,
		topic:  client.Topic(cfg.PubSub.Topic),
		log:    ensureLogger(opts.Log),
	}, nil
}

func (p *pubsubNotifier) ID() string   { return p.id }
func (p *pubsubNotifier) Type() string { return TypePubSub }

func (p *pubsubNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"source_id":   n.SourceID,
			"entry_count": entryCount(n),
		},
	})
	id, err := res.Get(ctx)
	if err != nil {
		p.log.ErrorObj("pubsub notifier publish failed", "notifier_pubsub_error", map[string]any{
			"notifier_id": p.id,
			"error":       err.Error(),
		})
		return fmt.Errorf("publish to pubsub: %w", err)
	}
	p.log.DebugObj("pubsub notifier delivered", "notifier_pubsub_delivery", map[string]any{
		"notifier_id": p.id,
		"message_id":  id,
	})
	return nil
}

// Close flushes pending publishes and closes the client.
func (p *pubsubNotifier) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
