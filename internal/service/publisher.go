// Package service holds the application services that sit between the HTTP
// handlers and the repositories: ranking assembly and event publishing.
package service

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/marketplace-ranking/internal/ledger"
    "github.com/iliyamo/marketplace-ranking/internal/model"
    "github.com/iliyamo/marketplace-ranking/internal/queue"
)

// Publisher sends domain events to RabbitMQ.  Each publish dials its own
// connection; event volume is low and this keeps no broker state in the
// server.  Errors are logged and returned so callers can ignore them
// without interrupting the request.
type Publisher struct {
    url     string
    log     *zap.SugaredLogger
    timeout time.Duration
    send    func(ctx context.Context, queueName string, body []byte) error
}

var _ ledger.Notifier = (*Publisher)(nil)

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *zap.SugaredLogger) *Publisher {
    if log == nil {
        log = zap.NewNop().Sugar()
    }
    p := &Publisher{url: url, log: log, timeout: 5 * time.Second}
    p.send = p.amqpSend
    return p
}

// PublishReferralAttributed publishes ev to the referral.attributed queue.
func (p *Publisher) PublishReferralAttributed(ctx context.Context, ev queue.ReferralAttributedEvent) error {
    return p.publish(ctx, queue.ReferralAttributedQueue, ev)
}

// CreditChanged implements ledger.Notifier.  It publishes in the background
// with a context detached from the request so a finished response does not
// cancel the send.
func (p *Publisher) CreditChanged(ctx context.Context, entry model.CreditAuditEntry) {
    ev := queue.CreditChangedEvent{
        AuditID:      entry.ID,
        ProfileID:    entry.ProviderID,
        CityID:       entry.CityID,
        Action:       entry.Action,
        SecondsDelta: entry.SecondsDelta,
        ActorID:      entry.ActorID,
        OccurredAt:   entry.CreatedAt,
    }
    bg := context.WithoutCancel(ctx)
    go func() {
        _ = p.publish(bg, queue.CreditChangedQueue, ev)
    }()
}

func (p *Publisher) publish(ctx context.Context, queueName string, v any) error {
    body, err := json.Marshal(v)
    if err != nil {
        p.log.Errorw("rabbitmq: marshal event failed", "queue", queueName, "err", err)
        return err
    }
    ctx, cancel := context.WithTimeout(ctx, p.timeout)
    defer cancel()
    if err := p.send(ctx, queueName, body); err != nil {
        p.log.Warnw("rabbitmq: publish failed", "queue", queueName, "err", err)
        return err
    }
    return nil
}

func (p *Publisher) amqpSend(ctx context.Context, queueName string, body []byte) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    return ch.PublishWithContext(ctx,
        "",        // default exchange
        queueName, // routing key = queue name
        false,     // mandatory
        false,     // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    time.Now().UTC(),
            Body:         body,
        },
    )
}
