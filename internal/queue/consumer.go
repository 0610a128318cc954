package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/marketplace-ranking/internal/metrics"
)

// ErrRetryable marks handler failures that may succeed on a later delivery.
var ErrRetryable = errors.New("retryable")

// attemptHeader counts how many times a message has been republished.
const attemptHeader = "x-attempt"

// ReferralHandler applies one attributed referral.  An error wrapping
// ErrRetryable sends the message back to the queue until the attempt cap is
// reached; any other error drops it.
type ReferralHandler interface {
    Apply(ctx context.Context, ev ReferralAttributedEvent) error
}

type publishFunc func(ctx context.Context, msg amqp.Publishing) error

// Consumer listens on the referral.attributed queue.  Start runs a
// reconnect loop with exponential backoff until ctx is cancelled.
type Consumer struct {
    url         string
    handler     ReferralHandler
    log         *zap.SugaredLogger
    timeout     time.Duration
    maxAttempts int
    retryDelay  time.Duration
}

// NewConsumer returns a Consumer for the broker at url.
func NewConsumer(url string, h ReferralHandler, log *zap.SugaredLogger) *Consumer {
    if log == nil {
        log = zap.NewNop().Sugar()
    }
    return &Consumer{
        url:         url,
        handler:     h,
        log:         log,
        timeout:     10 * time.Second,
        maxAttempts: 5,
        retryDelay:  2 * time.Second,
    }
}

// Start blocks until ctx is cancelled, then returns ctx.Err().
func (c *Consumer) Start(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warnw("referral consumer: dial failed", "err", err, "retry_in", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warnw("referral consumer: consume loop ended; reconnecting", "err", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(20, 0, false); err != nil {
        c.log.Warnw("referral consumer: set QoS failed", "err", err)
    }
    if _, err := ch.QueueDeclare(ReferralAttributedQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(ReferralAttributedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    c.log.Infow("referral consumer: listening", "queue", ReferralAttributedQueue)

    republish := func(ctx context.Context, msg amqp.Publishing) error {
        return ch.PublishWithContext(ctx, "", ReferralAttributedQueue, false, false, msg)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(ctx, d.Body); err != nil {
                c.settleFailure(ctx, d, err, republish)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// settleFailure republishes a retryable failure with a bumped attempt
// header and acks the original, or rejects the message for good.  If the
// republish itself fails the message is requeued as is.
func (c *Consumer) settleFailure(ctx context.Context, d amqp.Delivery, herr error, publish publishFunc) {
    attempt := attempts(d.Headers)
    if !errors.Is(herr, ErrRetryable) {
        metrics.ReferralRewardsDroppedTotal.WithLabelValues("rejected").Inc()
        c.log.Errorw("referral consumer: dropping message", "err", herr, "attempt", attempt)
        _ = d.Nack(false, false)
        return
    }
    if attempt+1 >= c.maxAttempts {
        metrics.ReferralRewardsDroppedTotal.WithLabelValues("retries_exhausted").Inc()
        c.log.Errorw("referral consumer: giving up after retries", "err", herr, "attempt", attempt)
        _ = d.Nack(false, false)
        return
    }
    if !sleep(ctx, c.retryDelay*time.Duration(attempt+1)) {
        _ = d.Nack(false, true)
        return
    }
    msg := amqp.Publishing{
        ContentType:  d.ContentType,
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Headers:      amqp.Table{attemptHeader: int32(attempt + 1)},
        Body:         d.Body,
    }
    if err := publish(ctx, msg); err != nil {
        c.log.Warnw("referral consumer: republish failed; requeueing", "err", err)
        _ = d.Nack(false, true)
        return
    }
    metrics.ReferralRewardRetriesTotal.Inc()
    c.log.Warnw("referral consumer: retrying message", "err", herr, "attempt", attempt+1)
    _ = d.Ack(false)
}

func attempts(h amqp.Table) int {
    switch v := h[attemptHeader].(type) {
    case int32:
        return int(v)
    case int64:
        return int(v)
    case int:
        return v
    }
    return 0
}

// Handle decodes one message body and passes it to the handler.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
    var ev ReferralAttributedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.ReferrerProfileID == "" || ev.Code == "" {
        return errors.New("event is missing referrer or code")
    }
    hctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    return c.handler.Apply(hctx, ev)
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
