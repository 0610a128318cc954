package service

import (
    "context"
    "encoding/json"
    "errors"
    "testing"
    "time"

    "github.com/iliyamo/marketplace-ranking/internal/model"
    "github.com/iliyamo/marketplace-ranking/internal/queue"
)

type sent struct {
    queue string
    body  []byte
}

func capturingPublisher(err error) (*Publisher, chan sent) {
    ch := make(chan sent, 4)
    p := NewPublisher("amqp://unused", nil)
    p.send = func(_ context.Context, q string, body []byte) error {
        ch <- sent{q, body}
        return err
    }
    return p, ch
}

func TestPublishReferralAttributed(t *testing.T) {
    p, ch := capturingPublisher(nil)
    ev := queue.ReferralAttributedEvent{ReferralID: 3, Code: "rfe_x", ReferrerProfileID: "p1", ReferredProfileID: "p2"}
    if err := p.PublishReferralAttributed(context.Background(), ev); err != nil {
        t.Fatalf("publish: %v", err)
    }
    got := <-ch
    if got.queue != queue.ReferralAttributedQueue {
        t.Fatalf("queue = %s", got.queue)
    }
    var decoded queue.ReferralAttributedEvent
    if err := json.Unmarshal(got.body, &decoded); err != nil || decoded.ReferredProfileID != "p2" {
        t.Fatalf("unexpected body %s (%v)", got.body, err)
    }
}

func TestPublishReturnsSendError(t *testing.T) {
    boom := errors.New("broker down")
    p, _ := capturingPublisher(boom)
    if err := p.PublishReferralAttributed(context.Background(), queue.ReferralAttributedEvent{}); !errors.Is(err, boom) {
        t.Fatalf("expected send error, got %v", err)
    }
}

func TestCreditChangedPublishesAfterRequestEnds(t *testing.T) {
    p, ch := capturingPublisher(nil)
    ctx, cancel := context.WithCancel(context.Background())
    p.CreditChanged(ctx, model.CreditAuditEntry{ID: "a1", ProviderID: "p1", Action: model.CreditActionRevoke, SecondsDelta: -40})
    cancel()

    select {
    case got := <-ch:
        var ev queue.CreditChangedEvent
        if err := json.Unmarshal(got.body, &ev); err != nil {
            t.Fatalf("decode: %v", err)
        }
        if got.queue != queue.CreditChangedQueue || ev.SecondsDelta != -40 || ev.Action != "revoke" {
            t.Fatalf("unexpected event %s on %s", got.body, got.queue)
        }
    case <-time.After(2 * time.Second):
        t.Fatal("credit change was not published")
    }
}
