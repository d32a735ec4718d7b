// Package webhook publishes crossing events to per-direction webhooks.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/itohio/goxing/pkg/cloud"
	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/crossing"
	"github.com/itohio/goxing/pkg/debuglog"
)

var _ Publisher = (*HTTPPublisher)(nil)

// ID returns the webhook identifier for a crossing direction.
func ID(cfg *config.WebhookConfig, d crossing.Direction) string {
	if d == crossing.Right {
		return cfg.RightID
	}
	return cfg.LeftID
}

// Payload is the JSON body of a webhook call.
type Payload struct {
	Event     string    `json:"event"`
	Direction string    `json:"direction"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// NewPayload builds the payload for ev with timestamps in loc.
func NewPayload(cfg *config.WebhookConfig, ev crossing.Event, loc *time.Location) Payload {
	return Payload{
		Event:     ID(cfg, ev.Direction),
		Direction: ev.Direction.String(),
		Start:     ev.Start.In(loc),
		End:       ev.End.In(loc),
	}
}

// Publisher delivers a payload to the webhook named id.
type Publisher interface {
	Publish(ctx context.Context, id string, payload []byte) error
}

// HTTPPublisher posts payloads to {BaseURL}/{id}.
type HTTPPublisher struct {
	baseURL string
	client  *http.Client
	signer  *cloud.Signer
}

// NewHTTPPublisher creates a publisher. signer may be nil.
func NewHTTPPublisher(cfg *config.WebhookConfig, signer *cloud.Signer) *HTTPPublisher {
	return &HTTPPublisher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		signer:  signer,
	}
}

// Publish posts payload to the webhook id.
func (p *HTTPPublisher) Publish(ctx context.Context, id string, payload []byte) error {
	return cloud.Post(ctx, p.client, p.baseURL+"/"+id, payload, p.signer)
}

// Dispatcher queues crossing events and publishes them from a single goroutine.
type Dispatcher struct {
	cfg       *config.WebhookConfig
	loc       *time.Location
	publisher Publisher
	log       *debuglog.Logger
	queue     chan crossing.Event

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewDispatcher creates a dispatcher with a queue of cfg.Webhook.QueueSize events.
func NewDispatcher(cfg *config.Config, publisher Publisher, log *debuglog.Logger) *Dispatcher {
	size := cfg.Webhook.QueueSize
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		cfg:       &cfg.Webhook,
		loc:       cfg.Location(),
		publisher: publisher,
		log:       log,
		queue:     make(chan crossing.Event, size),
	}
}

// Enqueue schedules ev for publishing. It never blocks; when the queue is
// full the event is dropped and false is returned.
func (d *Dispatcher) Enqueue(ev crossing.Event) bool {
	select {
	case d.queue <- ev:
		return true
	default:
		d.dropped.Add(1)
		d.log.System("webhook queue full, dropping %s crossing", ev.Direction)
		return false
	}
}

// Run publishes queued events until ctx is cancelled. Events still queued at
// that point are published within one webhook timeout before Run returns.
// A publish in flight at cancellation is allowed to finish.
func (d *Dispatcher) Run(ctx context.Context) error {
	publishCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case ev := <-d.queue:
			if ctx.Err() != nil {
				d.drain(ev)
				return nil
			}
			d.handle(publishCtx, ev)
		}
	}
}

// drain publishes pending and then the events left in the queue.
func (d *Dispatcher) drain(pending ...crossing.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	next := func() (crossing.Event, bool) {
		if len(pending) > 0 {
			ev := pending[0]
			pending = pending[1:]
			return ev, true
		}
		select {
		case ev := <-d.queue:
			return ev, true
		default:
			return crossing.Event{}, false
		}
	}

	for ev, ok := next(); ok; ev, ok = next() {
		if ctx.Err() != nil {
			d.failed.Add(1)
			continue
		}
		d.handle(ctx, ev)
	}

	published, dropped, failed := d.Stats()
	d.log.System("webhook dispatcher stopped: published=%d dropped=%d failed=%d", published, dropped, failed)
}

func (d *Dispatcher) handle(ctx context.Context, ev crossing.Event) {
	if err := d.publish(ctx, ev); err != nil {
		d.failed.Add(1)
		d.log.System("webhook failed: %v", err)
		return
	}
	d.published.Add(1)
}

func (d *Dispatcher) publish(ctx context.Context, ev crossing.Event) error {
	payload := NewPayload(d.cfg, ev, d.loc)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := d.publisher.Publish(ctx, payload.Event, body); err != nil {
		return fmt.Errorf("%s: %w", payload.Event, err)
	}
	d.log.State("webhook %s published", payload.Event)
	return nil
}

// Stats returns the number of published, dropped and failed events.
func (d *Dispatcher) Stats() (published, dropped, failed int64) {
	return d.published.Load(), d.dropped.Load(), d.failed.Load()
}
