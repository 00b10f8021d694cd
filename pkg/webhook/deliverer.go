package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/events"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/urlvalidation"
)

const maxResponseBody = 4 << 10

// Pool runs tasks asynchronously. *ants.Pool satisfies it.
type Pool interface {
	Submit(task func()) error
}

// Recorder persists delivery outcomes. *Repository satisfies it.
type Recorder interface {
	RecordDelivery(ctx context.Context, da *DeliveryAttempt) error
	CreateDeadLetter(ctx context.Context, dl *DeadLetter) error
}

// DelivererConfig holds delivery-related settings.
type DelivererConfig struct {
	MaxAttempts    int
	Timeout        time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Breaker        BreakerConfig
}

func (c DelivererConfig) withDefaults() DelivererConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = time.Second
	}
	c.BackoffMax = max(c.BackoffMax, c.BackoffInitial)
	return c
}

// Deliverer POSTs signed envelopes to webhook endpoints.
type Deliverer struct {
	cfg          DelivererConfig
	client       *http.Client
	recorder     Recorder
	pool         Pool
	breakers     *breakerSet
	validateOpts []urlvalidation.Option
}

// NewDeliverer creates a webhook deliverer. recorder and pool may be nil;
// without a pool retries are scheduled with time.AfterFunc.
func NewDeliverer(recorder Recorder, cfg DelivererConfig, pool Pool, validateOpts ...urlvalidation.Option) *Deliverer {
	cfg = cfg.withDefaults()
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10
	return &Deliverer{
		cfg:          cfg,
		client:       &http.Client{Timeout: cfg.Timeout, Transport: transport},
		recorder:     recorder,
		pool:         pool,
		breakers:     newBreakerSet(cfg.Breaker),
		validateOpts: validateOpts,
	}
}

// CircuitState reports the breaker state for an endpoint.
func (d *Deliverer) CircuitState(webhookID string) string {
	return d.breakers.state(webhookID)
}

// job is one envelope on its way to one endpoint.
type job struct {
	wh      Endpoint
	env     events.Envelope
	body    []byte
	attempt int
}

func (j job) logAttrs(extra ...slog.Attr) []any {
	args := []any{
		slog.String("webhook_id", j.wh.ID),
		slog.String("event_id", j.env.ID),
		slog.String("event_type", string(j.env.Type)),
		slog.Int("attempt", j.attempt),
	}
	for _, a := range extra {
		args = append(args, a)
	}
	return args
}

// Deliver sends env to wh. Failed attempts are retried with exponential
// backoff; once MaxAttempts is reached the envelope is dead-lettered.
// Endpoints whose URL fails SSRF validation are skipped.
func (d *Deliverer) Deliver(ctx context.Context, wh Endpoint, env events.Envelope) {
	if err := urlvalidation.ValidateWebhookURL(wh.URL, d.validateOpts...); err != nil {
		slog.ErrorContext(ctx, "webhook url rejected",
			slog.String("webhook_id", wh.ID),
			slog.String("url", wh.URL),
			slog.String("error", err.Error()))
		return
	}
	body, err := json.Marshal(env)
	if err != nil {
		slog.ErrorContext(ctx, "encode webhook envelope", slog.String("event_id", env.ID), slog.String("error", err.Error()))
		return
	}
	d.run(ctx, job{wh: wh, env: env, body: body, attempt: 1})
}

func (d *Deliverer) run(ctx context.Context, j job) {
	start := time.Now()
	res, err := d.breakers.get(j.wh.ID).Execute(func() (deliveryResult, error) {
		return d.post(ctx, j)
	})

	da := &DeliveryAttempt{
		WebhookID:     j.wh.ID,
		EventID:       j.env.ID,
		EventType:     string(j.env.Type),
		RequestBody:   string(j.body),
		ResponseCode:  res.code,
		ResponseBody:  res.body,
		AttemptNumber: j.attempt,
		Status:        StatusSuccess,
		DurationMs:    time.Since(start).Milliseconds(),
	}
	if err != nil {
		da.Status, da.Error = StatusFailed, err.Error()
	}
	if d.recorder != nil {
		if rerr := d.recorder.RecordDelivery(ctx, da); rerr != nil {
			slog.ErrorContext(ctx, "record delivery", j.logAttrs(slog.String("error", rerr.Error()))...)
		}
	}

	switch {
	case err == nil:
		slog.DebugContext(ctx, "webhook delivered", j.logAttrs(slog.Int("status", res.code))...)
	case j.attempt >= d.cfg.MaxAttempts || ctx.Err() != nil:
		d.bury(ctx, j, da.Error)
	default:
		d.retry(ctx, j)
	}
}

func (d *Deliverer) post(ctx context.Context, j job) (deliveryResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.wh.URL, bytes.NewReader(j.body))
	if err != nil {
		return deliveryResult{}, fmt.Errorf("create request: %w", err)
	}
	SignRequest(req, j.wh.Secret, string(j.env.Type), j.env.ID, j.body)

	resp, err := d.client.Do(req)
	if err != nil {
		return deliveryResult{}, err
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	_, _ = io.Copy(io.Discard, resp.Body)

	res := deliveryResult{code: resp.StatusCode, body: string(snippet)}
	if resp.StatusCode/100 != 2 {
		return res, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return res, nil
}

// bury stores the envelope as a replayable dead letter.
func (d *Deliverer) bury(ctx context.Context, j job, lastErr string) {
	slog.WarnContext(ctx, "webhook delivery exhausted", j.logAttrs(slog.String("error", lastErr))...)
	if d.recorder == nil {
		return
	}
	dl := &DeadLetter{
		WebhookID:  j.wh.ID,
		EventID:    j.env.ID,
		EventType:  string(j.env.Type),
		Payload:    string(j.body),
		LastError:  lastErr,
		Attempts:   j.attempt,
		Replayable: true,
	}
	if err := d.recorder.CreateDeadLetter(context.WithoutCancel(ctx), dl); err != nil {
		slog.ErrorContext(ctx, "create dead letter", j.logAttrs(slog.String("error", err.Error()))...)
	}
}

func (d *Deliverer) retry(ctx context.Context, j job) {
	wait := d.backoff(j.attempt)
	next := j
	next.attempt++

	if d.pool == nil {
		time.AfterFunc(wait, func() { d.run(ctx, next) })
		return
	}
	err := d.pool.Submit(func() {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			d.run(ctx, next)
		}
	})
	if err != nil {
		slog.WarnContext(ctx, "retry pool full, dropping retry", j.logAttrs(slog.String("error", err.Error()))...)
	}
}

// backoff doubles from BackoffInitial per attempt, capped at BackoffMax.
func (d *Deliverer) backoff(attempt int) time.Duration {
	b := d.cfg.BackoffInitial
	for range attempt - 1 {
		b *= 2
		if b >= d.cfg.BackoffMax {
			return d.cfg.BackoffMax
		}
	}
	return b
}
