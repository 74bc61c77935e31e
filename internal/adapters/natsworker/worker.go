// Package natsworker serves the chat operations as NATS request/reply
// subjects. Replies use the same JSON shapes as the HTTP adapter.
package natsworker

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/PabloGalante/supportchat/internal/adapters/wire"
	"github.com/PabloGalante/supportchat/internal/app/conversation"
	"github.com/PabloGalante/supportchat/internal/metrics"
	"github.com/PabloGalante/supportchat/internal/observability"
)

const (
	DefaultSubjectPrefix = "supportchat"
	QueueGroup           = "supportchat"

	DefaultMaxInFlight   = 64

	requestIDHeader = "X-Request-Id"
	defaultTimeout  = 60 * time.Second
)

// Options tunes a Worker. Zero values fall back to the defaults.
type Options struct {
	Prefix string
	// Timeout bounds one request. Keep it above the model timeout so the
	// gateway, not the worker, reports TimedOut.
	Timeout     time.Duration
	MaxInFlight int
}

// ChatService is what the worker needs from the orchestrator.
type ChatService interface {
	SendMessage(ctx context.Context, in conversation.SendMessageInput) (*conversation.SendMessageOutput, error)
	GetHistory(ctx context.Context, in conversation.GetHistoryInput) (*conversation.GetHistoryOutput, error)
}

type Worker struct {
	nc      *nats.Conn
	svc     ChatService
	prefix  string
	timeout time.Duration
	subs    []*nats.Subscription

	// sem bounds concurrent handlers; inflight tracks them for Stop.
	sem      chan struct{}
	inflight sync.WaitGroup
}

// Connect dials url and returns a worker that has not subscribed yet.
func Connect(url string, svc ChatService, opts Options) (*Worker, error) {
	nc, err := nats.Connect(url,
		nats.Name("supportchat-worker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				observability.Logger().Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			observability.Logger().Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return New(nc, svc, opts), nil
}

func New(nc *nats.Conn, svc ChatService, opts Options) *Worker {
	if opts.Prefix == "" {
		opts.Prefix = DefaultSubjectPrefix
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	return &Worker{
		nc:      nc,
		svc:     svc,
		prefix:  opts.Prefix,
		timeout: opts.Timeout,
		sem:     make(chan struct{}, opts.MaxInFlight),
	}
}

func (w *Worker) SendSubject() string    { return w.prefix + ".send" }
func (w *Worker) HistorySubject() string { return w.prefix + ".history" }

// Start queue-subscribes both subjects. Each request runs in its own
// goroutine, at most MaxInFlight at a time. Handlers inherit ctx values but
// not its cancellation; in-flight requests are finished by Stop.
func (w *Worker) Start(ctx context.Context) error {
	base := context.WithoutCancel(ctx)

	routes := []struct {
		subject string
		handle  func(context.Context, []byte) []byte
	}{
		{w.SendSubject(), w.HandleSend},
		{w.HistorySubject(), w.HandleHistory},
	}

	for _, rt := range routes {
		sub, err := w.nc.QueueSubscribe(rt.subject, QueueGroup, func(msg *nats.Msg) {
			w.dispatch(base, rt.subject, msg, rt.handle)
		})
		if err != nil {
			_ = w.Stop(ctx)
			return fmt.Errorf("failed to subscribe to '%s': %w", rt.subject, err)
		}
		w.subs = append(w.subs, sub)
		observability.Logger().Info("nats worker subscribed", "subject", rt.subject, "queue", QueueGroup)
	}
	return nil
}

// Stop drains the subscriptions, waits for in-flight requests to reply and
// then drains the connection. It gives up when ctx is done.
func (w *Worker) Stop(ctx context.Context) error {
	for _, sub := range w.subs {
		_ = sub.Drain()
	}

	// Subscription drain is asynchronous; a subscription turns invalid once
	// its pending messages have been handed to dispatch.
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for _, sub := range w.subs {
		for sub.IsValid() {
			select {
			case <-ctx.Done():
				return fmt.Errorf("draining subscriptions: %w", ctx.Err())
			case <-tick.C:
			}
		}
	}
	w.subs = nil

	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight requests: %w", ctx.Err())
	}

	if w.nc != nil {
		return w.nc.Drain()
	}
	return nil
}

// dispatch runs on the subscription's delivery goroutine. It blocks only
// while MaxInFlight handlers are busy.
func (w *Worker) dispatch(base context.Context, subject string, msg *nats.Msg, handle func(context.Context, []byte) []byte) {
	w.sem <- struct{}{}
	w.inflight.Add(1)
	go func() {
		defer func() {
			<-w.sem
			w.inflight.Done()
		}()
		w.serve(base, subject, msg, handle)
	}()
}

func (w *Worker) serve(parent context.Context, subject string, msg *nats.Msg, handle func(context.Context, []byte) []byte) {
	reqID := ""
	if msg.Header != nil {
		reqID = msg.Header.Get(requestIDHeader)
	}
	if reqID == "" {
		reqID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(observability.WithRequestID(parent, reqID), w.timeout)
	defer cancel()

	start := time.Now()
	reply := handle(ctx, msg.Data)

	status := "ok"
	if bytes.HasPrefix(reply, []byte(`{"error":`)) {
		status = "error"
	}
	metrics.WorkerRequestsTotal.WithLabelValues(subject, status).Inc()

	log := observability.LoggerFromContext(ctx)
	log.Info("nats request completed", "subject", subject, "status", status, "latency", time.Since(start))

	if msg.Reply == "" {
		log.Warn("nats request has no reply subject", "subject", subject)
		return
	}
	if err := msg.Respond(reply); err != nil {
		log.Error("nats respond failed", "subject", subject, "error", err)
	}
}

// HandleSend decodes a send request, runs it and returns the encoded reply.
// It never panics and always returns a body.
func (w *Worker) HandleSend(ctx context.Context, data []byte) (reply []byte) {
	defer recoverInto(ctx, &reply)

	req, err := wire.DecodeSendRequest(bytes.NewReader(data))
	if err != nil {
		return encodeError(err)
	}
	out, err := w.svc.SendMessage(ctx, req.Input())
	if err != nil {
		return encodeError(err)
	}
	return wire.Marshal(wire.NewSendResponse(out))
}

// HandleHistory is HandleSend's counterpart for history requests.
func (w *Worker) HandleHistory(ctx context.Context, data []byte) (reply []byte) {
	defer recoverInto(ctx, &reply)

	req, err := wire.DecodeHistoryRequest(bytes.NewReader(data))
	if err != nil {
		return encodeError(err)
	}
	out, err := w.svc.GetHistory(ctx, req.Input())
	if err != nil {
		return encodeError(err)
	}
	return wire.Marshal(wire.NewHistoryResponse(out))
}

func encodeError(err error) []byte {
	_, env := wire.NewErrorEnvelope(err)
	return wire.Marshal(env)
}

func recoverInto(ctx context.Context, reply *[]byte) {
	rec := recover()
	if rec == nil {
		return
	}
	err := fmt.Errorf("recovered panic: %v", rec)
	observability.LoggerFromContext(ctx).Error("panic serving nats request", "error", err)
	*reply = encodeError(err)
}
