package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/envelope"
	"github.com/opd-ai/go-cells/pkg/logger"
	"github.com/opd-ai/go-cells/pkg/pool"
	"github.com/opd-ai/go-cells/pkg/topology"
)

// AMQPConfig configures the AMQP-backed Transport Adapter.
type AMQPConfig struct {
	URL       string
	Exchange  string
	QueueName string // this cell's own inbound queue, bound with routing key = TransportAddr
}

// AMQP is a Transport Adapter backed by a topic exchange: each cell
// publishes to a neighbor's routing key (its TransportAddr) and consumes
// from its own bound queue, matching the AMQP-style broker described for
// the fabric's wire transport.
type AMQP struct {
	cfg  AMQPConfig
	log  *logger.Logger
	conn *amqp.Connection

	mu   sync.Mutex
	ch   *amqp.Channel
}

// NewAMQP dials the broker and declares the topic exchange used for
// cell-to-cell delivery. The caller supplies a Receiver via Listen to
// begin consuming once the adapter is constructed.
func NewAMQP(ctx context.Context, cfg AMQPConfig, log *logger.Logger) (*AMQP, error) {
	if log == nil {
		log = logger.NewDefault()
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, cellerrors.TransportError("failed to dial amqp broker", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, cellerrors.TransportError("failed to open amqp channel", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, cellerrors.TransportError("failed to declare cell exchange", err)
	}
	return &AMQP{
		cfg:  cfg,
		log:  log.Component("transport.amqp"),
		conn: conn,
		ch:   ch,
	}, nil
}

// Close tears down the channel and connection.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ch != nil {
		a.ch.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

// Listen declares this cell's inbound queue, binds it to QueueName as
// the routing key, and delivers every message it receives to r until ctx
// is cancelled.
func (a *AMQP) Listen(ctx context.Context, r Receiver) error {
	a.mu.Lock()
	ch := a.ch
	a.mu.Unlock()

	q, err := ch.QueueDeclare(a.cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return cellerrors.TransportError("failed to declare inbound queue", err)
	}
	if err := ch.QueueBind(q.Name, a.cfg.QueueName, a.cfg.Exchange, false, nil); err != nil {
		return cellerrors.TransportError("failed to bind inbound queue", err)
	}
	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return cellerrors.TransportError("failed to start consuming", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return cellerrors.TransportError("amqp delivery channel closed", nil)
			}
			a.handleDelivery(ctx, r, d)
		}
	}
}

func (a *AMQP) handleDelivery(ctx context.Context, r Receiver, d amqp.Delivery) {
	var frame envelope.Frame
	if err := json.Unmarshal(d.Body, &frame); err != nil {
		a.log.Warn("dropping malformed envelope", "error", err)
		d.Nack(false, false)
		return
	}
	if err := r.Deliver(ctx, frame); err != nil {
		a.log.Warn("receiver failed to handle envelope", "error", err)
	}
	d.Ack(false)
}

// Send publishes frame to target's routing key on the cell exchange.
func (a *AMQP) Send(ctx context.Context, target topology.CellRecord, frame envelope.Frame) error {
	buf := pool.EnvelopeBufferPool.Get()
	defer pool.EnvelopeBufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(frame); err != nil {
		return cellerrors.InternalError("failed to encode envelope", err)
	}
	body := make([]byte, buf.Len())
	copy(body, buf.Bytes())

	a.mu.Lock()
	ch := a.ch
	a.mu.Unlock()

	routingKey := target.TransportAddr
	if routingKey == "" {
		return cellerrors.TransportError(fmt.Sprintf("cell %q has no transport address", target.Path), nil)
	}
	err := ch.PublishWithContext(ctx, a.cfg.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return cellerrors.TransportError(fmt.Sprintf("failed to publish to %q", target.Path), err)
	}
	return nil
}

// Fanout publishes frame to every target's routing key, returning the
// first publish error encountered after attempting all of them.
func (a *AMQP) Fanout(ctx context.Context, targets []topology.CellRecord, frame envelope.Frame) error {
	var first error
	for _, target := range targets {
		if err := a.Send(ctx, target, frame); err != nil {
			a.log.Warn("fanout send failed, continuing to remaining targets", "target", target.Path, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
