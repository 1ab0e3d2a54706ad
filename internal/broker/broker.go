// Package broker adapts the pipeline's five queues onto a durable AMQP
// topic exchange, mirroring aio_pika's connect_robust reconnect behavior
// with amqp091-go's own Connection/Channel primitives.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// Exchange is the durable topic exchange every stage publishes to
	// and binds its queues against.
	Exchange = "fastleaksdf"
	// DeadLetterExchange is the dead-letter target declared on the
	// documents.pending queue. Consume nacks failed deliveries with
	// requeue set, so it never routes a delivery here itself.
	DeadLetterExchange = "fastleaksdf-dlq"

	QueueDocumentsPending    = "documents.pending"
	QueueDocumentsDownloaded = "documents.downloaded"
	QueueFilesExtracted      = "files.extracted"
	QueueIOCsPending         = "iocs.pending"

	RoutingDocumentsFailed = "documents.failed"

	reconnectDelay = 2 * time.Second
)

// Broker owns one robust AMQP connection and the channels opened against
// it, declaring the exchange/queue topology from spec §6 idempotently on
// every (re)connect.
type Broker struct {
	url    string
	log    *zap.Logger
	mu     sync.Mutex
	conn   *amqp.Connection
	notify chan *amqp.Error
}

// Dial opens the initial connection and declares topology. Subsequent
// reconnects are handled by a background goroutine (watchReconnect);
// Publish uses whichever connection is current, while a running Consume
// returns an error when its delivery channel closes and does not
// resubscribe.
func Dial(ctx context.Context, url string, log *zap.Logger) (*Broker, error) {
	b := &Broker{url: url, log: log}
	if err := b.connect(); err != nil {
		return nil, fmt.Errorf("broker: dial: %w", err)
	}
	go b.watchReconnect(ctx)
	return b, nil
}

func (b *Broker) connect() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("broker: connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("broker: open channel for topology: %w", err)
	}
	defer ch.Close()

	if err := declareTopology(ch); err != nil {
		conn.Close()
		return err
	}

	b.mu.Lock()
	b.conn = conn
	b.notify = conn.NotifyClose(make(chan *amqp.Error, 1))
	b.mu.Unlock()
	return nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: declare exchange %s: %w", Exchange, err)
	}
	if err := ch.ExchangeDeclare(DeadLetterExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: declare exchange %s: %w", DeadLetterExchange, err)
	}

	pendingArgs := amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": RoutingDocumentsFailed,
	}
	if err := declareBoundQueue(ch, QueueDocumentsPending, pendingArgs); err != nil {
		return err
	}
	if err := declareBoundQueue(ch, QueueDocumentsDownloaded, nil); err != nil {
		return err
	}
	if err := declareBoundQueue(ch, QueueFilesExtracted, nil); err != nil {
		return err
	}
	if err := declareBoundQueue(ch, QueueIOCsPending, nil); err != nil {
		return err
	}
	return nil
}

func declareBoundQueue(ch *amqp.Channel, name string, args amqp.Table) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
		return fmt.Errorf("broker: declare queue %s: %w", name, err)
	}
	if err := ch.QueueBind(name, name, Exchange, false, nil); err != nil {
		return fmt.Errorf("broker: bind queue %s: %w", name, err)
	}
	return nil
}

// watchReconnect mirrors aio_pika's connect_robust: on an unexpected
// connection close, it redials and redeclares topology until ctx is
// cancelled.
func (b *Broker) watchReconnect(ctx context.Context) {
	for {
		b.mu.Lock()
		notify := b.notify
		b.mu.Unlock()
		if notify == nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case err, ok := <-notify:
			if !ok {
				return
			}
			b.log.Warn("broker connection lost, reconnecting", zap.Error(err))
			for {
				if ctx.Err() != nil {
					return
				}
				if connErr := b.connect(); connErr != nil {
					b.log.Warn("broker reconnect failed, retrying", zap.Error(connErr))
					time.Sleep(reconnectDelay)
					continue
				}
				b.log.Info("broker reconnected")
				break
			}
		}
	}
}

// Close shuts down the underlying connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

func (b *Broker) channel() (*amqp.Channel, error) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("broker: connection unavailable")
	}
	return conn.Channel()
}

// Publish sends body to Exchange under routingKey with persistent
// delivery mode, per spec §6.
func (b *Broker) Publish(ctx context.Context, routingKey string, body []byte) error {
	ch, err := b.channel()
	if err != nil {
		return fmt.Errorf("broker: publish %s: %w", routingKey, err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("broker: publish %s: %w", routingKey, err)
	}
	return nil
}

// Handler processes one message body. A nil return acknowledges the
// delivery; a non-nil return nacks it for broker redelivery.
type Handler func(ctx context.Context, body []byte) error

// Consume runs handler over deliveries from queue until ctx is
// cancelled, at the given prefetch (QoS), using a fixed-size worker
// pool matching prefetch so in-process concurrency never outruns the
// broker's own flow control.
func (b *Broker) Consume(ctx context.Context, queue string, prefetch int, handler Handler) error {
	ch, err := b.channel()
	if err != nil {
		return fmt.Errorf("broker: consume %s: %w", queue, err)
	}
	defer ch.Close()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("broker: set qos for %s: %w", queue, err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: register consumer for %s: %w", queue, err)
	}

	sem := make(chan struct{}, prefetch)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case d, ok := <-deliveries:
			if !ok {
				wg.Wait()
				return fmt.Errorf("broker: delivery channel for %s closed", queue)
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				if hErr := handler(ctx, d.Body); hErr != nil {
					b.log.Warn("handler failed, nacking for redelivery", zap.String("queue", queue), zap.Error(hErr))
					_ = d.Nack(false, true)
					return
				}
				_ = d.Ack(false)
			}(d)
		}
	}
}
