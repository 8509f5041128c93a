package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"lumina/internal/backend"
	"lumina/internal/platform/rabbitmq"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, evt backend.UserEvent)
}

// AuthEventWorker consumes the auth exchange through a private queue, so
// every replica sees every event, and hands events to the local provider.
type AuthEventWorker struct {
	conn       *amqp.Connection
	exchange   string
	dispatcher Dispatcher
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAuthEventWorker(conn *amqp.Connection, exchange string, dispatcher Dispatcher, logger *zap.Logger) *AuthEventWorker {
	return &AuthEventWorker{
		conn:       conn,
		exchange:   exchange,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (w *AuthEventWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	fail := func(err error) error {
		_ = ch.Close()
		cancel()
		return err
	}

	if err := rabbitmq.DeclareAuthExchange(ch, w.exchange); err != nil {
		return fail(err)
	}
	queue, err := ch.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		return fail(fmt.Errorf("declare worker queue failed: %w", err))
	}
	if err := ch.QueueBind(queue.Name, "", w.exchange, false, nil); err != nil {
		return fail(fmt.Errorf("bind worker queue failed: %w", err))
	}

	deliveries, err := ch.Consume(
		queue.Name,
		"",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail(fmt.Errorf("consume queue failed: %w", err))
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn("auth event deliveries closed")
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *AuthEventWorker) handle(ctx context.Context, d amqp.Delivery) {
	evt, err := DecodeUserEvent(d.Body)
	if err != nil {
		w.logger.Warn("worker decode auth event failed", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	w.dispatcher.Dispatch(ctx, evt)
	_ = d.Ack(false)
}

func (w *AuthEventWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// DecodeUserEvent parses a published auth event and rejects payloads that
// do not name a user.
func DecodeUserEvent(body []byte) (backend.UserEvent, error) {
	var evt backend.UserEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return backend.UserEvent{}, fmt.Errorf("unmarshal auth event failed: %w", err)
	}
	if evt.Type == "" || evt.UserID == "" {
		return backend.UserEvent{}, fmt.Errorf("auth event missing type or user")
	}
	return evt, nil
}
