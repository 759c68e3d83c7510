package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/protocol"
)

// MessageSource is the consumer side the batcher reads from.
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// DigestSender delivers a batch of warning notifications.
type DigestSender interface {
	SendDigest(notifications []*protocol.WarningNotification) error
}

// DigestBatcher collects warning notifications from Kafka and hands them to
// a DigestSender in batches. Offsets are committed only after the batch
// was delivered.
type DigestBatcher struct {
	source        MessageSource
	sender        DigestSender
	logger        *zap.Logger
	batchSize     int
	flushInterval time.Duration
	retryInitial  time.Duration
	retryMax      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewDigestBatcher creates a new digest batcher
func NewDigestBatcher(source MessageSource, sender DigestSender, batchSize int, flushInterval time.Duration, logger *zap.Logger) *DigestBatcher {
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DigestBatcher{
		source:        source,
		sender:        sender,
		logger:        logger,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retryInitial:  100 * time.Millisecond,
		retryMax:      30 * time.Second,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming in the background
func (b *DigestBatcher) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop flushes what is pending and waits for the loop to exit
func (b *DigestBatcher) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}

type pending struct {
	msgs          []kafka.Message
	notifications []*protocol.WarningNotification
}

func (p *pending) reset() {
	p.msgs = nil
	p.notifications = nil
}

func (b *DigestBatcher) run(ctx context.Context) {
	defer b.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, b.batchSize)
	go func() {
		defer close(msgChan)
		retry := b.newRetryBackOff()
		for {
			msg, err := b.source.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				wait := retry.NextBackOff()
				b.logger.Error("consumer error", zap.Error(err), zap.Duration("retry_in", wait))
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return
				}
				continue
			}
			retry.Reset()
			select {
			case msgChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	var batch pending
	for {
		select {
		case <-b.stopCh:
			b.flush(context.WithoutCancel(ctx), &batch)
			return

		case <-ticker.C:
			if len(batch.msgs) > 0 {
				b.logger.Debug("flush interval reached", zap.Int("messages", len(batch.msgs)))
				b.flush(ctx, &batch)
			}

		case msg, ok := <-msgChan:
			if !ok {
				b.flush(context.WithoutCancel(ctx), &batch)
				return
			}
			b.add(ctx, &batch, msg)
			if len(batch.notifications) >= b.batchSize {
				b.flush(ctx, &batch)
			}
		}
	}
}

// newRetryBackOff paces Consume retries after errors. It never gives up.
func (b *DigestBatcher) newRetryBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.retryInitial
	bo.MaxInterval = b.retryMax
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (b *DigestBatcher) add(ctx context.Context, batch *pending, msg kafka.Message) {
	n, err := protocol.DecodeWarningNotification(msg.Value)
	if err != nil {
		// A message that cannot be decoded never will be; skip past it.
		b.logger.Warn("dropping undecodable notification",
			zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		if len(batch.msgs) == 0 {
			if err := b.source.Commit(ctx, msg); err != nil {
				b.logger.Error("failed to commit offset", zap.Error(err))
			}
			return
		}
		batch.msgs = append(batch.msgs, msg)
		return
	}
	batch.msgs = append(batch.msgs, msg)
	batch.notifications = append(batch.notifications, n)
}

// flush sends the batch. On failure the batch is kept and retried on the
// next flush.
func (b *DigestBatcher) flush(ctx context.Context, batch *pending) {
	if len(batch.msgs) == 0 {
		return
	}
	if len(batch.notifications) > 0 {
		if err := b.sender.SendDigest(batch.notifications); err != nil {
			b.logger.Error("failed to send digest",
				zap.Int("notifications", len(batch.notifications)), zap.Error(err))
			return
		}
	}
	if err := b.source.Commit(ctx, batch.msgs...); err != nil {
		b.logger.Error("failed to commit offsets", zap.Error(err))
	}
	b.logger.Info("digest flushed", zap.Int("notifications", len(batch.notifications)))
	batch.reset()
}
