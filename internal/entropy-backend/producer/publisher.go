// Package producer publica os eventos do pipeline (Kafka e broadcast Redis).
package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	skafka "github.com/radieske/entropy-casino-backend/internal/shared/kafka"
	"github.com/radieske/entropy-casino-backend/pkg/contracts/events"
)

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Options struct {
	Brokers string // vazio desativa o Kafka

	TopicRequested string
	TopicSettled   string
	TopicDLQ       string

	Broadcaster      Broadcaster // nil desativa o broadcast
	BroadcastChannel string
}

// Publisher implementa a saída de eventos do serviço. Destinos não configurados são ignorados.
type Publisher struct {
	requested skafka.MessageWriter
	settled   skafka.MessageWriter
	dlq       skafka.MessageWriter

	bc      Broadcaster
	channel string
	log     *zap.Logger
}

func New(opts Options, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Publisher{bc: opts.Broadcaster, channel: opts.BroadcastChannel, log: log}
	if len(skafka.SplitBrokers(opts.Brokers)) > 0 {
		p.requested = skafka.NewWriter(opts.Brokers, opts.TopicRequested)
		p.settled = skafka.NewWriter(opts.Brokers, opts.TopicSettled)
		p.dlq = skafka.NewWriter(opts.Brokers, opts.TopicDLQ)
	}
	return p
}

func (p *Publisher) PublishRequested(ctx context.Context, e events.EntropyRequested) error {
	if p.requested == nil {
		return nil
	}
	if err := skafka.WriteJSON(ctx, p.requested, e.RequestID, e); err != nil {
		return fmt.Errorf("publish entropy requested: %w", err)
	}
	p.log.Debug("published entropy requested", zap.String("request_id", e.RequestID))
	return nil
}

// PublishSettled grava no tópico e faz broadcast; uma falha não impede o outro destino
func (p *Publisher) PublishSettled(ctx context.Context, e events.GameSettled) error {
	var errs []error
	if p.settled != nil {
		if err := skafka.WriteJSON(ctx, p.settled, e.RequestID, e); err != nil {
			errs = append(errs, fmt.Errorf("publish game settled: %w", err))
		}
	}
	if p.bc != nil {
		payload, err := json.Marshal(e)
		if err == nil {
			err = p.bc.Publish(ctx, p.channel, payload)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("broadcast game settled: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) PublishFailed(ctx context.Context, e events.SettlementFailed) error {
	if p.dlq == nil {
		return nil
	}
	if err := skafka.WriteJSON(ctx, p.dlq, e.RequestID, e); err != nil {
		return fmt.Errorf("publish settlement failure: %w", err)
	}
	return nil
}

// Close fecha os writers Kafka
func (p *Publisher) Close() error {
	var errs []error
	for _, w := range []skafka.MessageWriter{p.requested, p.settled, p.dlq} {
		if w != nil {
			errs = append(errs, w.Close())
		}
	}
	return errors.Join(errs...)
}
