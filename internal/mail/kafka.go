// kindway - donation matching platform
// Copyright (C) 2025  kindway contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

const (
	// OutboxTopic is where producers publish emails they want delivered.
	OutboxTopic = "mail-outbox"

	// DLQTopic receives emails that exhausted every delivery attempt so
	// they can be inspected and replayed by hand.
	DLQTopic = "mail-dlq"

	// maxRetries is the number of delivery attempts before DLQ routing.
	maxRetries = 3
)

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the producers use.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads OutboundEmails from mail-outbox and hands them to a
// Sender. Offsets are committed after each message is either delivered or
// parked on the DLQ, so delivery is at-least-once.
type Consumer struct {
	reader  messageReader
	dlq     messageWriter
	sender  Sender
	backoff func(attempt int) time.Duration
}

// NewConsumer creates a Consumer connected to brokers.
func NewConsumer(brokers []string, sender Sender) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          OutboxTopic,
		GroupID:        "kindway-mail-sender",
		MinBytes:       1,
		MaxBytes:       1 << 20, // 1 MiB
		CommitInterval: 0,       // explicit commits only
		StartOffset:    kafka.FirstOffset,
	})

	dlq := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        DLQTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}

	return newConsumer(reader, dlq, sender)
}

func newConsumer(reader messageReader, dlq messageWriter, sender Sender) *Consumer {
	return &Consumer{
		reader: reader,
		dlq:    dlq,
		sender: sender,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 2 * time.Second
		},
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	log.Printf("mail-sender: consuming from topic %q", OutboxTopic)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		if err := c.dispatch(ctx, m); err != nil {
			if ctx.Err() != nil {
				// Not committed; redelivered after restart.
				return nil
			}
			log.Printf("mail-sender: routed message key=%s to DLQ: %v", string(m.Key), err)
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Printf("mail-sender: commit failed (message may be redelivered): %v", err)
		}
	}
}

// Close releases the Kafka reader and the DLQ writer.
func (c *Consumer) Close() error {
	rerr := c.reader.Close()
	werr := c.dlq.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

// dispatch tries to deliver m up to maxRetries times. Undecodable records
// go straight to the DLQ.
func (c *Consumer) dispatch(ctx context.Context, m kafka.Message) error {
	var email OutboundEmail
	if err := json.Unmarshal(m.Value, &email); err != nil {
		return c.sendToDLQ(ctx, m, fmt.Errorf("unmarshal: %w", err))
	}
	if email.To == "" {
		return c.sendToDLQ(ctx, m, fmt.Errorf("email %s has no recipient", email.ID))
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = c.sender.Send(ctx, email)
		if lastErr == nil {
			log.Printf("mail-sender: sent id=%s to=%s (attempt %d)", email.ID, email.To, attempt)
			return nil
		}

		log.Printf("mail-sender: attempt %d/%d failed for id=%s: %v", attempt, maxRetries, email.ID, lastErr)

		if attempt < maxRetries {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return c.sendToDLQ(ctx, m, lastErr)
}

func (c *Consumer) sendToDLQ(ctx context.Context, original kafka.Message, reason error) error {
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   original.Key,
		Value: original.Value,
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(reason.Error())},
		},
	})
	if err != nil {
		log.Printf("mail-sender: CRITICAL: could not write to DLQ: %v", err)
	}
	return reason
}

// Publisher queues an email for delivery.
type Publisher interface {
	Publish(ctx context.Context, email OutboundEmail) error
}

// KafkaPublisher writes OutboundEmails to mail-outbox, keyed by ID.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for brokers.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  OutboxTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, email OutboundEmail) error {
	value, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(email.ID), Value: value}); err != nil {
		return fmt.Errorf("publish to %s: %w", OutboxTopic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher logs emails instead of queueing them. It is used when no
// Kafka brokers are configured.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(_ context.Context, email OutboundEmail) error {
	log.Printf("mail: (not sent, no broker) id=%s to=%s subject=%q", email.ID, email.To, email.Subject)
	return nil
}
