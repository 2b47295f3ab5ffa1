// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"context"

	"github.com/poiesic/shelfmark/core"
)

// MessageType discriminates the work a message requests.
type MessageType string

const (
	// MessageTypeIngest runs the bookmark processing pipeline.
	MessageTypeIngest MessageType = "ingest"

	// MessageTypeEntityExtraction runs entity mention extraction for one
	// bookmark. The pipeline normally does this inline; the explicit message
	// exists for re-running extraction.
	MessageTypeEntityExtraction MessageType = "entity-extraction"

	// MessageTypeEntityEnrichment runs enrichment for a user's entities.
	MessageTypeEntityEnrichment MessageType = "entity-enrichment"
)

// Message is one unit of queued work. Fields beyond Type are populated per
// message type: ingest and extraction carry a bookmark, enrichment only a
// user.
type Message struct {
	Type       MessageType `json:"type"`
	BookmarkID core.ID     `json:"bookmarkId,omitempty"`
	UserID     core.ID     `json:"userId,omitempty"`
	URL        string      `json:"url,omitempty"`
}

// Delivery is one received message plus its delivery bookkeeping.
type Delivery struct {
	// ID identifies the delivery for acknowledgement.
	ID uint64

	Message Message

	// Attempt is 1 on first delivery and grows on each redelivery.
	Attempt int
}

// Enqueuer publishes messages for later processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, messages ...Message) error
}

// Source delivers batches of messages. Delivery is at-least-once: a message
// stays in flight until acked, and a nacked message is redelivered with an
// incremented attempt count.
type Source interface {
	// Receive blocks until at least one message is available or the context
	// is done, then returns up to max deliveries.
	Receive(ctx context.Context, max int) ([]Delivery, error)

	// Ack marks a delivery as processed.
	Ack(ctx context.Context, delivery Delivery) error

	// Nack returns a delivery to the queue for redelivery.
	Nack(ctx context.Context, delivery Delivery) error
}
