package transport

import (
	"context"

	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/ports"
)

// ChannelPublisher delivers audit output to an in-process consumer.
type ChannelPublisher struct {
	out chan Message
}

var _ ports.Publisher = (*ChannelPublisher)(nil)

// NewChannelPublisher creates a publisher with the given buffer size.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{out: make(chan Message, buffer)}
}

// Messages exposes the stream for draining.
func (p *ChannelPublisher) Messages() <-chan Message {
	return p.out
}

// Close ends the stream. Publishing after Close panics.
func (p *ChannelPublisher) Close() {
	close(p.out)
}

// Progress implements ports.Publisher.
func (p *ChannelPublisher) Progress(ctx context.Context, guidelineID string) error {
	return p.send(ctx, ProgressMessage(guidelineID))
}

// Batch implements ports.Publisher.
func (p *ChannelPublisher) Batch(ctx context.Context, findings []domain.Finding) error {
	return p.send(ctx, BatchMessage(findings))
}

// Finished implements ports.Publisher.
func (p *ChannelPublisher) Finished(ctx context.Context, scanID int64, totalIssues int) error {
	return p.send(ctx, FinishedMessage(scanID, totalIssues))
}

func (p *ChannelPublisher) send(ctx context.Context, m Message) error {
	select {
	case p.out <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
