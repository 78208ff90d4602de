package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/hybrid-retrieval/internal/adapters/dto"
	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

// Requester is satisfied by the NATS bus.
type Requester interface {
	Request(ctx context.Context, subject string, payload []byte) ([]byte, error)
}

// Client calls a remote Responder. It satisfies the inbound retrieval ports.
type Client struct {
	bus      Requester
	subjects Subjects
	timeout  time.Duration
	now      func() time.Time
}

func NewClient(bus Requester, subjects Subjects, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		bus:      bus,
		subjects: subjects,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (c *Client) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	sentAt := c.now()
	msg := searchMessage{
		SearchRequest: dto.SearchRequest{Query: query, Filters: dto.FiltersFromOptions(opts)},
		SentAt:        &sentAt,
	}
	reply, err := c.call(ctx, c.subjects.Search(), msg)
	if err != nil {
		return nil, err
	}
	return nonNil(reply.Results), nil
}

func (c *Client) Related(ctx context.Context, documentID string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	sentAt := c.now()
	msg := relatedMessage{
		RelatedRequest: dto.RelatedRequest{DocumentID: documentID, Filters: dto.FiltersFromOptions(opts)},
		SentAt:         &sentAt,
	}
	reply, err := c.call(ctx, c.subjects.Related(), msg)
	if err != nil {
		return nil, err
	}
	return nonNil(reply.Results), nil
}

func (c *Client) Stats(ctx context.Context, scope string) (domain.CorpusStats, error) {
	sentAt := c.now()
	msg := statsMessage{StatsRequest: dto.StatsRequest{ProjectScope: scope}, SentAt: &sentAt}
	reply, err := c.call(ctx, c.subjects.Stats(), msg)
	if err != nil {
		return domain.CorpusStats{}, err
	}
	if reply.Stats == nil {
		return domain.CorpusStats{}, fmt.Errorf("stats reply is empty")
	}
	return *reply.Stats, nil
}

func (c *Client) call(ctx context.Context, subject string, msg any) (dto.Reply, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return dto.Reply{}, fmt.Errorf("marshal %s request: %w", subject, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.bus.Request(ctx, subject, payload)
	if err != nil {
		return dto.Reply{}, err
	}

	var reply dto.Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return dto.Reply{}, fmt.Errorf("decode %s reply: %w", subject, err)
	}
	if reply.Error != "" {
		return dto.Reply{}, dto.KindError(reply.Kind, reply.Error)
	}
	return reply, nil
}

func nonNil(results []domain.SearchResult) []domain.SearchResult {
	if results == nil {
		return []domain.SearchResult{}
	}
	return results
}
