package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/armory/internal/adapters/mq/queue"
	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/pkg/logger"
)

// Failure describes one character of a batch that could not be resolved.
type Failure struct {
	Realm   string `json:"realm"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// BatchResult holds the overviews that resolved, in input order, and the
// failures of the rest.
type BatchResult struct {
	Overviews []model.CharacterOverview `json:"overviews"`
	Failures  []Failure                 `json:"failures"`
}

// Overviews resolves every identifier through the worker pool. One failing
// character never fails the batch; the error return is reserved for the
// service itself being unavailable.
func (s *Service) Overviews(ctx context.Context, ids []model.CharacterIdentifier, region string) (BatchResult, error) {
	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()

	res := BatchResult{Overviews: []model.CharacterOverview{}, Failures: []Failure{}}
	if len(ids) == 0 {
		return res, nil
	}
	if !started {
		return res, ErrNotStarted
	}

	ctx, cancel := context.WithTimeout(ctx, s.batchTimeout)
	defer cancel()
	deadline, _ := ctx.Deadline()
	region = s.regionOrDefault(region)

	results := make([]model.LookupResult, len(ids))
	answered := make([]bool, len(ids))
	reply := make(chan model.LookupResult, len(ids))
	start := time.Now()

	pending := 0
	for i, id := range ids {
		l := model.Lookup{
			ID:         uuid.New(),
			Index:      i,
			Identifier: id,
			Region:     region,
			Deadline:   deadline,
			Reply:      reply,
		}
		if q.Enqueue(ctx, l) {
			pending++
			continue
		}
		results[i] = model.LookupResult{ID: l.ID, Index: i, Err: enqueueError(ctx, q)}
		answered[i] = true
	}

wait:
	for pending > 0 {
		select {
		case r := <-reply:
			results[r.Index] = r
			answered[r.Index] = true
			pending--
		case <-ctx.Done():
			break wait
		}
	}

	for i, id := range ids {
		if !answered[i] {
			results[i].Err = ctx.Err()
		}
		if err := results[i].Err; err != nil {
			res.Failures = append(res.Failures, Failure{
				Realm:   id.Realm,
				Name:    id.Name,
				Kind:    ErrorKind(err),
				Message: err.Error(),
			})
			continue
		}
		res.Overviews = append(res.Overviews, results[i].Overview)
	}

	s.logger.Info(ctx, "batch resolved",
		logger.Int("requested", len(ids)),
		logger.Int("resolved", len(res.Overviews)),
		logger.Int("failed", len(res.Failures)),
		logger.Duration("took", time.Since(start)))
	return res, nil
}

// TeamOverviews resolves every member of a named team.
func (s *Service) TeamOverviews(ctx context.Context, team, region string) (BatchResult, error) {
	members, err := s.roster.Team(team)
	if err != nil {
		return BatchResult{}, err
	}
	return s.Overviews(ctx, members, region)
}

// Teams lists the known team names.
func (s *Service) Teams() []string {
	return s.roster.Teams()
}

func enqueueError(ctx context.Context, q *queue.InMemoryQueue) error {
	switch {
	case q.IsClosed():
		return queue.ErrClosed
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return queue.ErrBackpressure
	}
}
