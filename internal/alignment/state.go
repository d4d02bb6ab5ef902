package alignment

import (
	"context"
	"fmt"

	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/tmerr"
)

// transition moves a stored alignment to next, or reports a Conflict when
// the state machine forbids it.
func (s *Service) transition(ctx context.Context, op, id string, next store.AlignmentStatus) (*store.Alignment, error) {
	a, err := s.get(ctx, op, id)
	if err != nil {
		return nil, err
	}
	// Validating an auto-validated alignment confirms it in place.
	promote := next == store.StatusValidated && a.Status == store.StatusValidated && !a.UserValidated()
	if !promote && !a.Status.CanTransition(next) {
		return nil, tmerr.Wrap(tmerr.ErrConflict, "alignment", op,
			fmt.Sprintf("cannot move alignment %s from %s to %s", id, a.Status, next), nil)
	}
	prev := a.Status
	a.Status = next
	if next == store.StatusValidated {
		a.Method = store.MethodUserValidated
	}
	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("alignment status changed",
		logging.String("alignment_id", a.ID),
		logging.String("from", string(prev)),
		logging.String("to", string(next)),
	)
	return a, nil
}

func (s *Service) save(ctx context.Context, a *store.Alignment) error {
	if err := s.store.SaveAlignment(ctx, a); err != nil {
		return err
	}
	s.putIndicators([]*store.Alignment{a})
	return nil
}

// Validate confirms an alignment as correct. An auto-validated alignment
// becomes user-validated.
func (s *Service) Validate(ctx context.Context, id string) (*store.Alignment, error) {
	return s.transition(ctx, "validate", id, store.StatusValidated)
}

// Reject marks an alignment as wrong.
func (s *Service) Reject(ctx context.Context, id string) (*store.Alignment, error) {
	return s.transition(ctx, "reject", id, store.StatusRejected)
}

// MarkNeedsReview flags a pending alignment for review.
func (s *Service) MarkNeedsReview(ctx context.Context, id string) (*store.Alignment, error) {
	return s.transition(ctx, "mark needs review", id, store.StatusNeedsReview)
}

// Reset returns an alignment to Pending from any state. A user validation
// is forgotten along with its status.
func (s *Service) Reset(ctx context.Context, id string) (*store.Alignment, error) {
	a, err := s.get(ctx, "reset", id)
	if err != nil {
		return nil, err
	}
	a.Status = store.StatusPending
	if a.Method == store.MethodUserValidated {
		a.Method = store.MethodHybrid
	}
	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Rescore recomputes an alignment's confidence with the current weights and
// corrections. User-validated and rejected alignments are returned
// unchanged.
func (s *Service) Rescore(ctx context.Context, id string) (*store.Alignment, error) {
	a, err := s.get(ctx, "rescore", id)
	if err != nil {
		return nil, err
	}
	if a.UserValidated() || a.Status == store.StatusRejected {
		return a, nil
	}
	posSim := 1.0
	if src, tgt, err := s.chunkPair(ctx, "rescore", a); err == nil {
		posSim = chunkPosition(a, len(src.Text), len(tgt.Text))
	}
	if err := s.score(ctx, a, posSim, make(map[string]float64)); err != nil {
		return nil, err
	}
	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
