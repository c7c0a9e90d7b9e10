package reports

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"bibliogoya-backend/internal/platform/logging"
)

const (
	DefaultRankLimit = 10
	maxRankLimit     = 100
	defaultWindow    = 30 * 24 * time.Hour
)

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type Service struct {
	store *Store
	clock Clock
	log   logging.Logger
}

func NewService(conn *sqlx.DB, log logging.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{store: NewStore(conn), clock: realClock{}, log: log}
}

// WithClock は期限切れ判定の基準時刻を差し替える（テスト用）
func (s *Service) WithClock(c Clock) *Service {
	s.clock = c
	return s
}

// LoansBetween lists live loans started in [from, to). A zero to means now,
// a zero from means thirty days before to.
func (s *Service) LoansBetween(ctx context.Context, from, to time.Time) (LoansReport, error) {
	if to.IsZero() {
		to = s.clock.Now()
	}
	if from.IsZero() {
		from = to.Add(-defaultWindow)
	}
	from, to = from.UTC(), to.UTC()
	if !from.Before(to) {
		return LoansReport{}, ErrInvalid("from must be before to")
	}
	items, err := s.store.LoansBetween(ctx, from, to)
	if err != nil {
		return LoansReport{}, wrapInternal(err)
	}
	return LoansReport{From: from, To: to, Items: items}, nil
}

func (s *Service) Overdue(ctx context.Context) (OverdueReport, error) {
	now := s.clock.Now().UTC()
	items, err := s.store.Overdue(ctx, now)
	if err != nil {
		return OverdueReport{}, wrapInternal(err)
	}
	if len(items) > 0 {
		s.log.InfoContext(ctx, "overdue loans", "count", len(items))
	}
	return OverdueReport{AsOf: now, Items: items}, nil
}

func rankLimit(n int) (uint, error) {
	switch {
	case n == 0:
		return DefaultRankLimit, nil
	case n < 0 || n > maxRankLimit:
		return 0, ErrInvalid("limit must be between 1 and 100")
	}
	return uint(n), nil
}

func (s *Service) TopMembers(ctx context.Context, limit int) (TopMembersReport, error) {
	n, err := rankLimit(limit)
	if err != nil {
		return TopMembersReport{}, err
	}
	items, err := s.store.TopMembers(ctx, n)
	if err != nil {
		return TopMembersReport{}, wrapInternal(err)
	}
	return TopMembersReport{Items: items}, nil
}

func (s *Service) PopularBooks(ctx context.Context, limit int) (PopularBooksReport, error) {
	n, err := rankLimit(limit)
	if err != nil {
		return PopularBooksReport{}, err
	}
	items, err := s.store.PopularBooks(ctx, n)
	if err != nil {
		return PopularBooksReport{}, wrapInternal(err)
	}
	return PopularBooksReport{Items: items}, nil
}

func (s *Service) GenreTrends(ctx context.Context) (GenreTrendsReport, error) {
	items, err := s.store.GenreTrends(ctx)
	if err != nil {
		return GenreTrendsReport{}, wrapInternal(err)
	}
	return GenreTrendsReport{Items: items}, nil
}
