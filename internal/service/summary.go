package service

import (
	"trackman-importer/internal/domain"
	"trackman-importer/internal/stats"

	"github.com/rs/zerolog"
)

type SummaryService struct {
	combiner *CombineService
	logger   zerolog.Logger
}

func NewSummaryService(combiner *CombineService, logger zerolog.Logger) *SummaryService {
	return &SummaryService{combiner: combiner, logger: logger}
}

// Clubs summarizes the canonical regular shots per club.
func (s *SummaryService) Clubs(club string) ([]stats.Group, error) {
	t, err := s.combiner.Canonical(domain.RegularShots)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("shots", t.Len()).Str("club", club).Msg("summarizing clubs")
	return stats.ByClub(t, club)
}

// Targets summarizes the canonical combine shots per target distance.
func (s *SummaryService) Targets() ([]stats.Group, error) {
	t, err := s.combiner.Canonical(domain.CombineShots)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("shots", t.Len()).Msg("summarizing combine targets")
	return stats.ByTarget(t)
}
