package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/store"
)

const msgEventNotFound = "Evento não encontrado"

type EventService struct {
	repo   store.Repository
	logger *zap.Logger
}

func NewEventService(repo store.Repository, logger *zap.Logger) *EventService {
	return &EventService{repo: repo, logger: logger}
}

func (s *EventService) List(ctx context.Context) ([]models.Event, error) {
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		s.logger.Error("list events failed", zap.Error(err))
		return nil, apperr.Persistence("Erro ao buscar eventos", err)
	}
	return events, nil
}

func (s *EventService) Get(ctx context.Context, id int64) (*models.Event, error) {
	return loadEvent(ctx, s.repo, s.logger, id)
}

func loadEvent(ctx context.Context, repo store.Repository, logger *zap.Logger, id int64) (*models.Event, error) {
	event, err := repo.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return nil, apperr.NotFound("event", msgEventNotFound)
		}
		logger.Error("get event failed", zap.Int64("event_id", id), zap.Error(err))
		return nil, apperr.Persistence("Erro ao buscar evento", err)
	}
	return event, nil
}
