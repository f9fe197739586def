package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"trackx/backend/internal/dashboard"
	"trackx/backend/internal/docstore"
	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
)

type StatsService struct {
	store     DocumentStore
	auth      *AuthService
	dashboard *dashboard.Dashboard
	loc       *time.Location
	now       func() time.Time
	logger    *log.Logger
}

func NewStatsService(
	store DocumentStore,
	auth *AuthService,
	live *dashboard.Dashboard,
	loc *time.Location,
	logger *log.Logger,
) *StatsService {
	return &StatsService{
		store:     store,
		auth:      auth,
		dashboard: live,
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
}

var errCollectionNotFound = apperrors.NotFound("collection_not_found", "collection not found")

// Get computes the dashboard from one read of each collection.
func (s *StatsService) Get(ctx context.Context, identity Identity) (*dashboard.State, *apperrors.APIError) {
	user, apiErr := s.auth.Me(ctx, identity.UserID)
	if apiErr != nil {
		return nil, apiErr
	}

	collections := []string{
		docstore.UserTodos(identity.UserID),
		docstore.UserHabits(identity.UserID),
		docstore.UserNotes(identity.UserID),
		docstore.UserEvents(identity.UserID),
		docstore.UserFocus(identity.UserID),
	}
	docs := make([][]model.Document, len(collections))
	for i, collection := range collections {
		snapshot, err := s.store.List(ctx, collection)
		if err != nil {
			return nil, toAPIError(s.logger, "list "+collection, err, errCollectionNotFound)
		}
		docs[i] = snapshot.Documents()
	}

	current := user.Current()
	state := dashboard.Compute(&current, docs[0], docs[1], docs[2], docs[3], docs[4], s.now(), s.loc)
	return &state, nil
}

// Stream follows the session behind identity and emits dashboard states
// until ctx ends or the session signs out.
func (s *StatsService) Stream(ctx context.Context, identity Identity) (<-chan dashboard.State, *apperrors.APIError) {
	users, apiErr := s.auth.ObserveCurrentUser(ctx, identity)
	if apiErr != nil {
		return nil, apiErr
	}
	return s.dashboard.Run(ctx, users), nil
}
