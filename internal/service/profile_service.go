package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"trackx/backend/internal/docstore"
	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
	"trackx/backend/internal/repository"
	"trackx/backend/internal/session"
)

const maxBioLength = 500

type ProfileService struct {
	userRepo *repository.UserRepository
	store    DocumentStore
	sessions *session.Hub
	logger   *log.Logger
}

func NewProfileService(
	userRepo *repository.UserRepository,
	store DocumentStore,
	sessions *session.Hub,
	logger *log.Logger,
) *ProfileService {
	return &ProfileService{userRepo: userRepo, store: store, sessions: sessions, logger: logger}
}

type ProfileView struct {
	UID         string     `json:"uid"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	PhotoURL    string     `json:"photoURL"`
	Bio         string     `json:"bio"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type ProfileInput struct {
	DisplayName string
	Bio         string
}

var errProfileNotFound = apperrors.NotFound("user_not_found", "user not found")

func (s *ProfileService) Get(ctx context.Context, userID string) (*ProfileView, *apperrors.APIError) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, toAPIError(s.logger, "get user", err, errProfileNotFound)
	}

	view := &ProfileView{
		UID:         user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
	}

	doc, err := s.store.Get(ctx, docstore.UserProfile(userID))
	if errors.Is(err, repository.ErrNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, toAPIError(s.logger, "get profile", err, errProfileNotFound)
	}
	profile, err := model.DecodeProfile(doc)
	if err != nil {
		s.logger.Warn("decode profile", "path", doc.Path, "error", err)
		return view, nil
	}
	view.Bio = profile.Bio
	view.UpdatedAt = profile.UpdatedAt
	return view, nil
}

// Save updates the display name on the account and the profile document,
// then tells every open session of the user.
func (s *ProfileService) Save(ctx context.Context, userID string, input ProfileInput) (*ProfileView, *apperrors.APIError) {
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, apperrors.BadRequest("invalid_displayName", "display name is required")
	}
	if len([]rune(input.Bio)) > maxBioLength {
		return nil, apperrors.BadRequest("invalid_bio", "bio is too long")
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateDisplayName(ctx, userID, displayName, now); err != nil {
		return nil, toAPIError(s.logger, "update display name", err, errProfileNotFound)
	}

	_, err := s.store.Set(ctx, docstore.UserProfile(userID), model.Fields{
		"displayName": displayName,
		"bio":         input.Bio,
		"updatedAt":   docstore.ServerTimestamp,
	}, true)
	if err != nil {
		return nil, toAPIError(s.logger, "save profile", err, errProfileNotFound)
	}

	view, apiErr := s.Get(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	s.sessions.Update(model.CurrentUser{
		UID:         view.UID,
		DisplayName: view.DisplayName,
		Email:       view.Email,
		PhotoURL:    view.PhotoURL,
	})
	return view, nil
}
