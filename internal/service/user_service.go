package service

import (
	"context"
	"strings"
	"time"

	"vibefeed/internal/models"
	"vibefeed/internal/repository"
	"vibefeed/internal/storage"
	"vibefeed/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepository
	uploader *storage.Uploader
}

func NewUserService(userRepo repository.UserRepository, uploader *storage.Uploader) *UserService {
	return &UserService{userRepo: userRepo, uploader: uploader}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
}

// UpdateProfile merges patch into the target's profile. Only the target may
// edit it, and a new username or email must not belong to someone else.
func (s *UserService) UpdateProfile(ctx context.Context, actorID, targetID uint, patch models.UserPatch) (*models.User, error) {
	if actorID != targetID {
		return nil, models.NewForbiddenError("Can only update own profile")
	}
	if err := normalizePatch(&patch); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return user, nil
	}

	if patch.Username != nil && *patch.Username != user.Username {
		taken, err := s.userRepo.UsernameTaken(ctx, *patch.Username, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.NewConflictError("Username is already taken")
		}
	}
	if patch.Email != nil && *patch.Email != user.Email {
		taken, err := s.userRepo.EmailTaken(ctx, *patch.Email, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.NewConflictError("User with this email already exists")
		}
	}

	previous := user.Username
	patch.Apply(user)
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user, previous); err != nil {
		return nil, err
	}
	return user, nil
}

func normalizePatch(p *models.UserPatch) error {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	p.Name = trim(p.Name)
	p.Username = trim(p.Username)
	p.Location = trim(p.Location)
	p.Website = trim(p.Website)
	p.Bio = trim(p.Bio)
	if p.Email != nil {
		e := validation.NormalizeEmail(*p.Email)
		p.Email = &e
	}

	if p.Username != nil {
		if err := validation.ValidateUsername(*p.Username); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	if p.Email != nil {
		if err := validation.ValidateEmail(*p.Email); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	if p.Name != nil {
		if *p.Name == "" {
			return models.NewValidationError("name must not be empty")
		}
		if err := validation.ValidateProfileText("name", *p.Name, maxNameLen); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	if p.Bio != nil {
		if err := validation.ValidateProfileText("bio", *p.Bio, maxBioLen); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	if p.Location != nil {
		if err := validation.ValidateProfileText("location", *p.Location, maxLocationLen); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	if p.Website != nil {
		if err := validation.ValidateWebsite(*p.Website); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	return nil
}

// UploadAvatar validates the image before anything is stored, then records
// its URL on the user.
func (s *UserService) UploadAvatar(ctx context.Context, actorID, targetID uint, file storage.File) (*models.User, error) {
	if actorID != targetID {
		return nil, models.NewForbiddenError("Can only update own avatar")
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return nil, err
	}

	media, err := storage.ValidateAvatar(file)
	if err != nil {
		return nil, err
	}
	url, err := s.uploader.Store(ctx, storage.PurposeAvatar, media)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateAvatar(ctx, targetID, url); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}
