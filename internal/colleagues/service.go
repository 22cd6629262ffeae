package colleagues

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/storage"
	"github.com/groeigesprek/backend/pkg/validate"
)

// Store is the colleague persistence used by the service.
type Store interface {
	List(ctx context.Context, f ListFilter) ([]models.Colleague, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Colleague, error)
	Create(ctx context.Context, c *models.Colleague) error
	Update(ctx context.Context, c *models.Colleague) error
	Delete(ctx context.Context, id uuid.UUID) (*string, error)
	SetPhoto(ctx context.Context, id uuid.UUID, url, key string) (*string, error)
}

// PhotoStore keeps colleague photos in object storage.
type PhotoStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// ErrPhotosDisabled is returned by UploadPhoto when no photo storage is configured.
var ErrPhotosDisabled = errors.New("photo storage is not configured")

// Input is the create/update body for a colleague.
type Input struct {
	Name                     string  `json:"name" validate:"required,min=2,max=200"`
	Email                    string  `json:"email" validate:"required,email,max=254"`
	Function                 *string `json:"function" validate:"omitempty,max=200"`
	IsActive                 *bool   `json:"is_active"`
	AvailableForSpelwerkvorm bool    `json:"available_for_spelwerkvorm"`
}

func (in *Input) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Function != nil {
		f := strings.TrimSpace(*in.Function)
		if f == "" {
			in.Function = nil
		} else {
			in.Function = &f
		}
	}
}

// PhotoResult describes a stored photo.
type PhotoResult struct {
	URL    string `json:"photo_url"`
	Key    string `json:"photo_key"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Service manages colleagues and their photos.
type Service struct {
	store  Store
	photos PhotoStore
	logger *zap.Logger
}

// NewService creates a colleague service. photos may be nil.
func NewService(store Store, photos PhotoStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, photos: photos, logger: logger}
}

// PhotosEnabled reports whether uploads are possible.
func (s *Service) PhotosEnabled() bool { return s.photos != nil }

// ListPublic returns active colleagues without contact details.
func (s *Service) ListPublic(ctx context.Context, spelwerkvormOnly bool) ([]models.ColleaguePublic, error) {
	list, err := s.store.List(ctx, ListFilter{ActiveOnly: true, SpelwerkvormOnly: spelwerkvormOnly})
	if err != nil {
		return nil, err
	}
	out := make([]models.ColleaguePublic, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToPublic())
	}
	return out, nil
}

// List returns all colleagues.
func (s *Service) List(ctx context.Context) ([]models.Colleague, error) {
	return s.store.List(ctx, ListFilter{})
}

// Get returns a colleague by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Colleague, error) {
	c, err := s.store.GetByID(ctx, id)
	return c, apperr.FromStore(err, "colleague not found")
}

// GetActive returns a colleague that accepts requests.
func (s *Service) GetActive(ctx context.Context, id uuid.UUID) (*models.Colleague, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, apperr.NotFound("colleague not found or not available")
	}
	return c, nil
}

// Create validates and stores a colleague. New colleagues are active unless
// is_active is false.
func (s *Service) Create(ctx context.Context, in Input) (*models.Colleague, error) {
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	c := &models.Colleague{
		Name:                     in.Name,
		Email:                    in.Email,
		Function:                 in.Function,
		IsActive:                 in.IsActive == nil || *in.IsActive,
		AvailableForSpelwerkvorm: in.AvailableForSpelwerkvorm,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update validates and replaces a colleague's fields. An omitted is_active
// keeps the current value.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*models.Colleague, error) {
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	current.Name = in.Name
	current.Email = in.Email
	current.Function = in.Function
	current.AvailableForSpelwerkvorm = in.AvailableForSpelwerkvorm
	if in.IsActive != nil {
		current.IsActive = *in.IsActive
	}
	if err := s.store.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Delete removes a colleague and their stored photo.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	key, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.removePhoto(ctx, key)
	s.logger.Info("colleague deleted", zap.String("colleague_id", id.String()))
	return nil
}

// UploadPhoto resizes an uploaded image, stores it and replaces the
// colleague's current photo.
func (s *Service) UploadPhoto(ctx context.Context, id uuid.UUID, r io.Reader, contentType, filename string) (*PhotoResult, error) {
	if s.photos == nil {
		return nil, ErrPhotosDisabled
	}
	if !storage.ValidatePhotoType(contentType, filename) {
		return nil, apperr.Validation("invalid file", apperr.Field("file", storage.ErrUnsupportedPhoto.Error()))
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	photo, err := storage.ProcessPhoto(r)
	if err != nil {
		if errors.Is(err, storage.ErrPhotoTooLarge) || errors.Is(err, storage.ErrUnsupportedPhoto) {
			return nil, apperr.Validation("invalid file", apperr.Field("file", photoMessage(err)))
		}
		return nil, err
	}

	key := storage.ColleaguePhotoKey(id.String(), uuid.NewString(), photo.Ext)
	url, err := s.photos.Put(ctx, key, photo.ContentType, bytes.NewReader(photo.Data), int64(len(photo.Data)))
	if err != nil {
		return nil, err
	}
	previous, err := s.store.SetPhoto(ctx, id, url, key)
	if err != nil {
		s.removePhoto(ctx, &key)
		return nil, err
	}
	s.removePhoto(ctx, previous)
	return &PhotoResult{URL: url, Key: key, Width: photo.Width, Height: photo.Height}, nil
}

func (s *Service) removePhoto(ctx context.Context, key *string) {
	if s.photos == nil || key == nil || *key == "" {
		return
	}
	if err := s.photos.Delete(ctx, *key); err != nil {
		s.logger.Warn("delete colleague photo failed", zap.String("key", *key), zap.Error(err))
	}
}

func photoMessage(err error) string {
	if errors.Is(err, storage.ErrPhotoTooLarge) {
		return storage.ErrPhotoTooLarge.Error()
	}
	return storage.ErrUnsupportedPhoto.Error()
}
