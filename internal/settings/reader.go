package settings

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
)

// Store is the persistence the reader and handler need.
type Store interface {
	List(ctx context.Context) ([]models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key, value string) (*models.Setting, error)
}

// Defaults are used when a key is missing or unparsable.
type Defaults struct {
	CutoffHours              int
	ConfirmationEnabled      bool
	CancellationEnabled      bool
	IndividualRequestEnabled bool
}

// Reader resolves typed settings with fallbacks. Values are read from the
// store on every call.
type Reader struct {
	store    Store
	defaults Defaults
	logger   *zap.Logger
}

// NewReader creates a settings reader.
func NewReader(store Store, defaults Defaults, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.CutoffHours < 0 {
		defaults.CutoffHours = models.DefaultCancellationCutoffHours
	}
	return &Reader{store: store, defaults: defaults, logger: logger}
}

// CutoffHours returns the cancellation cutoff, falling back to the default
// when the setting is missing, unreadable or invalid.
func (r *Reader) CutoffHours(ctx context.Context) int {
	s, err := r.store.Get(ctx, models.SettingCancellationCutoffHours)
	if err != nil {
		if apperr.KindOf(err) != apperr.ErrNotFound {
			r.logger.Warn("read cutoff setting failed", zap.Error(err))
		}
		return r.defaults.CutoffHours
	}
	n, err := strconv.Atoi(strings.TrimSpace(s.Value))
	if err != nil || n < 0 {
		return r.defaults.CutoffHours
	}
	return n
}

// EmailEnabled reports whether the email kind identified by its setting key
// is switched on.
func (r *Reader) EmailEnabled(ctx context.Context, key string) bool {
	fallback := r.defaultFlag(key)
	s, err := r.store.Get(ctx, key)
	if err != nil {
		if apperr.KindOf(err) != apperr.ErrNotFound {
			r.logger.Warn("read email setting failed", zap.String("key", key), zap.Error(err))
		}
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s.Value))
	if err != nil {
		return fallback
	}
	return b
}

func (r *Reader) defaultFlag(key string) bool {
	switch key {
	case models.SettingEmailConfirmationEnabled:
		return r.defaults.ConfirmationEnabled
	case models.SettingEmailCancellationEnabled:
		return r.defaults.CancellationEnabled
	case models.SettingEmailIndividualRequestEnabled:
		return r.defaults.IndividualRequestEnabled
	}
	return false
}

// Validate checks a value for a known key. Unknown keys are accepted as free text.
func Validate(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case models.SettingCancellationCutoffHours:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return apperr.Validation("invalid setting", apperr.Field("value", "must be a whole number of hours, 0 or more"))
		}
	case models.SettingEmailConfirmationEnabled,
		models.SettingEmailCancellationEnabled,
		models.SettingEmailIndividualRequestEnabled:
		if value != "true" && value != "false" {
			return apperr.Validation("invalid setting", apperr.Field("value", "must be true or false"))
		}
	}
	return nil
}
