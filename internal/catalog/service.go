// Package catalog maps opaque media identifiers to playable URLs.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/stwalsh4118/playerctl/internal/db"
	"github.com/stwalsh4118/playerctl/internal/logger"
	"github.com/stwalsh4118/playerctl/internal/models"
	"github.com/stwalsh4118/playerctl/internal/player"
)

// Entry is the input for adding a catalog entry
type Entry struct {
	Identifier string `json:"identifier" binding:"required"`
	Title      string `json:"title"`
	URL        string `json:"url" binding:"required"`
}

// Service handles catalog operations. It is the controller data source.
type Service struct {
	repos *db.Repositories
}

var _ player.DataSource = (*Service)(nil)

// NewService creates a new catalog service
func NewService(repos *db.Repositories) *Service {
	return &Service{repos: repos}
}

// Add validates and stores a new entry
func (s *Service) Add(ctx context.Context, e Entry) (*models.MediaItem, error) {
	item, err := newItem(e)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Media.Create(ctx, item); err != nil {
		return nil, mapRepoError(err, e.Identifier)
	}

	logger.Log.Info().
		Str("media_id", item.ID.String()).
		Str("identifier", item.Identifier).
		Msg("Catalog entry added")
	return item, nil
}

// Import stores all entries or none
func (s *Service) Import(ctx context.Context, entries []Entry) ([]*models.MediaItem, error) {
	items := make([]*models.MediaItem, 0, len(entries))
	for _, e := range entries {
		item, err := newItem(e)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Identifier, err)
		}
		items = append(items, item)
	}

	if err := s.repos.Media.CreateBatch(ctx, items); err != nil {
		return nil, mapRepoError(err, "")
	}

	logger.Log.Info().Int("count", len(items)).Msg("Catalog entries imported")
	return items, nil
}

// Get retrieves an entry by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.MediaItem, error) {
	item, err := s.repos.Media.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id.String())
	}
	return item, nil
}

// List returns a page of entries and the total count
func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.MediaItem, int64, error) {
	items, err := s.repos.Media.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repos.Media.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update is a partial change to an entry; nil fields are kept
type Update struct {
	Title *string `json:"title,omitempty"`
	URL   *string `json:"url,omitempty"`
}

// Update changes the title or URL of an entry. The identifier is immutable.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u Update) (*models.MediaItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Title != nil {
		item.Title = strings.TrimSpace(*u.Title)
	}
	if u.URL != nil {
		if err := validateURL(*u.URL); err != nil {
			return nil, err
		}
		item.URL = *u.URL
	}

	if err := s.repos.Media.Update(ctx, item); err != nil {
		return nil, mapRepoError(err, id.String())
	}

	logger.Log.Info().
		Str("media_id", item.ID.String()).
		Str("identifier", item.Identifier).
		Msg("Catalog entry updated")
	return item, nil
}

// Delete removes an entry by ID
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repos.Media.Delete(ctx, id); err != nil {
		return mapRepoError(err, id.String())
	}
	logger.Log.Info().Str("media_id", id.String()).Msg("Catalog entry deleted")
	return nil
}

// ResolveURL returns the URL stored for identifier. Entry IDs are accepted as
// identifiers too.
func (s *Service) ResolveURL(ctx context.Context, identifier string) (string, error) {
	item, err := s.repos.Media.GetByIdentifier(ctx, identifier)
	if db.IsNotFound(err) {
		if id, perr := uuid.Parse(identifier); perr == nil {
			item, err = s.repos.Media.GetByID(ctx, id)
		}
	}
	if err != nil {
		return "", mapRepoError(err, identifier)
	}

	logger.Log.Debug().
		Str("identifier", identifier).
		Str("url", item.URL).
		Msg("Media identifier resolved")
	return item.URL, nil
}

func newItem(e Entry) (*models.MediaItem, error) {
	identifier := strings.TrimSpace(e.Identifier)
	if identifier == "" {
		return nil, ErrEmptyIdentifier
	}
	if err := validateURL(e.URL); err != nil {
		return nil, err
	}
	return models.NewMediaItem(identifier, strings.TrimSpace(e.Title), e.URL), nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch {
	case u.Scheme == "" && filepath.IsAbs(raw):
		return nil
	case u.Scheme == "file" && u.Path != "":
		return nil
	case u.Scheme != "" && u.Host != "":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
}

func mapRepoError(err error, identifier string) error {
	switch {
	case db.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrUnknownIdentifier, identifier)
	case db.IsDuplicate(err):
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, identifier)
	default:
		return err
	}
}
