package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/i474232898/user-weather-hub/internal/common"
	"github.com/i474232898/user-weather-hub/internal/observability"
)

var (
	// ErrInvalidUser wraps validation failures of a registration payload.
	ErrInvalidUser = errors.New("invalid user")
	// ErrInvalidThreshold is returned for a negative duplicate threshold.
	ErrInvalidThreshold = errors.New("threshold must not be negative")
)

// Repository is the persistence contract for users.
type Repository interface {
	Create(ctx context.Context, u NewUser) (User, error)
	ListByCountry(ctx context.Context, country string) ([]User, error)
	CountByName(ctx context.Context, activeOnly bool) ([]NameCount, error)
}

// EventPublisher announces user lifecycle events to other systems.
type EventPublisher interface {
	PublishUserCreated(ctx context.Context, u User) error
}

// Service implements user registration and lookups.
type Service struct {
	repo     Repository
	events   EventPublisher
	validate *validator.Validate
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(repo Repository, events EventPublisher, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		events:   events,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  metrics,
		logger:   logger,
	}
}

// Register validates and stores a new user, then publishes a user.created event.
// A failed publish is logged and does not fail the registration.
func (s *Service) Register(ctx context.Context, in NewUser) (User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.Country = strings.TrimSpace(in.Country)

	if err := s.validate.Struct(in); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}

	u, err := s.repo.Create(ctx, in)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	s.metrics.UsersCreated.Inc()
	s.logger.Info("user registered", zap.Int64("id", u.ID), zap.String("country", u.Country))

	if err := s.events.PublishUserCreated(ctx, u); err != nil {
		s.metrics.EventsPublished.WithLabelValues("error").Inc()
		s.logger.Warn("publish user.created failed", zap.Int64("id", u.ID), zap.Error(err))
	} else {
		s.metrics.EventsPublished.WithLabelValues("success").Inc()
	}

	return u, nil
}

// ByCountry lists users whose country matches exactly. An empty country lists everyone.
func (s *Service) ByCountry(ctx context.Context, country string) ([]User, error) {
	list, err := s.repo.ListByCountry(ctx, strings.TrimSpace(country))
	if err != nil {
		return nil, fmt.Errorf("list users by country: %w", err)
	}
	if list == nil {
		list = []User{}
	}
	return list, nil
}

// Duplicates reports names shared by more than threshold users.
//
// Exact (first, last) groups are merged case-insensitively before the threshold
// is applied, so "john smith" and "John Smith" count towards the same total.
func (s *Service) Duplicates(ctx context.Context, threshold int, activeOnly bool) ([]Duplicate, error) {
	if threshold < 0 {
		return nil, ErrInvalidThreshold
	}

	groups, err := s.repo.CountByName(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("count users by name: %w", err)
	}

	return MergeDuplicates(groups, threshold), nil
}

// MergeDuplicates folds exact name groups into lower-cased keys, keeps the ones
// whose total exceeds threshold and title-cases the key for display.
// Results are ordered by count descending, then name.
func MergeDuplicates(groups []NameCount, threshold int) []Duplicate {
	totals := make(map[string]int, len(groups))
	for _, g := range groups {
		key := strings.ToLower(g.FirstName) + " " + strings.ToLower(g.LastName)
		totals[key] += g.Count
	}

	out := make([]Duplicate, 0)
	for key, total := range totals {
		if total > threshold {
			out = append(out, Duplicate{Name: common.TitleWords(key), Count: total})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
