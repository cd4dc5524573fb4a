package carbon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"carpool-service/internal/events"
	"carpool-service/pkg/kafka"
	rredis "carpool-service/pkg/redis"
)

// CacheTTL bounds how stale a cached savings document may be.
const CacheTTL = 10 * time.Minute

// TripStore loads the trips a user took part in within [from, to].
type TripStore interface {
	ParticipatedTrips(ctx context.Context, userID string, from, to time.Time) ([]Trip, error)
}

// Cache stores encoded savings per user.
type Cache interface {
	CacheCarbonSavings(ctx context.Context, userID string, data []byte, ttl time.Duration) error
	GetCachedCarbonSavings(ctx context.Context, userID string) ([]byte, error)
	InvalidateCarbonSavings(ctx context.Context, userIDs ...string) error
}

// Subscriber is the read side of the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, groupID string, handler func([]byte) error)
}

// Service computes carbon savings with a read-through cache.
type Service struct {
	trips TripStore
	cache Cache
	now   func() time.Time
}

// NewService creates a carbon savings service. cache may be nil.
func NewService(trips TripStore, cache Cache) *Service {
	return &Service{trips: trips, cache: cache, now: time.Now}
}

// Savings returns the weekly and monthly savings of userID.
func (s *Service) Savings(ctx context.Context, userID string) (*Savings, error) {
	log := logrus.WithField("user_id", userID)

	if s.cache != nil {
		data, err := s.cache.GetCachedCarbonSavings(ctx, userID)
		if err == nil {
			var cached Savings
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, rredis.ErrMiss) {
			log.WithError(err).Warn("carbon cache read failed")
		}
	}

	now := s.now()
	trips, err := s.trips.ParticipatedTrips(ctx, userID, now.Add(-Month), now)
	if err != nil {
		return nil, fmt.Errorf("load trips: %w", err)
	}
	savings := Compute(now, trips)

	if s.cache != nil {
		data, _ := json.Marshal(savings)
		if err := s.cache.CacheCarbonSavings(ctx, userID, data, CacheTTL); err != nil {
			log.WithError(err).Warn("carbon cache write failed")
		}
	}
	return &savings, nil
}

// Invalidate drops cached savings of the given users.
func (s *Service) Invalidate(ctx context.Context, userIDs ...string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateCarbonSavings(ctx, userIDs...)
}

// StartInvalidationConsumer drops cached savings of every participant of a
// ride that was joined or deleted.
func (s *Service) StartInvalidationConsumer(ctx context.Context, sub Subscriber) {
	sub.Subscribe(ctx, kafka.TopicRideDeleted, "carbon-ride-deleted", func(data []byte) error {
		var ev events.RideDeletedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		return s.Invalidate(ctx, ev.Participants()...)
	})
	sub.Subscribe(ctx, kafka.TopicRideJoined, "carbon-ride-joined", func(data []byte) error {
		var ev events.RideJoinedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		return s.Invalidate(ctx, ev.Participants()...)
	})
}

// PGTripStore reads trips from Postgres.
type PGTripStore struct {
	db *pgxpool.Pool
}

// NewPGTripStore creates a Postgres-backed TripStore.
func NewPGTripStore(db *pgxpool.Pool) *PGTripStore {
	return &PGTripStore{db: db}
}

func (p *PGTripStore) ParticipatedTrips(ctx context.Context, userID string, from, to time.Time) ([]Trip, error) {
	rows, err := p.db.Query(ctx, `
		SELECT r.departure_at, r.distance_km,
		       1 + (SELECT COUNT(*) FROM ride_passengers p WHERE p.ride_id = r.id)
		FROM rides r
		WHERE (r.driver_id = $1 OR r.id IN (SELECT ride_id FROM ride_passengers WHERE user_id = $1))
		  AND r.departure_at > $2 AND r.departure_at <= $3`,
		userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		var t Trip
		if err := rows.Scan(&t.DepartureAt, &t.DistanceKm, &t.Occupants); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}
