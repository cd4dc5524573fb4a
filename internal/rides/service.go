package rides

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"carpool-service/internal/events"
	"carpool-service/pkg/kafka"
)

const rideSelect = `
	SELECT r.id::text, r.driver_id::text, u.name, r.origin, r.destination,
	       r.departure_at, r.seats, r.price, r.distance_km, r.created_at,
	       COALESCE(array_agg(p.user_id::text ORDER BY p.joined_at)
	                FILTER (WHERE p.user_id IS NOT NULL), '{}') AS passengers
	FROM rides r
	JOIN users u ON u.id = r.driver_id
	LEFT JOIN ride_passengers p ON p.ride_id = r.id`

const rideGroup = ` GROUP BY r.id, u.name`

// Service contains ride business logic.
type Service struct {
	db     *pgxpool.Pool
	events kafka.Publisher
}

// NewService creates a ride service.
func NewService(db *pgxpool.Pool, events kafka.Publisher) *Service {
	return &Service{db: db, events: events}
}

// Create publishes a new ride driven by driverID.
func (s *Service) Create(ctx context.Context, driverID string, req CreateRequest) (*Ride, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	_, err := s.db.Exec(ctx,
		`INSERT INTO rides (id,driver_id,origin,destination,departure_at,seats,price,distance_km)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		id, driverID, strings.TrimSpace(req.Origin), strings.TrimSpace(req.Destination),
		req.DepartureAt.UTC(), req.Seats, req.Price, req.DistanceKm)
	if err != nil {
		return nil, fmt.Errorf("insert ride: %w", err)
	}

	logrus.WithFields(logrus.Fields{"ride_id": id, "driver_id": driverID}).Info("ride created")
	return s.GetByID(ctx, id)
}

// GetByID fetches a ride with its passengers.
func (s *Service) GetByID(ctx context.Context, id string) (*Ride, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	list, err := s.query(ctx, rideSelect+` WHERE r.id=$1`+rideGroup, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

// ListCreatedBy returns the rides published by userID, newest departure first.
func (s *Service) ListCreatedBy(ctx context.Context, userID string) ([]Ride, error) {
	return s.query(ctx, rideSelect+` WHERE r.driver_id=$1`+rideGroup+` ORDER BY r.departure_at DESC`, userID)
}

// ListJoinedBy returns the rides userID joined as a passenger, newest departure first.
func (s *Service) ListJoinedBy(ctx context.Context, userID string) ([]Ride, error) {
	return s.query(ctx, rideSelect+`
		WHERE r.id IN (SELECT ride_id FROM ride_passengers WHERE user_id=$1)`+
		rideGroup+` ORDER BY r.departure_at DESC`, userID)
}

// Join adds userID as a passenger.
func (s *Service) Join(ctx context.Context, rideID, userID string) (*Ride, error) {
	if _, err := uuid.Parse(rideID); err != nil {
		return nil, ErrNotFound
	}

	var driverID string
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var seats, taken int
		var joined bool
		err := tx.QueryRow(ctx,
			`SELECT driver_id::text, seats FROM rides WHERE id=$1 FOR UPDATE`, rideID).
			Scan(&driverID, &seats)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if driverID == userID {
			return ErrOwnRide
		}

		err = tx.QueryRow(ctx,
			`SELECT COUNT(*), COALESCE(bool_or(user_id=$2), false) FROM ride_passengers WHERE ride_id=$1`,
			rideID, userID).Scan(&taken, &joined)
		if err != nil {
			return err
		}
		if joined {
			return ErrAlreadyJoined
		}
		if taken >= seats {
			return ErrRideFull
		}

		_, err = tx.Exec(ctx, `INSERT INTO ride_passengers (ride_id,user_id) VALUES ($1,$2)`, rideID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	ride, err := s.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	s.publish(kafka.TopicRideJoined, rideID, events.RideJoinedEvent{
		RideID:       rideID,
		DriverID:     driverID,
		UserID:       userID,
		PassengerIDs: ride.Passengers,
		JoinedAt:     time.Now().UTC().Format(time.RFC3339),
	})
	return ride, nil
}

// Delete removes a ride. Only its creator may delete it.
func (s *Service) Delete(ctx context.Context, rideID, callerID string) error {
	ride, err := s.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.DriverID != callerID {
		return ErrForbidden
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM rides WHERE id=$1 AND driver_id=$2`, rideID, callerID)
	if err != nil {
		return fmt.Errorf("delete ride: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	logrus.WithFields(logrus.Fields{
		"ride_id":    rideID,
		"passengers": len(ride.Passengers),
	}).Info("ride deleted")

	s.publish(kafka.TopicRideDeleted, rideID, events.RideDeletedEvent{
		RideID:       rideID,
		DriverID:     ride.DriverID,
		PassengerIDs: ride.Passengers,
		Origin:       ride.Origin,
		Destination:  ride.Destination,
		DeletedAt:    time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

func (s *Service) query(ctx context.Context, sql string, args ...any) ([]Ride, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query rides: %w", err)
	}
	defer rows.Close()

	list := []Ride{}
	for rows.Next() {
		var r Ride
		if err := rows.Scan(&r.ID, &r.DriverID, &r.DriverName, &r.Origin, &r.Destination,
			&r.DepartureAt, &r.Seats, &r.Price, &r.DistanceKm, &r.CreatedAt, &r.Passengers); err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// publish sends an event without blocking the request.
func (s *Service) publish(topic, key string, ev any) {
	if s.events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.events.Publish(ctx, topic, key, ev); err != nil {
			logrus.WithError(err).WithField("topic", topic).Error("failed to publish event")
		}
	}()
}
