package users

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"carpool-service/internal/events"
	"carpool-service/internal/rides"
	"carpool-service/pkg/jwt"
	"carpool-service/pkg/kafka"
	"carpool-service/pkg/validation"
)

// RideLister loads the rides shown on a profile.
type RideLister interface {
	ListCreatedBy(ctx context.Context, userID string) ([]rides.Ride, error)
	ListJoinedBy(ctx context.Context, userID string) ([]rides.Ride, error)
}

// Service contains user business logic.
type Service struct {
	db     *pgxpool.Pool
	rides  RideLister
	events kafka.Publisher
}

// NewService creates a user service backed by the given pool.
func NewService(db *pgxpool.Pool, rides RideLister, events kafka.Publisher) *Service {
	return &Service{db: db, rides: rides, events: events}
}

// Register creates a new account and returns a JWT.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	switch {
	case !validation.ValidateName(req.Name):
		return nil, invalid("name must be between 2 and 200 characters")
	case !validation.ValidateEmail(email):
		return nil, invalid("invalid email")
	case !validation.ValidatePassword(req.Password):
		return nil, invalid("password must be between 6 and 100 characters")
	}

	var exists bool
	if err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email=$1)", email).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	name := strings.TrimSpace(req.Name)
	_, err = s.db.Exec(ctx,
		`INSERT INTO users (id,name,email,password_hash) VALUES ($1,$2,$3,$4)`,
		id, name, email, string(hash))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	token, err := jwt.Generate(id, email)
	if err != nil {
		return nil, err
	}

	logrus.WithField("user_id", id).Info("user registered")
	trust := 50.0
	return &AuthResponse{
		Token: token,
		User: &User{
			ID: id, Name: name, Email: email, TrustScore: &trust,
			Ratings: []Rating{}, RidesCreated: []rides.Ride{}, RidesJoined: []rides.Ride{},
			CreatedAt: time.Now().UTC(),
		},
	}, nil
}

// Login authenticates a user and returns a JWT.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var id, hash string
	email := strings.ToLower(strings.TrimSpace(req.Email))
	err := s.db.QueryRow(ctx,
		`SELECT id::text, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := jwt.Generate(id, email)
	if err != nil {
		return nil, err
	}
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: u}, nil
}

// GetByID fetches the full profile document including ratings and rides.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var u User
	err := s.db.QueryRow(ctx,
		`SELECT id::text, name, email, age, profile_picture, bio, music, smoking, pet_friendly,
		        trust_score, created_at
		 FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Age, &u.ProfilePicture,
			&u.Profile.Bio, &u.Profile.Preferences.Music, &u.Profile.Preferences.Smoking,
			&u.Profile.Preferences.PetFriendly, &u.TrustScore, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if u.Ratings, err = s.ratings(ctx, id); err != nil {
		return nil, err
	}
	u.Stars = averageStars(u.Ratings)

	if u.RidesCreated, err = s.rides.ListCreatedBy(ctx, id); err != nil {
		return nil, fmt.Errorf("load rides created: %w", err)
	}
	if u.RidesJoined, err = s.rides.ListJoinedBy(ctx, id); err != nil {
		return nil, fmt.Errorf("load rides joined: %w", err)
	}
	return &u, nil
}

// Update applies a partial update and returns the refreshed document.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	set, args, fields := buildUpdate(req)
	if len(fields) == 0 {
		return nil, invalid("no fields to update")
	}
	args = append(args, id)

	tag, err := s.db.Exec(ctx,
		`UPDATE users SET `+set+`, updated_at=NOW() WHERE id=$`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	logrus.WithFields(logrus.Fields{"user_id": id, "fields": fields}).Info("profile updated")
	s.publish(kafka.TopicProfileUpdated, id, events.ProfileUpdatedEvent{
		UserID:    id,
		Fields:    fields,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return s.GetByID(ctx, id)
}

func (s *Service) ratings(ctx context.Context, userID string) ([]Rating, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id::text, rater_id::text, score, comment, created_at
		 FROM ratings WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	defer rows.Close()

	list := []Rating{}
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.ID, &r.RaterID, &r.Score, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

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

// buildUpdate turns the present fields of req into a SET clause with
// positional arguments, in a fixed column order.
func buildUpdate(req UpdateRequest) (string, []any, []string) {
	type column struct {
		name  string
		field string
		value any
	}
	var cols []column

	if req.Name != nil {
		cols = append(cols, column{"name", "name", strings.TrimSpace(*req.Name)})
	}
	if req.Age != nil {
		cols = append(cols, column{"age", "age", *req.Age})
	}
	if req.ProfilePicture != nil {
		cols = append(cols, column{"profile_picture", "profilePicture", *req.ProfilePicture})
	}
	if p := req.Profile; p != nil {
		if p.Bio != nil {
			cols = append(cols, column{"bio", "profile.bio", *p.Bio})
		}
		if pref := p.Preferences; pref != nil {
			if pref.Music != nil {
				cols = append(cols, column{"music", "profile.preferences.music", *pref.Music})
			}
			if pref.Smoking != nil {
				cols = append(cols, column{"smoking", "profile.preferences.smoking", *pref.Smoking})
			}
			if pref.PetFriendly != nil {
				cols = append(cols, column{"pet_friendly", "profile.preferences.petFriendly", *pref.PetFriendly})
			}
		}
	}

	parts := make([]string, len(cols))
	args := make([]any, len(cols))
	fields := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.name + "=$" + strconv.Itoa(i+1)
		args[i] = c.value
		fields[i] = c.field
	}
	return strings.Join(parts, ", "), args, fields
}

func averageStars(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Score
	}
	return math.Round(float64(sum)/float64(len(ratings))*10) / 10
}
