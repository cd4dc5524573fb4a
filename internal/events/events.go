package events

// RideDeletedEvent is published to ride.deleted.
type RideDeletedEvent struct {
	RideID       string   `json:"ride_id"`
	DriverID     string   `json:"driver_id"`
	PassengerIDs []string `json:"passenger_ids"`
	Origin       string   `json:"origin"`
	Destination  string   `json:"destination"`
	DeletedAt    string   `json:"deleted_at"`
}

// Participants returns the driver followed by every passenger.
func (e RideDeletedEvent) Participants() []string {
	return append([]string{e.DriverID}, e.PassengerIDs...)
}

// RideJoinedEvent is published to ride.joined.
type RideJoinedEvent struct {
	RideID       string   `json:"ride_id"`
	DriverID     string   `json:"driver_id"`
	UserID       string   `json:"user_id"`
	PassengerIDs []string `json:"passenger_ids"`
	JoinedAt     string   `json:"joined_at"`
}

// Participants returns the driver followed by every passenger after the join.
func (e RideJoinedEvent) Participants() []string {
	return append([]string{e.DriverID}, e.PassengerIDs...)
}

// ProfileUpdatedEvent is published to profile.updated.
type ProfileUpdatedEvent struct {
	UserID    string   `json:"user_id"`
	Fields    []string `json:"fields"`
	UpdatedAt string   `json:"updated_at"`
}
