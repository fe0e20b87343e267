// Package store holds the in-memory tables for users, rooms, and messages.
// Each table is guarded by its own mutex, so operations on one table never
// block operations on another. All identifiers are unique and strictly
// increasing within their table, and every read returns independent copies.
package store

import (
	"errors"
	"sync"
	"time"
)

// Role is a user's permission level.
type Role string

// Supported roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Table capacity and length defaults.
const (
	DefaultMaxUsers       = 1000
	DefaultMaxRooms       = 100
	DefaultMaxMessages    = 10000
	DefaultMaxRoomMembers = 50

	MaxUserNameLen = 49
	MaxRoomNameLen = 99
	MaxContentLen  = 1023
)

var (
	// ErrStoreFull signals that the targeted table is at capacity.
	ErrStoreFull = errors.New("store: table is full")

	// ErrUserExists signals a duplicate username at registration time.
	ErrUserExists = errors.New("store: username already taken")

	// ErrUserNotFound signals an unknown user identifier.
	ErrUserNotFound = errors.New("store: user not found")

	// ErrRoomNotFound signals an unknown room identifier.
	ErrRoomNotFound = errors.New("store: room not found")

	// ErrRoomFull signals a room at its member capacity.
	ErrRoomFull = errors.New("store: room is full")

	// ErrAlreadyMember signals a duplicate join attempt.
	ErrAlreadyMember = errors.New("store: user already in room")

	// ErrValueTooLong signals a name or content above its length bound.
	// Over-long values are rejected, never truncated.
	ErrValueTooLong = errors.New("store: value exceeds length bound")
)

// User is a registered account.
type User struct {
	ID            int
	Name          string
	PasswordHash  string
	Role          Role
	CurrentRoomID int
	CreatedAt     time.Time
	Active        bool
	Online        bool
}

// Room is a chat room with a bounded ordered member list.
type Room struct {
	ID        int
	Name      string
	CreatedBy int
	Members   []int
	CreatedAt time.Time
	Active    bool
}

// Message is one immutable chat message. The sender name is denormalized at
// write time so history survives later renames.
type Message struct {
	ID         int
	SenderID   int
	RoomID     int
	SenderName string
	Content    string
	CreatedAt  time.Time
}

// Limits configures table capacities. Zero values fall back to the defaults.
type Limits struct {
	MaxUsers       int
	MaxRooms       int
	MaxMessages    int
	MaxRoomMembers int
}

func (l Limits) withDefaults() Limits {
	if l.MaxUsers <= 0 {
		l.MaxUsers = DefaultMaxUsers
	}
	if l.MaxRooms <= 0 {
		l.MaxRooms = DefaultMaxRooms
	}
	if l.MaxMessages <= 0 {
		l.MaxMessages = DefaultMaxMessages
	}
	if l.MaxRoomMembers <= 0 {
		l.MaxRoomMembers = DefaultMaxRoomMembers
	}
	return l
}

// Stats is a point-in-time snapshot of table occupancy.
type Stats struct {
	Users    int
	Rooms    int
	Messages int
}

// Store owns the three tables. The zero value is not usable; construct with
// New.
type Store struct {
	limits Limits

	usersMu     sync.Mutex
	users       map[int]*User
	userIDs     []int
	usersByName map[string]int
	nextUserID  int

	roomsMu    sync.Mutex
	rooms      map[int]*Room
	roomIDs    []int
	nextRoomID int

	messagesMu    sync.Mutex
	messages      []Message
	nextMessageID int
}

// New creates an empty store with the given limits.
func New(limits Limits) *Store {
	return &Store{
		limits:        limits.withDefaults(),
		users:         make(map[int]*User),
		usersByName:   make(map[string]int),
		rooms:         make(map[int]*Room),
		nextUserID:    1,
		nextRoomID:    1,
		nextMessageID: 1,
	}
}

// Limits returns the configured table capacities.
func (s *Store) Limits() Limits {
	return s.limits
}

// Stats returns the current table occupancy.
func (s *Store) Stats() Stats {
	var st Stats

	s.usersMu.Lock()
	st.Users = len(s.userIDs)
	s.usersMu.Unlock()

	s.roomsMu.Lock()
	st.Rooms = len(s.roomIDs)
	s.roomsMu.Unlock()

	s.messagesMu.Lock()
	st.Messages = len(s.messages)
	s.messagesMu.Unlock()

	return st
}
