package store

import (
	"log"
	"time"
)

// CreateUser inserts a new user and returns its assigned identifier. The
// username must be unique among active users and within the length bound;
// the password hash is stored opaquely.
func (s *Store) CreateUser(name, passwordHash string, role Role) (int, error) {
	if len(name) > MaxUserNameLen {
		return 0, ErrValueTooLong
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	if len(s.userIDs) >= s.limits.MaxUsers {
		return 0, ErrStoreFull
	}
	if _, exists := s.usersByName[name]; exists {
		return 0, ErrUserExists
	}

	id := s.nextUserID
	s.nextUserID++

	s.users[id] = &User{
		ID:           id,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
		Active:       true,
	}
	s.userIDs = append(s.userIDs, id)
	s.usersByName[name] = id

	log.Printf("User created: %s (ID: %d, Role: %s)", name, id, role)
	return id, nil
}

// UserByID returns a copy of the user with the given identifier.
func (s *Store) UserByID(id int) (User, bool) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// UserByName returns a copy of the user with the given name.
func (s *Store) UserByName(name string) (User, bool) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	id, ok := s.usersByName[name]
	if !ok {
		return User{}, false
	}
	return *s.users[id], true
}

// UserExists reports whether a user with the given name is registered.
func (s *Store) UserExists(name string) bool {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	_, ok := s.usersByName[name]
	return ok
}

// SetOnline updates a user's online flag.
func (s *Store) SetOnline(id int, online bool) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Online = online
	return nil
}

// SetCurrentRoom records the room a user most recently joined. Zero clears
// the reference.
func (s *Store) SetCurrentRoom(id, roomID int) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.CurrentRoomID = roomID
	return nil
}
