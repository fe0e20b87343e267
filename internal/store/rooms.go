package store

import (
	"log"
	"slices"
	"time"
)

// CreateRoom inserts a new room and returns its assigned identifier.
func (s *Store) CreateRoom(name string, createdBy int) (int, error) {
	if len(name) > MaxRoomNameLen {
		return 0, ErrValueTooLong
	}

	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	if len(s.roomIDs) >= s.limits.MaxRooms {
		return 0, ErrStoreFull
	}

	id := s.nextRoomID
	s.nextRoomID++

	s.rooms[id] = &Room{
		ID:        id,
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		Active:    true,
	}
	s.roomIDs = append(s.roomIDs, id)

	log.Printf("Room created: %s (ID: %d, Creator: %d)", name, id, createdBy)
	return id, nil
}

// RoomByID returns a copy of the room with the given identifier, including a
// copy of its member list.
func (s *Store) RoomByID(id int) (Room, bool) {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return Room{}, false
	}
	return copyRoom(r), true
}

// AddUserToRoom appends a user to a room's member list. It fails with
// ErrRoomNotFound, ErrRoomFull, or ErrAlreadyMember as distinct errors so
// callers can render distinct responses.
func (s *Store) AddUserToRoom(roomID, userID int) error {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if len(r.Members) >= s.limits.MaxRoomMembers {
		return ErrRoomFull
	}
	if slices.Contains(r.Members, userID) {
		return ErrAlreadyMember
	}

	r.Members = append(r.Members, userID)
	log.Printf("User %d added to room %d", userID, roomID)
	return nil
}

// RemoveUserFromRoom removes a user from a room's member list, preserving the
// order of the remaining members. It is a no-op when the room or member is
// absent.
func (s *Store) RemoveUserFromRoom(roomID, userID int) {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return
	}
	idx := slices.Index(r.Members, userID)
	if idx < 0 {
		return
	}

	r.Members = slices.Delete(r.Members, idx, idx+1)
	log.Printf("User %d removed from room %d", userID, roomID)
}

// RoomMembers returns a copy of a room's member list.
func (s *Store) RoomMembers(roomID int) ([]int, error) {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return slices.Clone(r.Members), nil
}

// AllRooms returns an independent snapshot of every room in creation order.
func (s *Store) AllRooms() []Room {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	rooms := make([]Room, 0, len(s.roomIDs))
	for _, id := range s.roomIDs {
		rooms = append(rooms, copyRoom(s.rooms[id]))
	}
	return rooms
}

func copyRoom(r *Room) Room {
	out := *r
	out.Members = slices.Clone(r.Members)
	return out
}
