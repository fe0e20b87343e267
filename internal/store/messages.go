package store

import (
	"log"
	"slices"
	"time"
)

// CreateMessage appends a message to the log and returns its assigned
// identifier. The log is capacity-bounded; once full, further writes are
// rejected rather than evicting older entries.
func (s *Store) CreateMessage(senderID, roomID int, senderName, content string) (int, error) {
	if len(content) > MaxContentLen {
		return 0, ErrValueTooLong
	}

	s.messagesMu.Lock()
	defer s.messagesMu.Unlock()

	if len(s.messages) >= s.limits.MaxMessages {
		return 0, ErrStoreFull
	}

	id := s.nextMessageID
	s.nextMessageID++

	s.messages = append(s.messages, Message{
		ID:         id,
		SenderID:   senderID,
		RoomID:     roomID,
		SenderName: senderName,
		Content:    content,
		CreatedAt:  time.Now(),
	})

	log.Printf("Message created (ID: %d, Sender: %s, Room: %d)", id, senderName, roomID)
	return id, nil
}

// RoomMessages returns the most recent limit messages for a room in
// chronological order, oldest of the returned window first. A limit of zero
// or below means unbounded.
func (s *Store) RoomMessages(roomID, limit int) []Message {
	s.messagesMu.Lock()
	defer s.messagesMu.Unlock()

	var out []Message
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return slices.Clone(out)
}

// AllMessages returns an independent snapshot of the whole message log.
func (s *Store) AllMessages() []Message {
	s.messagesMu.Lock()
	defer s.messagesMu.Unlock()
	return slices.Clone(s.messages)
}
