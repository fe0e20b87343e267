package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/nexuschat/server/internal/auth"
	"github.com/nexuschat/server/internal/store"
)

// HealthHandler reports that the server is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat server is running!")
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	role := store.RoleUser
	if req.Role == string(store.RoleAdmin) {
		role = store.RoleAdmin
	}

	userID, err := a.auth.Register(req.Username, req.Password, role)
	if err != nil {
		writeError(w, http.StatusBadRequest, registerErrorMessage(err))
		return
	}

	if a.archive != nil {
		if user, ok := a.store.UserByID(userID); ok {
			if err := a.archive.SaveUser(r.Context(), user); err != nil {
				log.Printf("Failed to archive user %d: %v", userID, err)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"user_id":  userID,
		"username": req.Username,
		"role":     string(role),
	})
}

func registerErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidUsername):
		return "Username must be between 3 and 49 characters"
	case errors.Is(err, auth.ErrInvalidPassword):
		return "Password must be between 6 and 63 characters"
	case errors.Is(err, store.ErrUserExists):
		return "Username already taken"
	case errors.Is(err, store.ErrStoreFull):
		return "User capacity reached"
	default:
		return "Registration failed"
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	user, token, err := a.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"user_id":  user.ID,
		"username": user.Name,
		"role":     string(user.Role),
		"token":    token,
	})
}

type roomSummary struct {
	RoomID    int    `json:"room_id"`
	RoomName  string `json:"room_name"`
	UserCount int    `json:"user_count"`
}

func (a *API) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	rooms := a.store.AllRooms()

	summaries := make([]roomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, roomSummary{
			RoomID:    room.ID,
			RoomName:  room.Name,
			UserCount: len(room.Members),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"rooms":  summaries,
	})
}

type createRoomRequest struct {
	RoomName  string `json:"room_name"`
	UserID    int    `json:"user_id"`
	CreatedBy int    `json:"created_by"`
}

func (a *API) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	creator := req.UserID
	if creator == 0 {
		creator = req.CreatedBy
	}
	if req.RoomName == "" || creator <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid request - missing room_name or user_id/created_by")
		return
	}

	roomID, err := a.store.CreateRoom(req.RoomName, creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to create room")
		return
	}

	// The creator joins their own room immediately.
	if err := a.store.AddUserToRoom(roomID, creator); err != nil {
		log.Printf("Failed to add creator %d to room %d: %v", creator, roomID, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"room_id":   roomID,
		"room_name": req.RoomName,
	})
}

type joinRoomRequest struct {
	UserID int `json:"user_id"`
}

func (a *API) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || roomID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid room ID")
		return
	}

	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "Missing user_id")
		return
	}

	if err := a.store.AddUserToRoom(roomID, req.UserID); err != nil {
		status, message, code := joinErrorResponse(roomID, err)
		writeErrorCode(w, status, message, code)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"room_id": roomID,
		"user_id": req.UserID,
		"message": "Joined room",
	})
}

// joinErrorResponse maps the store's distinct join failures onto the legacy
// error codes so clients can render distinct messages.
func joinErrorResponse(roomID int, err error) (status int, message string, code int) {
	switch {
	case errors.Is(err, store.ErrRoomFull):
		return http.StatusBadRequest, "Room is full", -1
	case errors.Is(err, store.ErrAlreadyMember):
		return http.StatusBadRequest, "User already in room", -2
	case errors.Is(err, store.ErrRoomNotFound):
		return http.StatusBadRequest, fmt.Sprintf("Room not found (ID: %d)", roomID), -3
	default:
		return http.StatusBadRequest, "Failed to join room", 0
	}
}

type roomUser struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

func (a *API) handleRoomUsers(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || roomID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid room ID")
		return
	}

	members, err := a.store.RoomMembers(roomID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Room not found (ID: %d)", roomID))
		return
	}

	users := make([]roomUser, 0, len(members))
	for _, id := range members {
		if u, ok := a.store.UserByID(id); ok {
			users = append(users, roomUser{UserID: u.ID, Username: u.Name, Online: u.Online})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"room_id": roomID,
		"users":   users,
	})
}

type sendMessageRequest struct {
	UserID  int    `json:"user_id"`
	RoomID  int    `json:"room_id"`
	Message string `json:"message"`
}

// broadcastPayload is the JSON relayed verbatim to WebSocket clients; the
// registry treats it as an opaque byte string.
type broadcastPayload struct {
	Type      string `json:"type"`
	MessageID int    `json:"message_id"`
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	RoomID    int    `json:"room_id"`
}

func (a *API) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.Message == "" || req.UserID <= 0 || req.RoomID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid request - missing message, user_id, or room_id")
		return
	}

	user, ok := a.store.UserByID(req.UserID)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	messageID, err := a.store.CreateMessage(req.UserID, req.RoomID, user.Name, req.Message)
	if err != nil {
		if errors.Is(err, store.ErrValueTooLong) {
			writeError(w, http.StatusBadRequest, "Message too long")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to store message")
		return
	}

	if a.archive != nil {
		msg := store.Message{
			ID:         messageID,
			SenderID:   req.UserID,
			RoomID:     req.RoomID,
			SenderName: user.Name,
			Content:    req.Message,
			CreatedAt:  time.Now(),
		}
		if err := a.archive.SaveMessage(r.Context(), msg); err != nil {
			log.Printf("Failed to archive message %d: %v", messageID, err)
		}
	}

	payload, err := json.Marshal(broadcastPayload{
		Type:      "message",
		MessageID: messageID,
		UserID:    req.UserID,
		Username:  user.Name,
		Content:   req.Message,
		RoomID:    req.RoomID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode message")
		return
	}

	sent := a.reg.BroadcastToRoom(req.RoomID, payload)
	log.Printf("Message %d broadcast to %d connections in room %d", messageID, sent, req.RoomID)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"message_id": messageID,
		"recipients": sent,
		"message":    "Message sent successfully",
	})
}

type messageView struct {
	MessageID  int       `json:"message_id"`
	SenderID   int       `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a *API) handleRoomMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || roomID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid room ID")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	messages := a.store.RoomMessages(roomID, limit)
	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, messageView{
			MessageID:  m.ID,
			SenderID:   m.SenderID,
			SenderName: m.SenderName,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"room_id":  roomID,
		"messages": views,
	})
}
