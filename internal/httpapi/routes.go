package httpapi

import "net/http"

// Routes configures the HTTP ServeMux with all application routes.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("POST /api/register", a.handleRegister)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("GET /api/rooms", a.handleListRooms)
	mux.HandleFunc("POST /api/rooms/create", a.handleCreateRoom)
	mux.HandleFunc("POST /api/rooms/{id}/join", a.handleJoinRoom)
	mux.HandleFunc("GET /api/rooms/{id}/users", a.handleRoomUsers)
	mux.HandleFunc("POST /api/messages/send", a.handleSendMessage)
	mux.HandleFunc("GET /api/messages/{id}", a.handleRoomMessages)
	return mux
}
