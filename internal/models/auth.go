package models

// LoginRequest asks the dev server for a token. There is no password: the
// dev server trusts whoever asks.
type LoginRequest struct {
	UserID string `json:"userId" binding:"required"`
	Email  string `json:"email"`
	Admin  bool   `json:"admin"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}
