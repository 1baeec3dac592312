package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserResponse struct {
	ID         uint64 `json:"id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	IsVerified bool   `json:"is_verified"`
}

type RegisterResponse struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

type VerifyEmailResponse struct {
	Message string       `json:"message"`
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    UserResponse `json:"user"`
}

// SessionResponse is returned by every operation that opens a session.
type SessionResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    UserResponse `json:"user"`
}

// UnverifiedResponse tells the client a fresh code was mailed instead of a session.
type UnverifiedResponse struct {
	Detail string `json:"detail"`
	Email  string `json:"email"`
}

type RequestPasswordResetResponse struct {
	Success string `json:"success"`
}

type CheckResetTokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UIDB64  string `json:"uidb64"`
	Token   string `json:"token"`
	Email   string `json:"email"`
}

type SetNewPasswordResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ValidateTokenResponse struct {
	Valid      bool   `json:"valid"`
	UserID     uint64 `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
	ExpiresAt  int64  `json:"expires_at"`
}
