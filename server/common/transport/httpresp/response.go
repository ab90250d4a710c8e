package httpresp

const (
	ErrAuthenticationRequired = "authentication required"
	ErrInvalidToken           = "invalid or expired token"
	ErrInsufficientRole       = "insufficient permissions"
	ErrInvalidCredentials     = "invalid credentials"
	ErrValidationFailed       = "validation failed"
	ErrInternal               = "internal server error"
)

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type URLResponse struct {
	URL string `json:"url"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

func NewFieldErrorResponse(message string, fields map[string]string) ErrorResponse {
	return ErrorResponse{Error: message, Fields: fields}
}

func NewURLResponse(url string) URLResponse {
	return URLResponse{URL: url}
}

func NewTokenResponse(accessToken, userID, email, role string) TokenResponse {
	return TokenResponse{AccessToken: accessToken, UserID: userID, Email: email, Role: role}
}
