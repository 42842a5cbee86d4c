package interfaces

// AuthServiceInterface authenticates the identity provider integration when
// it calls the session-establishment endpoint.
type AuthServiceInterface interface {
	// ValidateCallbackToken returns nil when token may call the endpoint.
	// It rejects every token while no callback token is configured.
	ValidateCallbackToken(token string) error
}
