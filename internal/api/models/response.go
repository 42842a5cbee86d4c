package models

import "handoff-gateway/internal/upstream"

// BaseResponse represents the base API response structure
type BaseResponse struct {
	Success   bool        `json:"success" example:"true"`
	Message   string      `json:"message,omitempty" example:"Operation completed successfully"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp" example:"1640995200"`
	RequestID string      `json:"request_id,omitempty" example:"0b6f4c1e-8f7c-4a7e-9a51-6d3f0f1b2c3d"`
}

// ErrorInfo represents error information
type ErrorInfo struct {
	Code    string `json:"code" example:"MISSING_PARAMETER"`
	Message string `json:"message" example:"accountListId is required"`
	Details string `json:"details,omitempty"`
}

// ImpersonationResponse is the body of both impersonation endpoints
type ImpersonationResponse struct {
	Success        bool                `json:"success" example:"true"`
	Errors         []upstream.APIError `json:"errors"`
	InvalidRequest bool                `json:"invalidRequest,omitempty"`
}

// EstablishmentResponse tells the identity provider which identity the new session carries
type EstablishmentResponse struct {
	State                 string `json:"state" example:"conflict_resolved"`
	OverrideSession       bool   `json:"overrideSession"`
	AccountConflictUserID string `json:"accountConflictUserId,omitempty"`
	APIToken              string `json:"apiToken,omitempty"`
	Impersonating         bool   `json:"impersonating"`
	ImpersonatorAPIToken  string `json:"impersonatorApiToken,omitempty"`
	ImpersonatorDeveloper bool   `json:"impersonatorDeveloper"`
	RedirectURL           string `json:"redirectUrl,omitempty"`
}

// HealthResponse represents the health check body
type HealthResponse struct {
	Status     string `json:"status" example:"healthy"`
	Timestamp  int64  `json:"timestamp" example:"1640995200"`
	Version    string `json:"version" example:"1.0.0"`
	LegacyHost string `json:"legacy_host,omitempty" example:"legacy.example.org"`
}
