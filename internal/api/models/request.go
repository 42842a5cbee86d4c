package models

// LegacyHandoffQuery is the query of the outbound legacy handoff
type LegacyHandoffQuery struct {
	AccountListID string `form:"accountListId"`
	UserID        string `form:"userId"`
	Path          string `form:"path"`
	Auth          bool   `form:"auth"`
}

// StopImpersonatingQuery is the query of the stop-impersonating redirect
type StopImpersonatingQuery struct {
	AccountListID string `form:"accountListId"`
	UserID        string `form:"userId"`
	Path          string `form:"path"`
}

// ImpersonateUserRequest represents a user impersonation request
type ImpersonateUserRequest struct {
	User   string `json:"user" example:"jane@example.org"`
	Reason string `json:"reason" example:"Support ticket 4521"`
}

// ImpersonateOrganizationRequest represents an organization impersonation request
type ImpersonateOrganizationRequest struct {
	OrganizationID string `json:"organizationId" example:"5f6b1c2a-org"`
	User           string `json:"user" example:"jane@example.org"`
	Reason         string `json:"reason" example:"Support ticket 4521"`
}
