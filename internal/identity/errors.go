package identity

import "errors"

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCredentials = errors.New("invalid username or password")

	// External IdP errors
	ErrIdPConnection  = errors.New("failed to connect to identity provider")
	ErrIdPRejected    = errors.New("identity provider rejected credentials")
	ErrIdPInvalidResp = errors.New("invalid response from identity provider")
)
