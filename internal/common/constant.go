package common

import "time"

const (
	// SessionTTL is how long a session stays valid after creation or refresh.
	SessionTTL = 32 * 24 * time.Hour

	// VerificationCodeTTL is how long an issued login code can be redeemed.
	VerificationCodeTTL = 15 * time.Minute

	// SessionCookieName is the default cookie carrying the session token.
	SessionCookieName = "portal_session"

	// OpaqueIDLength is the fixed length of tokens produced by NewOpaqueID.
	OpaqueIDLength = 22
)
