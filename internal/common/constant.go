// Package common contains shared constants and sentinel errors used across
// fundkeeper components.
package common

// AuthorizationHeaderName carries the bearer access token on API requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// MaxNameLength bounds fund, sender, member and user names.
const MaxNameLength = 255
