// Package common contains shared constants and sentinel errors used across
// snapboard components.
package common

// AccessTokenHeaderName is the HTTP header carrying the bearer access token
// on outbound requests.
const AccessTokenHeaderName = "Authorization"

// BearerPrefix precedes the access token inside AccessTokenHeaderName.
const BearerPrefix = "Bearer "

// AuthCallbackFailed is the error flag reported when a sign-in callback
// cannot be resolved into a session.
const AuthCallbackFailed = "auth_callback_failed"
