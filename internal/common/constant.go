// Package common contains shared constants and sentinel errors used across
// Wayne components.
package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token inside the Authorization header.
const BearerPrefix = "Bearer "

// RequestIDHeader correlates a request with its access log line.
const RequestIDHeader = "X-Request-ID"

// MinPasswordLength is the shortest identity password accepted on
// registration and password change.
const MinPasswordLength = 8

// MaxPasswordLength is the longest identity password in bytes; bcrypt
// ignores or rejects anything past it.
const MaxPasswordLength = 72

// RefreshTokenSize is the number of random bytes in a refresh token (512 bits).
const RefreshTokenSize = 64
