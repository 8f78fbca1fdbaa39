// Package client is the client-side handle to the snapboard gateway.
//
// # Overview
//
// The package provides:
//  1. The Client interface: identity (sign-up, sign-in, magic links,
//     sign-out, session lookup and auth notifications), the posts and
//     gallery tables, direct uploads to object storage, and a health probe.
//  2. HTTPClient, which speaks the gateway JSON API, attaches the bearer
//     access token, refreshes an expired token once per request (rotating
//     the refresh token) and probes grpc.health.v1 for Ping.
//  3. Local persistence (InitDatabase, RunMigrations, MetadataTokenStore)
//     so a session survives restarts of the CLI.
//
// # Auth notifications
//
// OnAuthStateChange listeners receive SignedIn, SignedOut and
// TokenRefreshed changes in order on a dispatcher goroutine. A call that
// causes a change returns before listeners see it.
//
// # Error Handling
//
// Status codes map back to sentinels matched with errors.Is: ErrUnauthorized,
// ErrUnavailable, common.ErrorValidation, common.ErrorForbidden,
// common.ErrorNotFound, common.ErrVersionConflict and common.ErrorAlreadyExists.
package client
