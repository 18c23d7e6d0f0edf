// Package auth provides authorisation for the weddingcue API.
//
// It implements a 4-tier role model (view only → participant → coordinator
// → owner) with:
//   - HS256 JWT access tokens minted by the CLI, validated by signature only
//   - Optional per-event restriction inside the token
//   - Static role-permission mapping (compile-time, no database lookup)
//
// There are no user accounts: a wedding team is small and short-lived, so
// the planner hands out tokens instead of managing passwords.
package auth
