// Package auth implements a self contained account service: registration,
// email verification, password login, refresh token rotation, logout,
// password change and reset, account updates, deletion and Google sign in.
//
// Accounts:
//   - User is persisted through Bun. The record carries the bcrypt password
//     hash, the current refresh token and the SHA-256 digests of the single
//     use reset and verification tokens. PublicUser is the only shape that
//     leaves the package boundary.
//   - Usernames and emails are trimmed and lowercased on every write and
//     lookup, so uniqueness is case insensitive.
//
// Sessions:
//   - A session is an access/refresh JWT pair signed with two different
//     secrets. Only the latest refresh token is stored; presenting any other
//     refresh token (including a previously rotated one) fails.
//   - Rotation is a conditional update on the stored refresh token, so two
//     concurrent refresh calls with the same token cannot both succeed.
//
// Single use tokens:
//   - Reset and verification tokens are 32 random bytes, hex encoded. Only the
//     SHA-256 digest is stored and it is cleared by the same statement that
//     consumes it.
//
// HTTP:
//   - AuthController mounts the go-router routes and moves session tokens through
//     HttpOnly cookies (accessToken, refreshToken). Errors are rendered with
//     the ErrorHandler envelope.
package auth
