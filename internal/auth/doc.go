// Package auth provides bearer-token authentication for the Input Dock API.
//
// The API is read-mostly and typically deployed on loopback, so the model is
// deliberately small: HS256 JWTs signed with a shared secret, validated by
// signature and expiry only. There is no user database; tokens are minted by
// the operator (or a companion service) holding the same secret.
package auth
