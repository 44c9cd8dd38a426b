// Package session holds the credential of the signed-in user.
//
// The credential is an opaque bearer token plus the user id it belongs to.
// The cache never inspects the token; it only asks whether a credential is
// present, which gates queries that need an identity such as the current
// user. Identity decodes the token's subject and expiry claims for display
// and expiry checks without verifying the signature; verification is the
// server's job.
//
// Stores persist the credential between runs. FileStore keeps it as a single
// JSON document readable only by the owner.
package session
