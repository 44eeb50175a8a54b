// Package sanitizer normalizes user supplied text before it is validated and stored.
//
// Every function is idempotent. Invalid input yields an empty string or an empty
// slice rather than an error; validation happens afterwards on the normalized value.
package sanitizer
