// Package sanitizer normalizes user-supplied text before validation and
// storage.
//
// All functions are idempotent: applying them twice gives the same result as
// applying them once.
package sanitizer
