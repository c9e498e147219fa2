// Package domain contains the core business entities for Pictor.
package domain

import "errors"

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (filesystem, database, subprocess).

var (
	// ===========================================
	// Hash / Path Errors
	// ===========================================

	// ErrMalformedHash indicates the input is not a 40-character lowercase hex digest.
	// Rejected before any use in a filesystem path.
	ErrMalformedHash = errors.New("malformed content hash")

	// ErrNotFound indicates the requested object does not exist in the store.
	ErrNotFound = errors.New("object not found")

	// ===========================================
	// Upload Errors
	// ===========================================

	// ErrNoFiles indicates an upload request carried no file parts.
	ErrNoFiles = errors.New("no files provided")

	// ErrAccessDenied indicates the caller has been blocked from uploading.
	ErrAccessDenied = errors.New("access denied")

	// ErrStorageWrite indicates a disk write failed for a single file.
	// Sibling files in the same batch are unaffected.
	ErrStorageWrite = errors.New("storage write failed")

	// ===========================================
	// Transcode Errors
	// ===========================================

	// ErrTranscodeFailed indicates the external conversion command failed.
	// No partial artifact is persisted when this is returned.
	ErrTranscodeFailed = errors.New("transcode failed")

	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates no record exists for the client address.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a record for the client address already exists.
	ErrUserAlreadyExists = errors.New("user already exists")
)
