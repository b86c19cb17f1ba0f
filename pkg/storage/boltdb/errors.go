package boltdb

import "errors"

var (
	// ErrBucketNotFound is returned when a bucket disappears from the database.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrEmptyBucketName is returned when a store is created without a bucket name.
	ErrEmptyBucketName = errors.New("bucket name cannot be empty")
)
