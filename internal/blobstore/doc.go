// Package blobstore is the flat public blob store behind the upload gateway.
//
// Objects are written once under time-based unique names and addressed by a
// public URL. Two backends exist: a local directory served by the gateway
// server, and an S3 compatible bucket (AWS or MinIO).
package blobstore
