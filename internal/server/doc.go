// Package server implements the asset gateway that timeline clients talk to.
//
// It accepts JSON documents and images, stores them through a blobstore.Store
// and answers with the public URL. It also hands out the generative model key
// to clients that have none and, for the filesystem backend, serves the
// stored objects under /files/. Failures are plain-text bodies with a non-2xx
// status; successes are JSON.
package server
