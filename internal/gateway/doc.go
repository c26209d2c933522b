// Package gateway talks to the remote asset gateway: the upload endpoints that
// store raw images and JSON documents in a public blob store, the config
// endpoint that hands out the fallback generative API key, and plain fetches of
// the URLs those endpoints return.
//
// The client never retries. Callers decide what a failed upload means for
// their entry.
package gateway
