// Package genimage calls the generative image model that re-renders a
// timeline photo in an illustrated style keyed to its caption.
//
// GenerateTimelineImage fetches the source photo, sends it inline with a fixed
// prompt, and returns the first image part of the reply. Server-side faults are
// retried with exponential backoff. A reply that carries only text is a hard
// failure and surfaces the text to the caller.
package genimage
