// Package imaging decodes, scales, and re-encodes timeline photos, and
// composes album sheets from generated images.
//
// Every output is a Payload: JPEG bytes plus their MIME type, convertible to
// and from a self-contained data URL.
package imaging
