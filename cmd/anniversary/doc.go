// Command anniversary manages a photo timeline: photos are uploaded to an
// asset gateway, captioned, and turned into illustrations by a generative
// image model. Timelines can be exported, shared as links, saved to the
// gateway and composed into an album sheet.
//
// The workspace lives in the configured data directory. Commands that change
// it hold the workspace lock, so two invocations never interleave their
// writes. "anniversary serve" runs the gateway itself over a filesystem or
// S3 blob store.
package main
