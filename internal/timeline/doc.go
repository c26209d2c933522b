// Package timeline owns the authoritative list of photo entries and drives each
// entry through its lifecycle:
//
//	create:   uploading -> idle | error
//	generate: idle | done | error -> pending -> done | error
//
// Every asynchronous completion is folded back with MergeByID, so operations
// on different entries never interfere and the later completion for the same
// entry wins. Deleting an entry cancels its in-flight work and any result that
// still arrives is discarded.
package timeline
