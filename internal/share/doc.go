// Package share moves timelines in and out of the workspace.
//
// Three encodings carry the same entry list. Export files are indented JSON
// of the form {"photos": [...], "shareableUrl": "..."}; imports also accept a
// bare array and migrate the legacy dataUrl field to imageUrl. Links carry the
// list inline in the data query parameter (JSON, zlib, base64) or point at a
// JSON document through load_from_url. Cloud save uploads the plain JSON list
// to the gateway and builds a load_from_url link for it.
//
// Every loader validates the whole document before returning anything, so a
// malformed input never yields a partial list. Format failures wrap
// services.ErrInvalidFormat.
package share
