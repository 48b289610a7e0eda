// Package plan turns an audio selection into a concrete ffmpeg invocation.
//
// Build is pure: it looks at the probed streams, the selection result and
// the conversion options, picks one of four strategies and renders the full
// argument list. Every kept stream is mapped explicitly by its original
// index so dropped streams can never leak back into the output.
package plan
