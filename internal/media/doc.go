// Package media defines the stream model shared by probing, selection and
// planning.
//
// Key types:
//   - Stream: one elementary stream (index, kind, codec, language, channels,
//     bitrate, title)
//   - Language and Bitrate: optional values with an explicit unknown state
//   - Probe: the ordered streams of one container plus its duration
//
// Subpackages ffprobe (inspection) and audio (selection policy) build on
// these types.
package media
