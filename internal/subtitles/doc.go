// Package subtitles extracts embedded subtitle streams to standalone files.
//
// Each subtitle stream is written as subtitle_<index>_<language><ext>, with
// the extension chosen from the stream codec. Bitmap and text formats are
// stream-copied; mov_text, which has no standalone container, is written as
// SubRip.
package subtitles
