// Package swap promotes a converted file into the original's place.
//
// A swap is two renames: original → `<stem>_old<ext>` backup, then
// staged → original. Before the first rename a small JSON journal is written
// next to the file so that an interrupted swap can be detected and finished
// (or cleaned up) by Recover. The backup is never deleted here.
package swap
