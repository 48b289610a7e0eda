// Package language normalizes language tags found in container metadata and
// configuration, and provides the allow-list used by audio and subtitle
// selection.
package language
