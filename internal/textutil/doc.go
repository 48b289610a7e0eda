// Package textutil sanitizes titles and tags for use in file names.
package textutil
