// Package tmdb is a minimal client for The Movie Database API covering the
// two calls the trailer downloader needs: movie search and movie videos.
package tmdb
