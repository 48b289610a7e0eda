// Package trailers downloads a YouTube trailer for every movie in a library
// directory. Titles come from Kodi-style .nfo files when present, trailer
// URLs come from TMDB and the download itself is delegated to yt-dlp.
package trailers
