// Package heygen reads translated-video metadata from the video generation
// API: the paginated video list and the per-video translation record that
// carries the output language and the downloadable URL.
package heygen
