// Package cloudconvert talks to the job-based conversion API. A job is a
// two-task graph that imports the source video by URL and exports the result
// as a temporary download URL.
//
// The client does not retry; the pipeline driver re-polls on its next sweep.
package cloudconvert
