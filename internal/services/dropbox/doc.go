// Package dropbox wraps the archive provider's asynchronous "save from URL"
// facility.
//
// SubmitSave starts a server-side copy of a public URL into the archive and
// returns an async job id. CheckJob classifies the job into one of the
// Outcome variants. Paths builds destination paths and BrowseURL renders the
// web viewer link for an archived file.
package dropbox
