// Package storage archives raw scanner output files.
//
// The scan contents themselves live in the vulnerability_scans table; this
// package only keeps the original report file the scanner wrote, so it can be
// retrieved later. Two backends implement ArtifactStore:
//
//   - FileSystemStore: files under a root directory, written via temp file and rename
//   - S3Store: objects in an S3 or S3-compatible bucket, with a sha256 checksum in metadata
//
// Keys are slash separated and relative; "..", leading slashes and
// backslashes are normalized so a key can never escape the store root.
//
//	store, err := storage.New(ctx, storage.Config{Backend: "filesystem", FilesystemRoot: "reports"})
//	location, err := storage.MoveFile(ctx, store, "/tmp/out.json", "project-1/out.json", "application/json")
package storage
