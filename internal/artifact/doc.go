// Package artifact downloads generated media from upstream URLs and keeps a
// durable copy in a storage backend. Two backends are provided: a local
// filesystem directory and a Google Cloud Storage bucket.
package artifact
