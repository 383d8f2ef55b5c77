// Package artifact handles release archive mechanics: downloading an archive
// for a version (idempotent, cached) and unpacking it.
//
// The Fetcher interface is the external boundary the bundle store composes;
// HTTPFetcher is the default implementation.
package artifact
