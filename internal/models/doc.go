// Package models defines the domain entities of the studio client.
//
// The package contains two categories of types:
//
// 1. Records mirrored from the media-generation service
//   - [MediaType] : the generation mode (image, audio, video) with its model list and labels
//   - [MediaRecord] : one generated asset with prompt and parameters
//   - [Filter] : the library's type filter, "all" or one media type
//
// 2. Persistent entities kept in the local journal
//   - [GenerationJob] : one generation attempt, pending until it succeeds or fails
//
// Server payloads are normalized exactly once, by [ParseRecord]; everything past that
// point works with typed values.
package models
