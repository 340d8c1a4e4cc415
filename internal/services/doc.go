// Package services defines the [Service] interface for the media-generation API and implements it with [StudioService].
//
// # Session
//
// The service authenticates the way its own web page does: a session cookie and a CSRF cookie.
// [StudioService] keeps both in a cookie jar seeded from the configured cookie header
// (see `studio setup auth`), and echoes the CSRF cookie in the X-CSRFToken header on every
// mutating request. Cookies the server rotates are picked up by the jar.
//
// # Endpoints
//
//	POST /api/{audio,image,video}/       generate, returns {record}
//	POST /api/records/create/            register an external asset, returns {record}
//	GET  /api/records/                   page of {records, total}
//	POST /api/records/{id}/delete/       delete one record
//	GET  /api/records/{id}/download/     asset bytes
//	POST /api/records/download/          zip archive of {ids}
//
// Records are normalized by [models.ParseRecord].
//
// # Error Handling
//
// Non-2xx responses become [*APIError], which unwraps to [shared.ErrAPIRequest].
// The message follows the server's error body: "error：detail", then "error", then "detail",
// then the raw text. [Describe] supplies the fallback shown when nothing is left.
//
// # Raw Requests
//
// [StudioService.Get] and [StudioService.Post] return the raw [APIResponse] whatever the status,
// for the `studio api` debugging commands.
package services
