// Package server provides HTTP routing, middleware and an in-memory sandbox of the media-generation API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Sandbox
//
// [Sandbox] implements the records and generation endpoints against an in-memory store:
//
//	POST /api/{audio,image,video}/       → {record}
//	POST /api/records/create/            → {record}
//	GET  /api/records/?page&page_size&media_type → {records, total}
//	POST /api/records/{id}/delete/
//	GET  /api/records/{id}/download/     → asset bytes
//	POST /api/records/download/          → zip archive of {ids}
//	GET  /media/{name}                   → placeholder asset
//	GET  /                               → landing page, issues the CSRF cookie
//	POST /                               → login form (username, password), issues the session cookie
//	POST /logout/                        → ends the session
//
// Generated assets are placeholders; nothing is actually synthesized.
// The sandbox backs the client's tests and the `studio sandbox` command, which lets the
// CLI and TUI be exercised without the real service.
//
// # Session and CSRF
//
// [RequireCSRF] rejects mutating requests whose anti-forgery header does not match the
// session's CSRF cookie. [Sandbox.Cookie] returns a cookie header suitable for the client's
// auth.cookie setting. With RequireSession set, API routes also demand a session cookie,
// either the one from [Sandbox.Cookie] or one obtained by logging in as a user added with
// [Sandbox.AddUser].
//
// # Fault Injection
//
// [Sandbox.FailNext] makes the next request to a route answer with a given status and body,
// which is how tests reach the client's error paths.
package server
