// Package tasks implements the two stateful controllers of the studio client.
//
// # Generation
//
// [Generator] owns the current mode and a single-flight flag. [Generator.Generate] sets the
// flag with a compare-and-swap, so a second trigger while a request is in flight returns
// [shared.ErrBusy] without touching the network. The prompt is validated after the flag is
// taken and the flag is always released on return. A successful record is pushed to a
// [RecordSink] (the library) and shown through a [Previewer]; when a [Journal] is configured
// every attempt is recorded, and journal failures are only logged.
//
// Mode switches stay allowed while busy; the in-flight request keeps the mode it was issued
// with. Replaying a library record is refused while busy.
//
// # Library
//
// [Library] caches one page of records from the server together with the filter, page,
// total and selection set. Every mutation (load, filter change, delete, add) clears the
// selection. Loads replace the cache wholesale and only commit on success.
//
// [Library.DeleteSelected] asks once, then fans the deletes out on an errgroup paced by a
// token-bucket limiter. Failures are collected rather than cancelling siblings, and after all
// deletes finish the current page is re-fetched exactly once to reconcile with the server.
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Updates are sent with select and
// default so a slow or absent reader never blocks the operation.
package tasks
