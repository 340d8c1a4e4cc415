// package repositories provides the persistence layer for the local generation journal.
//
// [GenerationJobRepository] implements models.Repository[*models.GenerationJob],
// handling CRUD operations, soft deletes, and sequence generation. The journal is
// local bookkeeping only; the record library itself always lives on the server.
package repositories
