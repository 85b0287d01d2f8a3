// Package memory implements the memory lifecycle for the service.
// It provides:
// 1. Collection bootstrap: a destructive reset of the vector collection at startup
// so its vector size matches the embedder in use.
// 2. Lifecycle operations: add (extract, embed, persist), update, delete, scoped
// similarity search and scoped enumeration.
// 3. History: an append-only audit trail of ADD/UPDATE/DELETE events per memory.
//
// Collaborators (extraction, embedding, vector index, history log) are consumed
// through the interfaces in interface.go and are passed into NewManager.
package memory
