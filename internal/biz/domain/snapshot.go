package domain

// Snapshot is the serialized name store as held by the remote backend.
// Version is an opaque token (a content hash or blob SHA) used for
// compare-and-swap writes.
type Snapshot struct {
	Content []byte
	Version string
}
