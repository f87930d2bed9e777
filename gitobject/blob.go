package gitobject

// Blob is opaque Git blob content; it carries no structure of its own.
type Blob struct {
	Data []byte
}

// ParseBlob wraps a blob object body. There is nothing to validate: any
// byte sequence is a legal blob.
func ParseBlob(data []byte) *Blob {
	return &Blob{Data: data}
}
