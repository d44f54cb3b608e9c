package models

// SegmentDescriptor is the normalized unit of work for one playlist segment.
// Descriptors are produced while walking the playlist and consumed by the
// assembler; Index is assigned at parse time and is the sole ordering key
// for reassembly.
type SegmentDescriptor struct {
	// Index is the segment's position in the original playlist order.
	// Indices for one job form a contiguous range starting at zero.
	Index int
	// URI locates the segment's media bytes. It may be relative to the
	// playlist URL or fully qualified.
	URI string
	// KeyURI locates the AES-128 decryption key for this segment.
	// Empty when the segment is not encrypted.
	KeyURI string
}

// Encrypted reports whether the segment carries encryption metadata.
func (d SegmentDescriptor) Encrypted() bool {
	return d.KeyURI != ""
}

// SegmentResult holds the final plaintext payload for one segment.
// Bytes is nil when the segment's task failed.
type SegmentResult struct {
	Index int
	Bytes []byte
}
