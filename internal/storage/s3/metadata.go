package s3

import "strings"

// MetadataKey is the reserved user-metadata attribute holding the sidecar
// string. On the wire it travels as the x-amz-meta-metadata header.
const MetadataKey = "metadata"

// EncodeMetadata turns the caller's opaque metadata string into the
// attribute map sent with an upload. An empty string sends no attribute.
func EncodeMetadata(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	return map[string]string{MetadataKey: raw}
}

// DecodeMetadata reads the sidecar string back from an object's attributes.
// ok is false when the attribute is absent or empty. The value is never parsed.
func DecodeMetadata(attrs map[string]string) (value string, ok bool) {
	if v, exists := attrs[MetadataKey]; exists {
		return v, v != ""
	}
	// Engines differ in how they case user-metadata keys.
	for k, v := range attrs {
		if strings.EqualFold(k, MetadataKey) || strings.EqualFold(k, "x-amz-meta-"+MetadataKey) {
			return v, v != ""
		}
	}
	return "", false
}
