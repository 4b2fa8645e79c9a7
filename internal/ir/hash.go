package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainLayout is the domain prefix for layout identity hashes.
// The version suffix enables future algorithm migration.
const DomainLayout = "tagvm/layout/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The NUL separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LayoutHash computes the content-addressed identity of a layout.
// Nested layouts contribute their type id, offset and size, not their full
// structure; those are hashed when they are defined themselves.
func LayoutHash(l *Layout) (string, error) {
	canonical, err := MarshalCanonical(layoutObject(l))
	if err != nil {
		return "", fmt.Errorf("LayoutHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainLayout, canonical), nil
}

// MustLayoutHash is like LayoutHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustLayoutHash(l *Layout) string {
	h, err := LayoutHash(l)
	if err != nil {
		panic(err)
	}
	return h
}

func layoutObject(l *Layout) map[string]any {
	obj := map[string]any{
		"type":             string(l.Type),
		"size":             l.Size,
		"align":            l.Align,
		"sized":            l.Sized,
		"freeze":           l.Freeze,
		"interior_mutable": l.InteriorMutable,
	}

	switch f := l.Fields.(type) {
	case Array:
		obj["fields"] = map[string]any{
			"kind":  "array",
			"elem":  string(f.Elem.Type),
			"count": f.Count,
		}
	case Arbitrary:
		obj["fields"] = map[string]any{"kind": "arbitrary", "members": fieldObjects(f.Fields)}
	case Union:
		obj["fields"] = map[string]any{"kind": "union", "members": fieldObjects(f.Fields)}
	}

	switch v := l.Variants.(type) {
	case Single:
		obj["variants"] = map[string]any{"kind": "single", "index": v.Index}
	case Multiple:
		names := make([]any, len(v.Variants))
		for i, vl := range v.Variants {
			names[i] = string(vl.Type)
		}
		obj["variants"] = map[string]any{
			"kind":                "multiple",
			"discriminant":        string(v.Discriminant.Type),
			"discriminant_offset": v.DiscriminantOffset,
			"variants":            names,
		}
	}
	return obj
}

func fieldObjects(fields []Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = map[string]any{
			"name":   f.Name,
			"type":   string(f.Layout.Type),
			"offset": f.Offset,
			"size":   f.Layout.Size,
		}
	}
	return out
}
