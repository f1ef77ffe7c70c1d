package blobstore

import (
	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of the file is inspected when the client sent no type.
const sniffLen = 3072

// ResolveContentType picks the MIME type for an upload. The type declared on
// the multipart part wins; content is sniffed only when the client sent none
// or the generic application/octet-stream.
func ResolveContentType(declared string, head []byte) string {
	if bt := baseType(declared); bt != "" && bt != "application/octet-stream" {
		return bt
	}
	return baseType(mimetype.Detect(head).String())
}

// typeForKey maps a stored object's extension back to its MIME type.
func typeForKey(key string) string {
	for mt, ext := range allowedTypes {
		if len(key) > len(ext) && key[len(key)-len(ext):] == ext {
			return mt
		}
	}
	return "application/octet-stream"
}
