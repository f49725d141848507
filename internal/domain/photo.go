package domain

import "strings"

// Photo is a reference to an image supplied by the caller.
// Exactly one of URL or Data is expected to be set.
//
// URL may be a remote http(s) URL, a data: URI, a file:// locator or an
// absolute path readable by the server, or a transient blob: handle that
// only meant something inside the session that produced it.
type Photo struct {
	URL      string
	Data     []byte
	Filename string
}

// Asset is an image stored at the asset host.
type Asset struct {
	URL string
	ID  string
}

// IsRemote reports whether the photo is already hosted remotely and needs
// no upload.
func (p Photo) IsRemote() bool {
	return len(p.Data) == 0 && IsRemoteURL(p.URL)
}

// IsRemoteURL reports whether s is an http or https URL.
func IsRemoteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsTransientHandle reports whether s is a process-local object URL
// (blob:...) that cannot be resolved outside the session that created it.
func IsTransientHandle(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "blob:")
}
