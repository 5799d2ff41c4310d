package tracer

import "bytes"

// linuxVersionBanner is the fixed string prefix every vmlinux build
// embeds verbatim ahead of its full version string.
const linuxVersionBanner = "Linux version "

// ParseKernelVersion scans data (a vmlinux image or any buffer that
// contains one) for the "Linux version" banner and returns all the
// text following it up to the first control character (NUL or
// otherwise), spaces included, per spec.md §6. ok is false
// if no banner was found.
func ParseKernelVersion(data []byte) (version KernelVersion, ok bool) {
	idx := bytes.Index(data, []byte(linuxVersionBanner))
	if idx < 0 {
		return "", false
	}
	start := idx + len(linuxVersionBanner)
	end := start
	for end < len(data) && data[end] > 0x1f && data[end] != 0x7f {
		end++
	}
	if end == start {
		return "", false
	}
	return KernelVersion(data[start:end]), true
}
