package data

// ResourceType classifies a resource beyond the file/directory split.
type ResourceType int

const (
	ResourceTypeUnknown ResourceType = iota
	ResourceTypeDirectory
	ResourceTypeFile
	ResourceTypeCharSpecial
	ResourceTypeBlockSpecial
	ResourceTypeFIFO
	ResourceTypeSocket
	ResourceTypeSymlink
	ResourceTypeMapping
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeDirectory:
		return "directory"
	case ResourceTypeFile:
		return "file"
	case ResourceTypeCharSpecial:
		return "char_special"
	case ResourceTypeBlockSpecial:
		return "block_special"
	case ResourceTypeFIFO:
		return "fifo"
	case ResourceTypeSocket:
		return "socket"
	case ResourceTypeSymlink:
		return "symlink"
	case ResourceTypeMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// ParseResourceType is the inverse of String; unknown names map to ResourceTypeUnknown.
func ParseResourceType(s string) ResourceType {
	for t := ResourceTypeUnknown; t <= ResourceTypeMapping; t++ {
		if t.String() == s {
			return t
		}
	}
	return ResourceTypeUnknown
}
