package data

import "io/fs"

// FileMode holds the permission bits reported in the access namespace.
// Type bits follow io/fs so values convert without loss.
type FileMode uint32

const (
	ModeDir        FileMode = FileMode(fs.ModeDir)
	ModeSymlink    FileMode = FileMode(fs.ModeSymlink)
	ModeNamedPipe  FileMode = FileMode(fs.ModeNamedPipe)
	ModeSocket     FileMode = FileMode(fs.ModeSocket)
	ModeDevice     FileMode = FileMode(fs.ModeDevice)
	ModeCharDevice FileMode = FileMode(fs.ModeCharDevice)
	ModeIrregular  FileMode = FileMode(fs.ModeIrregular)

	ModePerm FileMode = 0o777
)

// Default permissions for new resources.
const (
	DefaultDirMode  FileMode = 0o755
	DefaultFileMode FileMode = 0o644
)

func (m FileMode) IsDir() bool {
	return m&ModeDir != 0
}

func (m FileMode) IsRegular() bool {
	return fs.FileMode(m).IsRegular()
}

func (m FileMode) Perm() FileMode {
	return m & ModePerm
}

// FS converts to an io/fs file mode.
func (m FileMode) FS() fs.FileMode {
	return fs.FileMode(m)
}

// Type derives the resource type from the type bits.
func (m FileMode) Type() ResourceType {
	switch {
	case m&ModeDir != 0:
		return ResourceTypeDirectory
	case m&ModeNamedPipe != 0:
		return ResourceTypeFIFO
	case m&ModeSocket != 0:
		return ResourceTypeSocket
	case m&ModeCharDevice != 0:
		return ResourceTypeCharSpecial
	case m&ModeDevice != 0:
		return ResourceTypeBlockSpecial
	case m&ModeSymlink != 0:
		return ResourceTypeSymlink
	case m&ModeIrregular != 0:
		return ResourceTypeUnknown
	default:
		return ResourceTypeFile
	}
}

// String renders the mode in ls -l notation, e.g. "drwxr-xr-x".
func (m FileMode) String() string {
	return fs.FileMode(m).String()
}
