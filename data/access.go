package data

// AccessMode describes how a file is opened through OpenBinary.
// Flags combine with bitwise OR.
type AccessMode int

const (
	AccessModeRead   AccessMode = 1 << iota // open for reading
	AccessModeWrite                         // open for writing
	AccessModeAppend                        // writes go to the end of the file
	AccessModeCreate                        // create the file when missing
	AccessModeTrunc                         // truncate on open
	AccessModeExcl                          // fail with ErrFileExists when present (with Create)
)

// Common combinations.
const (
	ModeRead      = AccessModeRead
	ModeWrite     = AccessModeWrite | AccessModeCreate | AccessModeTrunc
	ModeAppend    = AccessModeWrite | AccessModeAppend | AccessModeCreate
	ModeCreateNew = AccessModeWrite | AccessModeCreate | AccessModeExcl
)

func (m AccessMode) IsReadOnly() bool {
	return m&AccessModeRead != 0 && !m.IsWriting()
}

// IsWriting reports whether the mode mutates the target in any way.
func (m AccessMode) IsWriting() bool {
	return m&(AccessModeWrite|AccessModeAppend|AccessModeCreate|AccessModeTrunc) != 0
}

func (m AccessMode) CanRead() bool {
	return m&AccessModeRead != 0
}

func (m AccessMode) HasAppend() bool {
	return m&AccessModeAppend != 0
}

func (m AccessMode) HasCreate() bool {
	return m&AccessModeCreate != 0
}

func (m AccessMode) HasTrunc() bool {
	return m&AccessModeTrunc != 0
}

func (m AccessMode) HasExcl() bool {
	return m&AccessModeExcl != 0
}

// Validate rejects empty and contradictory combinations.
func (m AccessMode) Validate() error {
	if m&(AccessModeRead|AccessModeWrite|AccessModeAppend) == 0 {
		return NewError(ErrUnsupported, "open", m.String(), nil)
	}
	if m.HasAppend() && m.HasTrunc() {
		return NewError(ErrUnsupported, "open", m.String(), nil)
	}
	if m.HasExcl() && !m.HasCreate() {
		return NewError(ErrUnsupported, "open", m.String(), nil)
	}
	return nil
}

// String renders the mode in the familiar "rb"/"wb"/"ab"/"xb" notation.
func (m AccessMode) String() string {
	var s string
	switch {
	case m.HasExcl():
		s = "x"
	case m.HasAppend():
		s = "a"
	case m.HasTrunc() || (m&AccessModeWrite != 0 && !m.CanRead()):
		s = "w"
	case m.CanRead():
		s = "r"
	}
	if m.CanRead() && m.IsWriting() {
		s += "+"
	}
	return s + "b"
}
