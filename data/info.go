package data

import (
	"maps"
	"time"
)

// Info namespaces.
const (
	NamespaceBasic   = "basic"
	NamespaceDetails = "details"
	NamespaceAccess  = "access"
)

// Well-known info fields.
const (
	FieldName            = "name"
	FieldIsDir           = "is_dir"
	FieldType            = "type"
	FieldSize            = "size"
	FieldModified        = "modified"
	FieldAccessed        = "accessed"
	FieldCreated         = "created"
	FieldMetadataChanged = "metadata_changed"
	FieldContentType     = "content_type"
	FieldPermissions     = "permissions"
	FieldUser            = "user"
	FieldGroup           = "group"
	FieldUID             = "uid"
	FieldGID             = "gid"
)

// RawInfo is the mutable form of Info: namespace -> field -> value.
// It is also used to describe changes passed to SetInfo.
type RawInfo map[string]map[string]any

// NewRawInfo starts a record with the required basic namespace.
func NewRawInfo(name string, isDir bool) RawInfo {
	return RawInfo{
		NamespaceBasic: {
			FieldName:  name,
			FieldIsDir: isDir,
		},
	}
}

// Set stores value under namespace/key and returns the receiver.
func (r RawInfo) Set(namespace, key string, value any) RawInfo {
	ns, ok := r[namespace]
	if !ok {
		ns = make(map[string]any)
		r[namespace] = ns
	}
	ns[key] = value
	return r
}

// Only drops every namespace except basic and the requested ones.
func (r RawInfo) Only(namespaces ...string) RawInfo {
	out := RawInfo{NamespaceBasic: r[NamespaceBasic]}
	for _, namespace := range namespaces {
		if ns, ok := r[namespace]; ok {
			out[namespace] = ns
		}
	}
	return out
}

// Info builds an immutable Info from r. It panics when the basic
// namespace is incomplete; use NewInfo for untrusted input.
func (r RawInfo) Info() Info {
	info, err := NewInfo(r)
	if err != nil {
		panic(err)
	}
	return info
}

// Info is an immutable, namespaced metadata record.
// A missing namespace or field means the value is unknown.
type Info struct {
	raw RawInfo
}

// NewInfo validates and copies raw.
func NewInfo(raw RawInfo) (Info, error) {
	basic, ok := raw[NamespaceBasic]
	if !ok {
		return Info{}, NewError(ErrMissingInfo, "info", NamespaceBasic, nil)
	}
	if _, ok := basic[FieldName].(string); !ok {
		return Info{}, NewError(ErrMissingInfo, "info", NamespaceBasic+"."+FieldName, nil)
	}
	if _, ok := basic[FieldIsDir].(bool); !ok {
		return Info{}, NewError(ErrMissingInfo, "info", NamespaceBasic+"."+FieldIsDir, nil)
	}

	return Info{raw: cloneRaw(raw)}, nil
}

func cloneRaw(raw RawInfo) RawInfo {
	out := make(RawInfo, len(raw))
	for namespace, fields := range raw {
		out[namespace] = maps.Clone(fields)
	}
	return out
}

func (i Info) Name() string {
	name, _ := i.raw[NamespaceBasic][FieldName].(string)
	return name
}

func (i Info) IsDir() bool {
	isDir, _ := i.raw[NamespaceBasic][FieldIsDir].(bool)
	return isDir
}

func (i Info) IsFile() bool {
	return !i.IsDir()
}

func (i Info) HasNamespace(namespace string) bool {
	_, ok := i.raw[namespace]
	return ok
}

// Get returns a raw field value.
func (i Info) Get(namespace, key string) (any, bool) {
	value, ok := i.raw[namespace][key]
	return value, ok
}

// Raw returns a mutable copy of the record.
func (i Info) Raw() RawInfo {
	return cloneRaw(i.raw)
}

// WithName returns a copy with basic.name replaced.
func (i Info) WithName(name string) Info {
	raw := cloneRaw(i.raw)
	raw[NamespaceBasic][FieldName] = name
	return Info{raw: raw}
}

// Type reports details.type when known, else file or directory from is_dir.
func (i Info) Type() ResourceType {
	if t, ok := i.raw[NamespaceDetails][FieldType].(ResourceType); ok {
		return t
	}
	if i.IsDir() {
		return ResourceTypeDirectory
	}
	return ResourceTypeFile
}

func (i Info) Size() (int64, bool) {
	size, ok := i.raw[NamespaceDetails][FieldSize].(int64)
	return size, ok
}

func (i Info) Modified() (time.Time, bool) {
	return i.timeField(FieldModified)
}

func (i Info) Accessed() (time.Time, bool) {
	return i.timeField(FieldAccessed)
}

func (i Info) Created() (time.Time, bool) {
	return i.timeField(FieldCreated)
}

func (i Info) MetadataChanged() (time.Time, bool) {
	return i.timeField(FieldMetadataChanged)
}

func (i Info) timeField(key string) (time.Time, bool) {
	t, ok := i.raw[NamespaceDetails][key].(time.Time)
	if !ok || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func (i Info) ContentType() (ContentType, bool) {
	ct, ok := i.raw[NamespaceDetails][FieldContentType].(ContentType)
	return ct, ok
}

func (i Info) Permissions() (FileMode, bool) {
	mode, ok := i.raw[NamespaceAccess][FieldPermissions].(FileMode)
	return mode, ok
}

func (i Info) User() (string, bool) {
	user, ok := i.raw[NamespaceAccess][FieldUser].(string)
	return user, ok
}

func (i Info) Group() (string, bool) {
	group, ok := i.raw[NamespaceAccess][FieldGroup].(string)
	return group, ok
}
