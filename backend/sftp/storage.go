package sftp

import (
	"context"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

func (sb *SFTPBackend) GetInfo(ctx context.Context, p data.Path, namespaces ...string) (data.Info, error) {
	client, err := sb.sftpClient("get_info", p)
	if err != nil {
		return data.Info{}, err
	}

	fileInfo, err := client.Stat(sb.remotePath(p))
	if err != nil {
		return data.Info{}, data.FromOSError("get_info", p.String(), err)
	}
	return toInfo(p, fileInfo, namespaces...), nil
}

func (sb *SFTPBackend) ListDir(ctx context.Context, p data.Path) ([]string, error) {
	fileInfos, err := sb.readDir("list_dir", p)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(fileInfos))
	for _, fileInfo := range fileInfos {
		names = append(names, fileInfo.Name())
	}
	return names, nil
}

// ScanDir uses the attributes sent with every READDIR response, so no
// additional round trip per entry is needed.
func (sb *SFTPBackend) ScanDir(ctx context.Context, p data.Path, namespaces ...string) (backend.EntryIterator, error) {
	fileInfos, err := sb.readDir("scan_dir", p)
	if err != nil {
		return nil, err
	}

	entries := make([]backend.Entry, 0, len(fileInfos))
	for _, fileInfo := range fileInfos {
		entries = append(entries, backend.Entry{
			Name: fileInfo.Name(),
			Info: toInfo(p.Child(fileInfo.Name()), fileInfo, namespaces...),
		})
	}
	return backend.NewSliceIterator(entries), nil
}

func (sb *SFTPBackend) readDir(op string, p data.Path) ([]fs.FileInfo, error) {
	client, err := sb.sftpClient(op, p)
	if err != nil {
		return nil, err
	}

	remote := sb.remotePath(p)
	fileInfo, err := client.Stat(remote)
	if err != nil {
		return nil, data.FromOSError(op, p.String(), err)
	}
	if !fileInfo.IsDir() {
		return nil, data.NewError(data.ErrNotADirectory, op, p.String(), nil)
	}

	fileInfos, err := client.ReadDir(remote)
	if err != nil {
		return nil, data.FromOSError(op, p.String(), err)
	}
	return fileInfos, nil
}

func (sb *SFTPBackend) MakeDir(ctx context.Context, p data.Path, perm data.FileMode, recreate bool) error {
	client, err := sb.sftpClient("make_dir", p)
	if err != nil {
		return err
	}

	return sb.guard.Do(ctx, func(ctx context.Context) error {
		remote := sb.remotePath(p)

		// The protocol reports an existing directory as a generic failure.
		if fileInfo, err := client.Stat(remote); err == nil {
			if fileInfo.IsDir() && recreate {
				return nil
			}
			return data.NewError(data.ErrDirectoryExists, "make_dir", p.String(), nil)
		}

		parent, err := client.Stat(sb.remotePath(p.Parent()))
		if err != nil {
			return data.FromOSError("make_dir", p.Parent().String(), err)
		}
		if !parent.IsDir() {
			return data.NewError(data.ErrDirectoryExpected, "make_dir", p.Parent().String(), nil)
		}

		if err := client.Mkdir(remote); err != nil {
			return data.FromOSError("make_dir", p.String(), err)
		}
		if perm != 0 && perm.Perm() != data.DefaultDirMode {
			if err := client.Chmod(remote, perm.FS().Perm()); err != nil {
				return data.FromOSError("make_dir", p.String(), err)
			}
		}
		return nil
	})
}

func (sb *SFTPBackend) OpenBinary(ctx context.Context, p data.Path, mode data.AccessMode) (backend.File, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	client, err := sb.sftpClient("open_binary", p)
	if err != nil {
		return nil, err
	}

	remote := sb.remotePath(p)
	if fileInfo, err := client.Stat(remote); err == nil && fileInfo.IsDir() {
		return nil, data.NewError(data.ErrFileExpected, "open_binary", p.String(), nil)
	}

	if !mode.IsWriting() {
		file, err := client.Open(remote)
		if err != nil {
			return nil, data.FromOSError("open_binary", p.String(), err)
		}
		return file, nil
	}

	var file backend.File
	err = sb.guard.Do(ctx, func(ctx context.Context) error {
		if mode.HasExcl() {
			if _, err := client.Stat(remote); err == nil {
				return data.NewError(data.ErrFileExists, "open_binary", p.String(), nil)
			}
		}

		handle, err := client.OpenFile(remote, openFlags(mode))
		if err != nil {
			return data.FromOSError("open_binary", p.String(), err)
		}

		// Servers differ in honouring the append flag; writes follow the offset.
		if mode.HasAppend() {
			if _, err := handle.Seek(0, io.SeekEnd); err != nil {
				handle.Close()
				return data.FromOSError("open_binary", p.String(), err)
			}
		}

		file = handle
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func openFlags(mode data.AccessMode) int {
	flags := os.O_WRONLY
	if mode.CanRead() {
		flags = os.O_RDWR
	}
	if mode.HasCreate() {
		flags |= os.O_CREATE
	}
	if mode.HasTrunc() {
		flags |= os.O_TRUNC
	}
	if mode.HasExcl() {
		flags |= os.O_EXCL
	}
	if mode.HasAppend() {
		flags |= os.O_APPEND
	}
	return flags
}

func (sb *SFTPBackend) Remove(ctx context.Context, p data.Path) error {
	client, err := sb.sftpClient("remove", p)
	if err != nil {
		return err
	}

	return sb.guard.Do(ctx, func(ctx context.Context) error {
		remote := sb.remotePath(p)

		fileInfo, err := client.Lstat(remote)
		if err != nil {
			return data.FromOSError("remove", p.String(), err)
		}
		if fileInfo.IsDir() {
			return data.NewError(data.ErrFileExpected, "remove", p.String(), nil)
		}

		return data.FromOSError("remove", p.String(), client.Remove(remote))
	})
}

func (sb *SFTPBackend) RemoveDir(ctx context.Context, p data.Path) error {
	if p.IsRoot() {
		return data.NewError(data.ErrRemoveRoot, "remove_dir", p.String(), nil)
	}

	client, err := sb.sftpClient("remove_dir", p)
	if err != nil {
		return err
	}

	return sb.guard.Do(ctx, func(ctx context.Context) error {
		remote := sb.remotePath(p)

		fileInfo, err := client.Lstat(remote)
		if err != nil {
			return data.FromOSError("remove_dir", p.String(), err)
		}
		if !fileInfo.IsDir() {
			return data.NewError(data.ErrDirectoryExpected, "remove_dir", p.String(), nil)
		}

		children, err := client.ReadDir(remote)
		if err != nil {
			return data.FromOSError("remove_dir", p.String(), err)
		}
		if len(children) > 0 {
			return data.NewError(data.ErrDirectoryNotEmpty, "remove_dir", p.String(), nil)
		}

		return data.FromOSError("remove_dir", p.String(), client.RemoveDirectory(remote))
	})
}

func (sb *SFTPBackend) SetInfo(ctx context.Context, p data.Path, changes data.RawInfo) error {
	client, err := sb.sftpClient("set_info", p)
	if err != nil {
		return err
	}

	return sb.guard.Do(ctx, func(ctx context.Context) error {
		remote := sb.remotePath(p)

		fileInfo, err := client.Stat(remote)
		if err != nil {
			return data.FromOSError("set_info", p.String(), err)
		}

		if details, ok := changes[data.NamespaceDetails]; ok {
			modified, _ := details[data.FieldModified].(time.Time)
			accessed, _ := details[data.FieldAccessed].(time.Time)
			if !modified.IsZero() || !accessed.IsZero() {
				// Both times are sent together; keep the current value for a missing one.
				if modified.IsZero() {
					modified = fileInfo.ModTime()
				}
				if accessed.IsZero() {
					accessed = modified
				}
				if err := client.Chtimes(remote, accessed, modified); err != nil {
					return data.FromOSError("set_info", p.String(), err)
				}
			}
		}

		if access, ok := changes[data.NamespaceAccess]; ok {
			if perm, ok := access[data.FieldPermissions].(data.FileMode); ok {
				if err := client.Chmod(remote, perm.FS().Perm()); err != nil {
					return data.FromOSError("set_info", p.String(), err)
				}
			}
		}

		return nil
	})
}
