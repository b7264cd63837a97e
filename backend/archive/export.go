package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/tree"
)

// Export writes the tree below root of b to w as a tar stream and returns
// the number of members written. Member names are relative to root;
// directories are written before their contents. opts refine the walk,
// e.g. with tree.WithExclude.
func Export(ctx context.Context, b backend.Backend, root data.Path, w io.Writer, compression Compression, opts ...tree.Option) (int, error) {
	if compression == CompressionAuto {
		compression = CompressionNone
	}

	opts = append([]tree.Option{
		tree.WithSearchOrder(tree.DepthFirst),
		tree.WithNamespaces(data.NamespaceDetails, data.NamespaceAccess),
	}, opts...)

	walker, err := tree.Walk(ctx, b, root, opts...)
	if err != nil {
		return 0, err
	}
	defer walker.Close()

	cw, err := compress(w, compression)
	if err != nil {
		return 0, data.NewError(data.ErrOperationFailed, "export", root.String(), err)
	}
	tw := tar.NewWriter(cw)

	count := 0
	for walker.Next() {
		step := walker.Step()
		if err := writeMember(ctx, b, root, tw, step); err != nil {
			return count, err
		}
		count++
	}
	if err := walker.Err(); err != nil {
		return count, err
	}

	if err := tw.Close(); err != nil {
		return count, data.NewError(data.ErrOperationFailed, "export", root.String(), err)
	}
	if err := cw.Close(); err != nil {
		return count, data.NewError(data.ErrOperationFailed, "export", root.String(), err)
	}
	return count, nil
}

func writeMember(ctx context.Context, b backend.Backend, root data.Path, tw *tar.Writer, step tree.Step) error {
	rel, err := step.Path.RelativeTo(root)
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    strings.Join(rel, "/"),
		ModTime: time.Unix(0, 0),
	}
	if modified, ok := step.Info.Modified(); ok {
		header.ModTime = modified
	}
	if user, ok := step.Info.User(); ok {
		header.Uname = user
	}
	if group, ok := step.Info.Group(); ok {
		header.Gname = group
	}

	perm, hasPerm := step.Info.Permissions()
	if step.Info.IsDir() {
		if !hasPerm {
			perm = data.DefaultDirMode
		}
		header.Typeflag = tar.TypeDir
		header.Name += "/"
		header.Mode = int64(perm.Perm())
		return wrapExportError(step.Path, tw.WriteHeader(header))
	}

	if !hasPerm {
		perm = data.DefaultFileMode
	}
	header.Typeflag = tar.TypeReg
	header.Mode = int64(perm.Perm())

	file, err := b.OpenBinary(ctx, step.Path, data.ModeRead)
	if err != nil {
		return err
	}
	defer file.Close()

	var content io.Reader = file
	size, ok := step.Info.Size()
	if !ok {
		// The header needs the size up front.
		buf, err := io.ReadAll(file)
		if err != nil {
			return wrapExportError(step.Path, err)
		}
		size, content = int64(len(buf)), bytes.NewReader(buf)
	}
	header.Size = size

	if err := tw.WriteHeader(header); err != nil {
		return wrapExportError(step.Path, err)
	}
	if _, err := io.CopyN(tw, content, size); err != nil {
		return wrapExportError(step.Path, err)
	}
	return nil
}

func wrapExportError(p data.Path, err error) error {
	if err == nil {
		return nil
	}
	return data.NewError(data.KindOf(err), "export", p.String(), err)
}
