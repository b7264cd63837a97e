// Package sftp provides a backend on a remote directory reached over SSH.
package sftp

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path"
	"sync"

	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPBackendConfig contains the connection settings of the SFTP backend.
type SFTPBackendConfig struct {
	// Address of the SSH server; the port defaults to 22
	Address string
	// User to authenticate as (default: $USER)
	User string
	// Password enables password authentication (optional)
	Password string
	// Root is the remote directory serving as "/" (default: "/")
	Root string
	// KnownHosts is a known_hosts file used to verify the server key.
	// Host keys are not verified when empty.
	KnownHosts string
	// NoAgent disables authentication through SSH_AUTH_SOCK.
	NoAgent bool
}

type SFTPBackend struct {
	mu     sync.RWMutex
	guard  *backend.Guard
	config SFTPBackendConfig

	ssh    *ssh.Client
	client *sftp.Client
}

func NewSFTPBackend(config SFTPBackendConfig) *SFTPBackend {
	if config.User == "" {
		config.User = os.Getenv("USER")
	}
	if config.Root == "" {
		config.Root = "/"
	}
	if _, _, err := net.SplitHostPort(config.Address); err != nil {
		config.Address = net.JoinHostPort(config.Address, "22")
	}

	return &SFTPBackend{
		guard:  backend.NewGuard(),
		config: config,
	}
}

// Name returns the identifier name defined for this backend.
func (*SFTPBackend) Name() string {
	return "sftp"
}

// Open dials the server and starts the sftp session.
func (sb *SFTPBackend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.client != nil {
		return nil
	}

	clientConfig, err := sb.clientConfig()
	if err != nil {
		return data.NewError(data.ErrOperationFailed, "open", sb.config.Address, err)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", sb.config.Address)
	if err != nil {
		return data.NewError(data.KindOf(err), "open", sb.config.Address, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, sb.config.Address, clientConfig)
	if err != nil {
		conn.Close()
		return data.NewError(data.ErrPermissionDenied, "open", sb.config.Address, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return data.NewError(data.ErrOperationFailed, "open", sb.config.Address, fmt.Errorf("sftp session: %w", err))
	}

	info, err := client.Stat(sb.config.Root)
	if err != nil {
		client.Close()
		sshClient.Close()
		return data.FromOSError("open", sb.config.Root, err)
	}
	if !info.IsDir() {
		client.Close()
		sshClient.Close()
		return data.NewError(data.ErrDirectoryExpected, "open", sb.config.Root, nil)
	}

	sb.ssh = sshClient
	sb.client = client
	return nil
}

func (sb *SFTPBackend) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if !sb.config.NoAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			if conn, err := net.Dial("unix", sock); err == nil {
				auth = append(auth, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			}
		}
	}
	if sb.config.Password != "" {
		auth = append(auth, ssh.Password(sb.config.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no ssh authentication method available")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if sb.config.KnownHosts != "" {
		callback, err := knownhosts.New(sb.config.KnownHosts)
		if err != nil {
			return nil, err
		}
		hostKeyCallback = callback
	}

	return &ssh.ClientConfig{
		User:            sb.config.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
	}, nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SFTPBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.client == nil {
		return nil
	}

	errs := data.Errors{}
	errs.Add(sb.client.Close())
	errs.Add(sb.ssh.Close())
	sb.client, sb.ssh = nil, nil
	return errs.Errors()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SFTPBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityScanDir,
			backend.CapabilitySetInfo,
			backend.CapabilityAppend,
			backend.CapabilityStreaming,
		},
	}
}

// sftpClient returns the session or ErrOperationFailed before Open.
func (sb *SFTPBackend) sftpClient(op string, p data.Path) (*sftp.Client, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if sb.client == nil {
		return nil, data.NewError(data.ErrOperationFailed, op, p.String(), fmt.Errorf("backend not open"))
	}
	return sb.client, nil
}

// remotePath maps a virtual path below the configured root.
func (sb *SFTPBackend) remotePath(p data.Path) string {
	return path.Join(sb.config.Root, p.Key())
}

func toInfo(p data.Path, fileInfo fs.FileInfo, namespaces ...string) data.Info {
	raw := data.NewRawInfo(p.Name(), fileInfo.IsDir())
	for _, namespace := range namespaces {
		switch namespace {
		case data.NamespaceDetails:
			resourceType := data.ResourceTypeFile
			if fileInfo.IsDir() {
				resourceType = data.ResourceTypeDirectory
			}
			raw.Set(namespace, data.FieldType, resourceType).
				Set(namespace, data.FieldSize, fileInfo.Size()).
				Set(namespace, data.FieldModified, fileInfo.ModTime())
			if contentType, ok := data.ContentTypeByName(p.Name()); ok && !fileInfo.IsDir() {
				raw.Set(namespace, data.FieldContentType, contentType)
			}
		case data.NamespaceAccess:
			raw.Set(namespace, data.FieldPermissions, data.FileMode(fileInfo.Mode().Perm()))
			if stat, ok := fileInfo.Sys().(*sftp.FileStat); ok {
				raw.Set(namespace, data.FieldUID, int(stat.UID)).
					Set(namespace, data.FieldGID, int(stat.GID))
			}
		}
	}
	return raw.Info()
}
