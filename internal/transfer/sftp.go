package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

const dialTimeout = 30 * time.Second

// Config holds the SFTP staging host settings.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	RemoteDir string
}

// SFTP implements the staging transfer contract over SFTP. A fresh connection
// is dialed per operation; cycles are minutes to hours apart and shared hosts
// drop idle sessions.
type SFTP struct {
	cfg    Config
	logger zerolog.Logger
}

func NewSFTP(cfg Config, logger zerolog.Logger) *SFTP {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	return &SFTP{cfg: cfg, logger: logger}
}

// Upload copies the local file to the configured remote directory under
// remoteName.
func (t *SFTP) Upload(ctx context.Context, localPath, remoteName string) error {
	client, closeConn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file %s: %w", localPath, err)
	}
	defer src.Close()

	remotePath := path.Join(t.cfg.RemoteDir, remoteName)
	dst, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}

	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write remote file %s: %w", remotePath, err)
	}

	t.logger.Debug().
		Str("remote", remotePath).
		Int64("bytes", written).
		Msg("sftp upload complete")
	return nil
}

// Delete removes remoteName from the configured remote directory. A file that
// is already gone is not an error.
func (t *SFTP) Delete(ctx context.Context, remoteName string) error {
	client, closeConn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	remotePath := path.Join(t.cfg.RemoteDir, remoteName)
	if err := client.Remove(remotePath); err != nil {
		if os.IsNotExist(err) {
			t.logger.Debug().Str("remote", remotePath).Msg("remote file already absent")
			return nil
		}
		return fmt.Errorf("failed to remove remote file %s: %w", remotePath, err)
	}
	return nil
}

func (t *SFTP) connect(ctx context.Context) (*sftp.Client, func(), error) {
	sshCfg := &ssh.ClientConfig{
		User:            t.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(t.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	conn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial sftp host %s: %w", addr, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to start sftp session: %w", err)
	}

	closeConn := func() {
		client.Close()
		conn.Close()
	}

	// ssh.Dial has its own timeout; honor cancellation between operations.
	if err := ctx.Err(); err != nil {
		closeConn()
		return nil, nil, err
	}
	return client, closeConn, nil
}
