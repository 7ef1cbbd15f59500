package inference

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/ocrly/backend/internal/config"
	"github.com/ocrly/backend/internal/infrastructure/logger"
	"github.com/ocrly/backend/internal/infrastructure/remote"
	"github.com/pkg/sftp"
)

// Stager exposes an image at a location the inference endpoint can read and
// returns the file name it is reachable under inside the workspace.
type Stager interface {
	Stage(localPath string) (string, error)
}

// NewStager builds the stager selected by config: "local" for a shared
// volume, "sftp" when the inference endpoint runs on a separate host.
func NewStager(cfg config.StagingConfig, log *logger.Logger) (Stager, error) {
	switch cfg.Mode {
	case "local":
		return NewLocalStager(cfg.Dir), nil
	case "sftp":
		return NewSFTPStager(cfg, log), nil
	default:
		return nil, fmt.Errorf("inference: unknown staging mode %q", cfg.Mode)
	}
}

// LocalStager copies images into a directory mounted into the inference
// endpoint's container.
type LocalStager struct {
	dir string
}

func NewLocalStager(dir string) *LocalStager {
	return &LocalStager{dir: dir}
}

func (s *LocalStager) Stage(localPath string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := filepath.Base(localPath)
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return name, nil
}

// SFTPStager uploads images into the workspace of a remote inference host
// over SSH.
type SFTPStager struct {
	ssh       *remote.SSHClient
	remoteDir string
	log       *logger.Logger
}

func NewSFTPStager(cfg config.StagingConfig, log *logger.Logger) *SFTPStager {
	return &SFTPStager{
		ssh: remote.NewSSHClient(remote.SSHConfig{
			Host:       cfg.Host,
			Port:       cfg.Port,
			User:       cfg.User,
			Password:   cfg.Password,
			PrivateKey: cfg.PrivateKey,
		}),
		remoteDir: cfg.RemoteDir,
		log:       log,
	}
}

func (s *SFTPStager) Stage(localPath string) (string, error) {
	local, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer local.Close()

	stat, err := local.Stat()
	if err != nil {
		return "", err
	}

	conn, err := s.ssh.ConnectWithRetry()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		return "", fmt.Errorf("failed to create sftp client: %w", err)
	}
	defer sftpClient.Close()

	name := filepath.Base(localPath)
	remoteFile, err := sftpClient.Create(path.Join(s.remoteDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create remote file: %w", err)
	}

	written, err := remoteFile.ReadFrom(local)
	remoteFile.Close()
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if written != stat.Size() {
		return "", fmt.Errorf("upload incomplete: expected %d bytes, got %d", stat.Size(), written)
	}

	s.log.Infow("stage_sftp_ok", "name", name, "size_bytes", written)
	return name, nil
}
