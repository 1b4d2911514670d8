// Package artifact owns the temporary media files the pipeline works on.
// Every artifact must be released on every exit path; release failures are
// logged and never propagated.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrTooLarge = errors.New("artifact: file exceeds size limit")

type Manager struct {
	dir      string
	maxBytes int64
	client   *http.Client
	logger   zerolog.Logger
}

func NewManager(dir string, maxBytes int64, logger zerolog.Logger) *Manager {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Manager{
		dir:      dir,
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: 5 * time.Minute},
		logger:   logger.With().Str("service", "artifact").Logger(),
	}
}

// Artifact is a temp file on local storage. Whoever holds it releases it.
type Artifact struct {
	Path string
	m    *Manager
}

// Download fetches url into a fresh temp file and returns the artifact.
// The file is removed again if anything goes wrong mid-download.
func (m *Manager) Download(ctx context.Context, url, ext string) (*Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("artifact: download status %d", resp.StatusCode)
	}

	path := filepath.Join(m.dir, uuid.NewString()+ext)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	var reader io.Reader = resp.Body
	if m.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, m.maxBytes+1)
	}
	n, err := io.Copy(f, reader)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && m.maxBytes > 0 && n > m.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		m.Remove(path)
		return nil, err
	}
	return &Artifact{Path: path, m: m}, nil
}

// Adopt wraps an existing file (e.g. extracted audio) as a managed artifact.
func (m *Manager) Adopt(path string) *Artifact {
	return &Artifact{Path: path, m: m}
}

// Remove deletes a file by path, logging failures instead of returning them.
// Already-gone files are fine: teardown paths can race the janitor sweep.
func (m *Manager) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn().Err(err).Str("path", path).Msg("failed to remove artifact")
	}
}

// Release deletes the artifact's file.
func (a *Artifact) Release() {
	if a == nil {
		return
	}
	a.m.Remove(a.Path)
}

// SiblingPath derives a path next to the artifact for a converted copy.
func (a *Artifact) SiblingPath(suffix string) string {
	return a.Path + suffix
}
