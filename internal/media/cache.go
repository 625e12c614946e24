// Package media caches remote media files on local disk and manages the
// uploaded image and document directories.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"catalog-service/internal/apperrors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// MediaType selects the directory a file lives in.
type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeDocument MediaType = "document"
)

// Fetcher opens a remote resource for reading.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

type Config struct {
	ImageDir          string // STATIC_IMAGES_PATH
	DocumentDir       string // STATIC_DOCS_PATH
	BaseURL           string // APP_URL
	PublicImagePrefix string // STATIC_IMAGES_PATH_API
}

// Cache resolves remote URLs to files under the configured directories.
// Files are keyed by the last path segment of the URL only; two URLs ending
// in the same name share one cached file and the first download wins.
type Cache struct {
	cfg     Config
	fetcher Fetcher
	group   singleflight.Group
	logger  *logrus.Entry
}

func NewCache(cfg Config, fetcher Fetcher, logger *logrus.Entry) *Cache {
	return &Cache{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger.WithField("component", "media_cache"),
	}
}

// Resolve returns the local path of the file behind rawURL, downloading it on
// the first request. Concurrent misses for the same file share one download.
func (c *Cache) Resolve(ctx context.Context, rawURL string, t MediaType) (string, error) {
	dir, err := c.dir(t)
	if err != nil {
		return "", err
	}
	name, err := FileNameFromURL(rawURL)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, name)

	if fileExists(target) {
		return target, nil
	}

	// The download outlives any single caller so one cancelled request does
	// not fail the others waiting on the same file.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(t)+"/"+name, func() (interface{}, error) {
		if fileExists(target) {
			return nil, nil
		}
		return nil, c.download(fetchCtx, rawURL, dir, name)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		c.logger.WithFields(logrus.Fields{
			"url":    rawURL,
			"path":   target,
			"shared": res.Shared,
		}).Debug("Media cached")
		return target, nil
	}
}

func (c *Cache) download(ctx context.Context, rawURL, dir, name string) error {
	body, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if apperrors.KindOf(err) != "" {
			return err
		}
		return apperrors.Transient("MEDIA_FETCH_FAILED", err, "failed to fetch %s", rawURL)
	}
	defer body.Close()

	if err := writeAtomically(dir, name, body); err != nil {
		return apperrors.Transient("MEDIA_FETCH_FAILED", err, "failed to store %s", rawURL)
	}
	return nil
}

// PublicURL converts a cached image path into the absolute URL it is served at.
func (c *Cache) PublicURL(localPath string) (string, error) {
	if c.cfg.BaseURL == "" {
		return "", apperrors.Configuration("MEDIA_BASE_URL_MISSING", "APP_URL is not configured")
	}
	if c.cfg.PublicImagePrefix == "" {
		return "", apperrors.Configuration("MEDIA_PUBLIC_PATH_MISSING", "STATIC_IMAGES_PATH_API is not configured")
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + path.Join("/", c.cfg.PublicImagePrefix, filepath.Base(localPath)), nil
}

// Path returns the local path of a named file without touching the disk.
func (c *Cache) Path(name string, t MediaType) (string, error) {
	dir, err := c.dir(t)
	if err != nil {
		return "", err
	}
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (c *Cache) Exists(name string, t MediaType) (bool, error) {
	p, err := c.Path(name, t)
	if err != nil {
		return false, err
	}
	return fileExists(p), nil
}

// Open returns a reader for a stored file.
func (c *Cache) Open(name string, t MediaType) (io.ReadCloser, error) {
	p, err := c.Path(name, t)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NotFound("FILE_NOT_FOUND", "file %s not found", name)
	}
	if err != nil {
		return nil, apperrors.Transient("FILE_READ_FAILED", err, "failed to open %s", name)
	}
	return f, nil
}

// Save stores an uploaded file, replacing any file with the same name.
func (c *Cache) Save(name string, t MediaType, r io.Reader) (string, error) {
	p, err := c.Path(name, t)
	if err != nil {
		return "", err
	}
	if err := writeAtomically(filepath.Dir(p), name, r); err != nil {
		return "", apperrors.Transient("FILE_WRITE_FAILED", err, "failed to store %s", name)
	}
	return p, nil
}

func (c *Cache) Delete(name string, t MediaType) error {
	p, err := c.Path(name, t)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return apperrors.NotFound("FILE_NOT_FOUND", "file %s not found", name)
	}
	if err != nil {
		return apperrors.Transient("FILE_DELETE_FAILED", err, "failed to delete %s", name)
	}
	return nil
}

func (c *Cache) dir(t MediaType) (string, error) {
	var dir, env string
	switch t {
	case MediaTypeImage:
		dir, env = c.cfg.ImageDir, "STATIC_IMAGES_PATH"
	case MediaTypeDocument:
		dir, env = c.cfg.DocumentDir, "STATIC_DOCS_PATH"
	default:
		return "", apperrors.Validation("INVALID_MEDIA_TYPE", "unknown media type %q", t)
	}
	if dir == "" {
		return "", apperrors.Configuration("MEDIA_DIR_MISSING", "%s is not configured", env)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", apperrors.Configuration("MEDIA_DIR_MISSING", "%s directory %s does not exist", env, dir)
	}
	return dir, nil
}

// FileNameFromURL returns the trailing path segment of rawURL.
func FileNameFromURL(rawURL string) (string, error) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(p)
	if err := validateName(name); err != nil {
		return "", apperrors.Validation("INVALID_MEDIA_URL", "cannot derive a file name from %q", rawURL)
	}
	return name, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || name == "/" || strings.ContainsAny(name, `/\`) {
		return apperrors.Validation("INVALID_FILE_NAME", "invalid file name %q", name)
	}
	return nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// writeAtomically streams r into dir/name through a temp file so readers never
// see a partial file.
func writeAtomically(dir, name string, r io.Reader) error {
	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
