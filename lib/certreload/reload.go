// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package certreload

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Config configures a Reloader.
type Config struct {
	// CertificatePath and KeyPath are PEM files. Required.
	CertificatePath string
	KeyPath         string

	// Logger receives reload results. Required.
	Logger *slog.Logger
}

// Reloader holds the current certificate.
type Reloader struct {
	certificatePath string
	keyPath         string
	logger          *slog.Logger

	mu          sync.RWMutex
	certificate *tls.Certificate
	reloads     uint64

	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New loads the certificate and starts watching its files. The initial
// load must succeed.
func New(config Config) (*Reloader, error) {
	if config.CertificatePath == "" || config.KeyPath == "" {
		return nil, errors.New("certreload: certificate and key paths are required")
	}
	if config.Logger == nil {
		panic("certreload.New: Logger is required")
	}

	reloader := &Reloader{
		certificatePath: filepath.Clean(config.CertificatePath),
		keyPath:         filepath.Clean(config.KeyPath),
		logger:          config.Logger,
		done:            make(chan struct{}),
	}
	if err := reloader.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("certreload: creating watcher: %w", err)
	}
	directories := map[string]bool{
		filepath.Dir(reloader.certificatePath): true,
		filepath.Dir(reloader.keyPath):         true,
	}
	for directory := range directories {
		if err := watcher.Add(directory); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("certreload: watching %s: %w", directory, err)
		}
	}
	reloader.watcher = watcher

	reloader.wg.Add(1)
	go reloader.processEvents()
	return reloader, nil
}

// Reload reads both files now. On failure the previous certificate
// stays in use.
func (r *Reloader) Reload() error {
	certificate, err := tls.LoadX509KeyPair(r.certificatePath, r.keyPath)
	if err != nil {
		return fmt.Errorf("certreload: loading %s: %w", r.certificatePath, err)
	}
	r.mu.Lock()
	r.certificate = &certificate
	r.reloads++
	r.mu.Unlock()
	return nil
}

// Reloads returns how many times a certificate was loaded, counting
// the initial load.
func (r *Reloader) Reloads() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reloads
}

// GetCertificate returns the current certificate. It matches the
// signature of tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.certificate, nil
}

// TLSConfig returns a server configuration that always presents the
// current certificate.
func (r *Reloader) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
}

// Close stops watching. The last loaded certificate stays available.
func (r *Reloader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.watcher.Close()
		r.wg.Wait()
	})
	return err
}

func (r *Reloader) processEvents() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			r.handleEvent(event)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("certificate watcher error", "error", err)
		}
	}
}

func (r *Reloader) handleEvent(event fsnotify.Event) {
	name := filepath.Clean(event.Name)
	if name != r.certificatePath && name != r.keyPath {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	if err := r.Reload(); err != nil {
		r.logger.Warn("certificate reload failed, keeping the previous certificate",
			"file", name, "op", event.Op.String(), "error", err)
		return
	}
	r.logger.Info("certificate reloaded", "file", name)
}
