// Package provider resolves media providers by file extension or format name
// and holds the process-wide registry.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmylchreest/mediatool/internal/media"
	"github.com/jmylchreest/mediatool/internal/observability"
)

// Registry maps formats to providers. Registration happens during start-up;
// afterwards the registry is only read.
type Registry struct {
	mu        sync.RWMutex
	providers []media.Provider
	byExt     map[string]media.Provider
	byName    map[string]media.Provider
	inspector media.Inspector
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byExt:  make(map[string]media.Provider),
		byName: make(map[string]media.Provider),
		logger: observability.WithComponent(logger, "provider"),
	}
}

// Register adds a provider. A later provider claiming an extension that is
// already registered does not replace the earlier one.
func (r *Registry) Register(p media.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = append(r.providers, p)
	r.byName[strings.ToLower(p.Name())] = p
	for _, ext := range p.Extensions() {
		ext = strings.ToLower(ext)
		if _, exists := r.byExt[ext]; !exists {
			r.byExt[ext] = p
		}
	}
}

// SetInspector sets the fallback used by Inspect for inputs no provider can
// open.
func (r *Registry) SetInspector(i media.Inspector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inspector = i
}

// Providers returns the registered providers in registration order.
func (r *Registry) Providers() []media.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]media.Provider(nil), r.providers...)
}

// ByName returns the provider registered under a format name.
func (r *Registry) ByName(name string) (media.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[strings.ToLower(name)]
	return p, ok
}

// ForPath returns the provider handling path's extension.
func (r *Registry) ForPath(path string) (media.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return p, ok
}

// OpenInput opens path with the provider for its extension. Unknown formats
// return an error wrapping media.ErrIOOpenFailed.
func (r *Registry) OpenInput(ctx context.Context, path string) (media.Demuxer, error) {
	p, ok := r.ForPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s: no provider for %q files", media.ErrIOOpenFailed, path, filepath.Ext(path))
	}
	return p.OpenInput(ctx, path)
}

// CreateOutput creates path with the provider for its extension. Unknown
// formats return an error wrapping media.ErrIOCreateFailed.
func (r *Registry) CreateOutput(ctx context.Context, path string) (media.Muxer, error) {
	p, ok := r.ForPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s: no provider for %q files", media.ErrIOCreateFailed, path, filepath.Ext(path))
	}
	return p.CreateOutput(ctx, path)
}

// FindEncoder searches every registered provider for id.
func (r *Registry) FindEncoder(id media.CodecID) (media.Codec, error) {
	for _, p := range r.Providers() {
		if c, err := p.FindEncoder(id); err == nil {
			return c, nil
		}
	}
	return media.Codec{}, fmt.Errorf("%w: no registered provider can write %s", media.ErrUnsupportedCodec, id)
}

// Inspect opens path for metadata only. Inputs the demuxing providers cannot
// open are handed to the fallback inspector when one is set.
func (r *Registry) Inspect(ctx context.Context, path string) (media.InputContainer, error) {
	r.mu.RLock()
	inspector := r.inspector
	r.mu.RUnlock()

	var openErr error
	if p, ok := r.ForPath(path); ok {
		in, err := p.OpenInput(ctx, path)
		if err == nil {
			return in, nil
		}
		openErr = err
		if inspector == nil {
			return nil, err
		}
		r.logger.WarnContext(ctx, "provider could not open input, falling back to inspector",
			slog.String("provider", p.Name()),
			slog.String("input", path),
			slog.String("error", err.Error()),
		)
	}

	if inspector == nil {
		return nil, fmt.Errorf("%w: %s: no provider for %q files", media.ErrIOOpenFailed, path, filepath.Ext(path))
	}

	c, err := inspector.Inspect(ctx, path)
	if err != nil {
		if openErr != nil {
			return nil, errors.Join(openErr, err)
		}
		return nil, err
	}
	return c, nil
}
