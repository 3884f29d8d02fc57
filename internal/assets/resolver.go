package assets

// Resolver tries an override directory first and falls back to the
// embedded assets when a file is absent there.
type Resolver struct {
	custom   Loader
	embedded Loader
}

// NewResolver creates a Resolver. An empty dir means embedded assets only.
func NewResolver(dir string) (*Resolver, error) {
	r := &Resolver{embedded: NewEmbeddedLoader()}
	if dir != "" {
		fsl, err := NewFilesystemLoader(dir)
		if err != nil {
			return nil, err
		}
		r.custom = fsl
	}
	return r, nil
}

// LoadStyle implements Loader.
func (r *Resolver) LoadStyle(name string) (string, error) {
	return r.load(func(l Loader) (string, error) { return l.LoadStyle(name) })
}

// LoadTemplate implements Loader.
func (r *Resolver) LoadTemplate(name string) (string, error) {
	return r.load(func(l Loader) (string, error) { return l.LoadTemplate(name) })
}

func (r *Resolver) load(fn func(Loader) (string, error)) (string, error) {
	if r.custom == nil {
		return fn(r.embedded)
	}
	content, err := fn(r.custom)
	if err == nil {
		return content, nil
	}
	// Validation and I/O errors are not masked by the fallback.
	if !isNotFound(err) {
		return "", err
	}
	return fn(r.embedded)
}

// HasOverrides reports whether an override directory is configured.
func (r *Resolver) HasOverrides() bool {
	return r.custom != nil
}

var _ Loader = (*Resolver)(nil)
