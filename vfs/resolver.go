// Package vfs maps FTP virtual paths onto a native filesystem.
//
// A virtual path is always absolute, uses "/" as its separator and may
// contain escaped slashes ("\/") and escaped backslashes ("\\") inside a
// name. In single-rooted mode the virtual root maps onto a native base
// directory. In volume mode the virtual root is a synthetic directory whose
// children are the system volumes (for example "/C" and "/D" on Windows).
//
// A Resolver carries a per-session current directory and is not safe for
// concurrent use; call Clone to give each session its own copy.
package vfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Entry describes one item of a directory listing.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Volume is a top-level entry of the virtual root in volume mode.
type Volume struct {
	// Name is the first segment of virtual paths on this volume, e.g. "C".
	Name string
	// Path is the native root of the volume, e.g. `C:\`.
	Path string
	// Size is the total capacity in bytes, reported as the listing size.
	Size int64
}

// VolumeLister enumerates the volumes currently available.
type VolumeLister func() ([]Volume, error)

// Resolver resolves virtual paths and performs filesystem operations on them.
type Resolver struct {
	fs      afero.Fs
	base    string
	volumes VolumeLister
	cwd     string
}

// Option configures a Resolver.
type Option func(*resolverConfig)

type resolverConfig struct {
	fs       afero.Fs
	base     string
	volumes  VolumeLister
	startDir string
}

// WithFs sets the native filesystem. The default is the operating system's.
func WithFs(fsys afero.Fs) Option {
	return func(c *resolverConfig) {
		c.fs = fsys
	}
}

// WithBase selects single-rooted mode with the virtual root mapped onto dir.
func WithBase(dir string) Option {
	return func(c *resolverConfig) {
		c.base = dir
	}
}

// WithVolumes selects volume mode using the given lister.
func WithVolumes(l VolumeLister) Option {
	return func(c *resolverConfig) {
		c.volumes = l
	}
}

// WithStartDir sets the native directory new sessions start in.
// It must lie inside the served tree.
func WithStartDir(dir string) Option {
	return func(c *resolverConfig) {
		c.startDir = dir
	}
}

// New creates a Resolver.
//
// Without WithBase or WithVolumes, volume mode is used where the platform
// provides a volume lister (Windows) and single-rooted mode over the native
// root "/" everywhere else.
func New(opts ...Option) (*Resolver, error) {
	c := resolverConfig{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.base == "" && c.volumes == nil {
		c.volumes = SystemVolumes()
		if c.volumes == nil {
			c.base = string(filepath.Separator)
		}
	}

	r := &Resolver{fs: c.fs, volumes: c.volumes, cwd: "/"}
	if c.base != "" {
		base, err := filepath.Abs(c.base)
		if err != nil {
			return nil, fmt.Errorf("resolve base directory: %w", err)
		}
		info, err := r.fs.Stat(base)
		if err != nil {
			return nil, fmt.Errorf("base directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("base directory %q is not a directory", base)
		}
		r.base = base
		r.volumes = nil
	}

	if c.startDir != "" {
		dir, err := filepath.Abs(c.startDir)
		if err != nil {
			return nil, fmt.Errorf("resolve start directory: %w", err)
		}
		v, err := r.Encode(dir)
		if err != nil {
			return nil, fmt.Errorf("start directory %q: %w", dir, err)
		}
		if _, err := r.ChangeDir(v); err != nil {
			return nil, fmt.Errorf("start directory %q: %w", dir, err)
		}
	}
	return r, nil
}

// Clone returns a Resolver sharing the filesystem and mode of r with an
// independent current directory.
func (r *Resolver) Clone() *Resolver {
	c := *r
	return &c
}

// VolumeMode reports whether the virtual root lists system volumes.
func (r *Resolver) VolumeMode() bool {
	return r.volumes != nil
}

// Encode converts a clean absolute native path into its virtual form.
func (r *Resolver) Encode(native string) (string, error) {
	root, rel, err := r.splitNative(native)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if root != "" {
		b.WriteString("/")
		b.WriteString(escapeName(root))
	}
	if rel != "." {
		for _, name := range strings.Split(rel, string(filepath.Separator)) {
			b.WriteString("/")
			b.WriteString(escapeName(name))
		}
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}

// splitNative returns the volume name (empty in single-rooted mode) and the
// path of native relative to the volume or base.
func (r *Resolver) splitNative(native string) (string, string, error) {
	if r.volumes == nil {
		rel, err := relInside(r.base, native)
		return "", rel, err
	}
	vols, err := r.volumes()
	if err != nil {
		return "", "", fmt.Errorf("list volumes: %w", err)
	}
	best := -1
	bestRel := ""
	for i, v := range vols {
		rel, err := relInside(v.Path, native)
		if err != nil {
			continue
		}
		if best < 0 || len(v.Path) > len(vols[best].Path) {
			best, bestRel = i, rel
		}
	}
	if best < 0 {
		return "", "", errorf(ErrNotFound, "Path is not on any volume.")
	}
	return vols[best].Name, bestRel, nil
}

func relInside(base, native string) (string, error) {
	rel, err := filepath.Rel(base, native)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errorf(ErrNotFound, "Path is outside the served tree.")
	}
	return rel, nil
}

// target is a resolved path. native is empty for the virtual root in
// volume mode.
type target struct {
	virtual string
	native  string
}

func (t target) isVirtualRoot() bool { return t.native == "" }

// Normalize returns the clean virtual form of p relative to the current
// directory. See Clean.
func (r *Resolver) Normalize(p string) (string, error) {
	return Clean(r.cwd, p)
}

// resolve normalizes p against the current directory and decodes it.
func (r *Resolver) resolve(p string) (target, error) {
	v, err := r.Normalize(p)
	if err != nil {
		return target{}, err
	}
	native, err := r.Decode(v)
	if err != nil {
		return target{}, err
	}
	return target{virtual: v, native: native}, nil
}

// Decode converts a normalized virtual path into a native one. It returns
// an empty string for the virtual root in volume mode.
func (r *Resolver) Decode(v string) (string, error) {
	segs := Segments(v)
	names := make([]string, 0, len(segs)+1)
	if r.volumes == nil {
		names = append(names, r.base)
	} else {
		if len(segs) == 0 {
			return "", nil
		}
		vol, err := r.volume(segs[0])
		if err != nil {
			return "", err
		}
		names = append(names, vol.Path)
		segs = segs[1:]
	}
	for _, seg := range segs {
		name, err := unescapeName(seg)
		if err != nil {
			return "", err
		}
		names = append(names, name)
	}
	return filepath.Join(names...), nil
}

func (r *Resolver) volume(seg string) (Volume, error) {
	vols, err := r.volumes()
	if err != nil {
		return Volume{}, fmt.Errorf("list volumes: %w", err)
	}
	for _, v := range vols {
		if strings.EqualFold(v.Name, seg) {
			return v, nil
		}
	}
	return Volume{}, errorf(ErrNotFound, "Path does not exist.")
}

func (r *Resolver) resolveNonRoot(p string) (target, error) {
	t, err := r.resolve(p)
	if err != nil {
		return t, err
	}
	if t.isVirtualRoot() {
		return t, errorf(ErrVirtualRoot, "Operation not permitted on the virtual root.")
	}
	return t, nil
}

func (r *Resolver) stat(native string) (fs.FileInfo, bool) {
	info, err := r.fs.Stat(native)
	if err != nil {
		return nil, false
	}
	return info, true
}

// CurrentDir returns the virtual current directory.
func (r *Resolver) CurrentDir() (string, error) {
	return r.cwd, nil
}

// ChangeDir makes p the current directory and returns its virtual form.
func (r *Resolver) ChangeDir(p string) (string, error) {
	t, err := r.resolve(p)
	if err != nil {
		return "", err
	}
	if t.isVirtualRoot() {
		r.cwd = "/"
		return r.cwd, nil
	}
	info, ok := r.stat(t.native)
	if !ok {
		return "", errorf(ErrNotFound, "Path does not exist.")
	}
	if !info.IsDir() {
		return "", errorf(ErrNotDir, "Path is not a directory.")
	}
	v, err := r.Encode(t.native)
	if err != nil {
		return "", err
	}
	r.cwd = v
	return v, nil
}

// ChangeToParentDir moves the current directory one level up. At the root
// it stays put.
func (r *Resolver) ChangeToParentDir() (string, error) {
	return r.ChangeDir("..")
}

// MakeDir creates the directory p and returns its virtual path.
func (r *Resolver) MakeDir(p string) (string, error) {
	t, err := r.resolveNonRoot(p)
	if err != nil {
		return "", err
	}
	if info, ok := r.stat(t.native); ok {
		if info.IsDir() {
			return "", errorf(ErrExists, "Directory already exists.")
		}
		return "", errorf(ErrExists, "A file with that name already exists.")
	}
	if err := r.fs.Mkdir(t.native, 0o755); err != nil {
		return "", nativeError(err, "Cannot create directory:")
	}
	return r.Encode(t.native)
}

// RemoveDir removes the empty directory p.
func (r *Resolver) RemoveDir(p string) error {
	t, err := r.resolveNonRoot(p)
	if err != nil {
		return err
	}
	info, ok := r.stat(t.native)
	if !ok || !info.IsDir() {
		return errorf(ErrNotFound, "Directory does not exist.")
	}
	children, err := afero.ReadDir(r.fs, t.native)
	if err != nil {
		return nativeError(err, "Cannot read directory:")
	}
	if len(children) > 0 {
		return errorf(ErrNotEmpty, "Directory is not empty.")
	}
	if err := r.fs.Remove(t.native); err != nil {
		return nativeError(err, "Cannot remove directory:")
	}
	return nil
}

// ReadFile opens the regular file p for reading.
func (r *Resolver) ReadFile(p string) (io.ReadCloser, error) {
	t, err := r.resolveNonRoot(p)
	if err != nil {
		return nil, err
	}
	info, ok := r.stat(t.native)
	if !ok || !info.Mode().IsRegular() {
		return nil, errorf(ErrNotFound, "File does not exist.")
	}
	f, err := r.fs.Open(t.native)
	if err != nil {
		return nil, nativeError(err, "Cannot open file:")
	}
	return f, nil
}

// WriteFile opens p for writing, creating it if needed. Existing content is
// kept; callers replacing a file call Truncate(0) before writing.
func (r *Resolver) WriteFile(p string) (afero.File, error) {
	t, err := r.resolveNonRoot(p)
	if err != nil {
		return nil, err
	}
	if info, ok := r.stat(t.native); ok && info.IsDir() {
		return nil, errorf(ErrNotFile, "Path is a directory.")
	}
	f, err := r.fs.OpenFile(t.native, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nativeError(err, "Cannot create file:")
	}
	return f, nil
}

// RemoveFile deletes the regular file p.
func (r *Resolver) RemoveFile(p string) error {
	t, err := r.resolveNonRoot(p)
	if err != nil {
		return err
	}
	info, ok := r.stat(t.native)
	if !ok || info.IsDir() {
		return errorf(ErrNotFound, "File does not exist.")
	}
	if err := r.fs.Remove(t.native); err != nil {
		return nativeError(err, "Cannot delete file:")
	}
	return nil
}

// Rename moves from to to. The target must not exist.
func (r *Resolver) Rename(from, to string) error {
	src, err := r.resolveNonRoot(from)
	if err != nil {
		return err
	}
	dst, err := r.resolveNonRoot(to)
	if err != nil {
		return err
	}
	if _, ok := r.stat(src.native); !ok {
		return errorf(ErrNotFound, "From-Path does not exist.")
	}
	if _, ok := r.stat(dst.native); ok {
		return errorf(ErrExists, "To-Path already exists.")
	}
	if err := r.fs.Rename(src.native, dst.native); err != nil {
		return nativeError(err, "Cannot rename:")
	}
	return nil
}

// List returns the entries of directory p, or a single entry if p is a
// file. An empty p lists the current directory. In volume mode the
// virtual root lists the volumes.
func (r *Resolver) List(p string) ([]Entry, error) {
	if p == "" {
		p = r.cwd
	}
	t, err := r.resolve(p)
	if err != nil {
		return nil, err
	}
	if t.isVirtualRoot() {
		return r.listVolumes()
	}
	info, ok := r.stat(t.native)
	if !ok {
		return nil, errorf(ErrNotFound, "Path does not exist.")
	}
	if !info.IsDir() {
		return []Entry{entryFor(info)}, nil
	}
	infos, err := afero.ReadDir(r.fs, t.native)
	if err != nil {
		return nil, nativeError(err, "Cannot read directory:")
	}
	entries := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, entryFor(fi))
	}
	return entries, nil
}

func entryFor(fi fs.FileInfo) Entry {
	e := Entry{
		Name:    escapeName(fi.Name()),
		IsDir:   fi.IsDir(),
		ModTime: fi.ModTime().UTC(),
	}
	if !e.IsDir {
		e.Size = fi.Size()
	}
	return e
}

func (r *Resolver) listVolumes() ([]Entry, error) {
	vols, err := r.volumes()
	if err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}
	entries := make([]Entry, 0, len(vols))
	for _, v := range vols {
		entries = append(entries, Entry{Name: v.Name, IsDir: true, Size: v.Size})
	}
	return entries, nil
}

func (r *Resolver) fileInfo(p string) (fs.FileInfo, error) {
	t, err := r.resolveNonRoot(p)
	if err != nil {
		return nil, err
	}
	info, ok := r.stat(t.native)
	if !ok || !info.Mode().IsRegular() {
		return nil, errorf(ErrNotFound, "File does not exist.")
	}
	return info, nil
}

// FileSize returns the size in bytes of the regular file p.
func (r *Resolver) FileSize(p string) (int64, error) {
	info, err := r.fileInfo(p)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ModTime returns the modification time (UTC) of the regular file p.
func (r *Resolver) ModTime(p string) (time.Time, error) {
	info, err := r.fileInfo(p)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime().UTC(), nil
}

// IsNotFound reports whether err means the path does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
