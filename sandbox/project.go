package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// Project is the immutable bundle of generated texts for one language
type Project struct {
	Manifest string
	Solution string
	Test     string
	Extra    []string
}

// contents returns the text for each file of d, in descriptor order
func (p Project) contents(d Descriptor) ([]string, error) {
	texts := make([]string, 0, len(d.Files))
	extra := 0
	for _, f := range d.Files {
		switch f.Role {
		case RoleManifest:
			texts = append(texts, p.Manifest)
		case RoleSolution:
			texts = append(texts, p.Solution)
		case RoleTest:
			texts = append(texts, p.Test)
		case RoleExtraConfig:
			if extra >= len(p.Extra) {
				return nil, fmt.Errorf("%s project needs extra config for %s", d.Language, f.Path)
			}
			texts = append(texts, p.Extra[extra])
			extra++
		}
	}
	return texts, nil
}

// WriteProject materializes p under root at the paths dictated by d, replacing
// any previous contents of root. root itself is never removed: running
// containers bind-mount it.
func WriteProject(fsys FileSystem, root string, d Descriptor, p Project) error {
	texts, err := p.contents(d)
	if err != nil {
		return err
	}

	if err := fsys.MkdirAll(root, DirPermission); err != nil {
		return fmt.Errorf("failed to create sandbox dir: %w", err)
	}
	if err := clearDir(fsys, root); err != nil {
		return fmt.Errorf("failed to clear sandbox dir: %w", err)
	}

	for i, f := range d.Files {
		target := filepath.Join(root, filepath.FromSlash(f.Path))
		if err := fsys.MkdirAll(filepath.Dir(target), DirPermission); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		if err := fsys.WriteFile(target, []byte(texts[i]), FilePermission); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}
	return nil
}

// clearDir removes every entry of dir but not dir itself
func clearDir(fsys FileSystem, dir string) error {
	names, err := fsys.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := fsys.RemoveAll(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// ReadProjectFiles reads the files of d under root verbatim, in descriptor
// order. A missing file is reported as ErrMissingProjectFile.
func ReadProjectFiles(fsys FileSystem, root string, d Descriptor) ([]string, error) {
	texts := make([]string, 0, len(d.Files))
	for _, f := range d.Files {
		data, err := fsys.ReadFile(filepath.Join(root, filepath.FromSlash(f.Path)))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrMissingProjectFile, f.Path, f.Role)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
		}
		texts = append(texts, string(data))
	}
	return texts, nil
}
