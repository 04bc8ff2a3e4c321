package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/eugenenazirov/confkit/pkg/source"
)

// DirsEnv names the environment variable listing configuration directories.
const DirsEnv = "CONFKIT_CONFIG_DIRS"

const defaultDir = "config"

// DefaultDirs returns the directories listed in CONFKIT_CONFIG_DIRS
// (os.PathListSeparator-separated), or "config" when it is unset or empty.
func DefaultDirs() []string {
	raw := strings.TrimSpace(os.Getenv(DirsEnv))
	if raw == "" {
		return []string{defaultDir}
	}

	var dirs []string
	for _, dir := range filepath.SplitList(raw) {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	if len(dirs) == 0 {
		return []string{defaultDir}
	}
	return dirs
}

// YAMLDirProvider yields one YAML source per *.yaml or *.yml file found
// directly inside its directories. Missing directories are skipped. A file
// that fails to parse is reported in the error while the other files are
// still returned.
type YAMLDirProvider struct {
	dirs []string
}

// NewYAMLDirProvider creates a provider scanning dirs.
func NewYAMLDirProvider(dirs ...string) *YAMLDirProvider {
	return &YAMLDirProvider{dirs: dirs}
}

func (p *YAMLDirProvider) Sources(ctx context.Context) ([]source.Source, error) {
	var (
		files   []string
		scanErr []error
	)
	for _, dir := range p.dirs {
		found, err := yamlFiles(dir)
		if err != nil {
			scanErr = append(scanErr, err)
			continue
		}
		files = append(files, found...)
	}
	sources, err := loadYAMLFiles(ctx, files)
	return sources, errors.Join(append(scanErr, err)...)
}

// YAMLFileProvider yields one YAML source per listed file. Every file must exist.
type YAMLFileProvider struct {
	files []string
}

// NewYAMLFileProvider creates a provider for the given files.
func NewYAMLFileProvider(files ...string) *YAMLFileProvider {
	return &YAMLFileProvider{files: files}
}

func (p *YAMLFileProvider) Sources(ctx context.Context) ([]source.Source, error) {
	return loadYAMLFiles(ctx, p.files)
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// loadYAMLFiles parses files concurrently. Files that fail are reported in
// the joined error; the sources that did load are returned either way, in
// file order.
func loadYAMLFiles(ctx context.Context, files []string) ([]source.Source, error) {
	loaded := make([]source.Source, len(files))
	errs := make([]error, len(files))

	var eg errgroup.Group
	eg.SetLimit(8)
	for i, file := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			s, err := source.NewYAMLFile(file)
			if err != nil {
				errs[i] = fmt.Errorf("load %s: %w", file, err)
				return nil
			}
			loaded[i] = s
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]source.Source, 0, len(files))
	for _, s := range loaded {
		if s != nil {
			out = append(out, s)
		}
	}
	return out, errors.Join(errs...)
}
