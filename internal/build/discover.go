// Package build compiles every shader under a directory tree.
package build

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/Faultbox/shaderc/internal/pipeline"
)

// Source file extensions. Headers are only reachable through #include.
const (
	ShaderExt = ".hlsl"
	HeaderExt = ".hlsli"
)

// ErrDuplicateArtifact is returned when two shaders map to the same artifact.
var ErrDuplicateArtifact = errors.New("shaders map to the same artifact")

// Job is one shader to compile.
type Job struct {
	Name     string // shader name, the file stem
	Path     string // source path
	Rel      string // source path relative to the build root
	Artifact string // artifact path relative to the output directory
}

// Discover finds shader sources under root, skipping hidden entries and
// paths matched by root/ignoreFile (gitignore syntax) when it exists.
// Jobs are sorted by relative path.
func Discover(root, ignoreFile string) ([]Job, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	gi, err := loadIgnore(root, ignoreFile)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if path == root {
			return nil
		}
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if gi != nil && gi.MatchesPath(filepath.ToSlash(rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(name), ShaderExt) {
			return nil
		}

		stem := strings.TrimSuffix(name, filepath.Ext(name))
		jobs = append(jobs, Job{
			Name:     stem,
			Path:     path,
			Rel:      rel,
			Artifact: filepath.Join(filepath.Dir(rel), pipeline.ArtifactName(stem)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Rel < jobs[j].Rel
	})

	seen := make(map[string]string, len(jobs))
	for _, job := range jobs {
		if prev, dup := seen[job.Artifact]; dup {
			return nil, fmt.Errorf("%w: %s and %s -> %s", ErrDuplicateArtifact, prev, job.Rel, job.Artifact)
		}
		seen[job.Artifact] = job.Rel
	}

	return jobs, nil
}

func loadIgnore(root, ignoreFile string) (*ignore.GitIgnore, error) {
	if ignoreFile == "" {
		return nil, nil
	}
	path := filepath.Join(root, ignoreFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return gi, nil
}
