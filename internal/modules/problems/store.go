package problems

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/pauli"
)

const (
	problemExt     = ".yaml"
	hamiltonianExt = ".pauli.msgpack"
)

// Store reads problems from one cache directory.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates a new problem store rooted at dir.
func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{
		dir: dir,
		log: log.With().Str("component", "problems").Logger(),
	}
}

// Dir is the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) problemPath(molecule string) string {
	return filepath.Join(s.dir, molecule+problemExt)
}

func (s *Store) hamiltonianPath(molecule string) string {
	return filepath.Join(s.dir, molecule+hamiltonianExt)
}

// Load reads and validates <dir>/<molecule>.yaml.
func (s *Store) Load(molecule string) (*Problem, error) {
	if molecule == "" || strings.ContainsAny(molecule, `/\`) {
		return nil, fmt.Errorf("%w: invalid molecule name %q", ErrProblemNotFound, molecule)
	}

	data, err := os.ReadFile(s.problemPath(molecule))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s in %s", ErrProblemNotFound, molecule, s.dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read problem %s: %w", molecule, err)
	}

	var p Problem
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProblem, molecule, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("problem %s: %w", molecule, err)
	}
	return &p, nil
}

// Save writes p as <dir>/<p.Name>.yaml and drops any stale Hamiltonian cache.
func (s *Store) Save(p *Problem) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode problem: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := writeFileAtomic(s.problemPath(p.Name), data); err != nil {
		return err
	}
	if err := os.Remove(s.hamiltonianPath(p.Name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to drop hamiltonian cache: %w", err)
	}
	return nil
}

// List returns the molecules with a problem file, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), problemExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), problemExt))
	}
	sort.Strings(names)
	return names, nil
}

// Hamiltonian returns the qubit Hamiltonian of p, reading the msgpack cache
// when it is newer than the problem file and rebuilding it otherwise. The
// bool reports a cache hit.
func (s *Store) Hamiltonian(p *Problem) (*pauli.Observable, bool, error) {
	cachePath := s.hamiltonianPath(p.Name)

	if s.cacheFresh(p.Name) {
		data, err := os.ReadFile(cachePath)
		if err == nil {
			o, err := pauli.Decode(data)
			if err == nil && o.NumQubits() == p.NumQubits() {
				return o, true, nil
			}
			s.log.Warn().Err(err).Str("path", cachePath).Msg("Discarding unreadable hamiltonian cache")
		}
	}

	o, err := p.Hamiltonian()
	if err != nil {
		return nil, false, err
	}

	data, err := o.MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.log.Warn().Err(err).Msg("Failed to create cache directory")
		return o, false, nil
	}
	if err := writeFileAtomic(cachePath, data); err != nil {
		s.log.Warn().Err(err).Str("path", cachePath).Msg("Failed to write hamiltonian cache")
		return o, false, nil
	}

	s.log.Debug().
		Str("molecule", p.Name).
		Int("terms", o.Len()).
		Msg("Hamiltonian cache written")

	return o, false, nil
}

func (s *Store) cacheFresh(molecule string) bool {
	cache, err := os.Stat(s.hamiltonianPath(molecule))
	if err != nil {
		return false
	}
	src, err := os.Stat(s.problemPath(molecule))
	if err != nil {
		// Problems saved elsewhere and only cached here are still usable.
		return errors.Is(err, fs.ErrNotExist)
	}
	return !cache.ModTime().Before(src.ModTime())
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
