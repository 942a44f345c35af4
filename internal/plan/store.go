package plan

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lazyaider/lazyaider/internal/logging"
)

var planLog = logging.ForComponent(logging.CompPlan)

// ErrPlanNotFound is returned when a plan file or slug does not exist.
var ErrPlanNotFound = errors.New("plan not found")

// MetadataFileName is the per-plan TOML sidecar with generation details.
const MetadataFileName = "plan.toml"

// FeatureDescriptionFileName stores the description the plan was generated from.
const FeatureDescriptionFileName = "feature_description.md"

// Metadata records how a plan was generated. Written next to the plan
// markdown so regeneration and provenance are inspectable.
type Metadata struct {
	Title            string    `toml:"title"`
	Slug             string    `toml:"slug"`
	Model            string    `toml:"model,omitempty"`
	CreatedAt        time.Time `toml:"created_at"`
	PromptTokens     int       `toml:"prompt_tokens,omitempty"`
	CompletionTokens int       `toml:"completion_tokens,omitempty"`
	TotalTokens      int       `toml:"total_tokens,omitempty"`
}

// Store persists plans under a plans directory, one subdirectory per slug.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir (e.g. .lazyaider/plans).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the plans directory root.
func (s *Store) Dir() string {
	return s.dir
}

// SaveOptions control how a plan is written.
type SaveOptions struct {
	// Regenerate overwrites an existing plan with the same slug instead of
	// allocating a suffixed slug. Overwrites only happen when this is set.
	Regenerate bool

	// FeatureDescription, when non-empty, is saved alongside the plan.
	FeatureDescription string

	// Metadata is written to plan.toml. Title/Slug/CreatedAt are filled in
	// when left zero.
	Metadata Metadata
}

// Save writes the plan under <dir>/<slug>/<slug>.md and returns the path to
// the markdown file. When the slug is already taken and Regenerate is not
// set, an incrementing counter is appended until a free slug is found; the
// plan's Slug field is updated to the slug actually used.
func (s *Store) Save(p *Plan, opts SaveOptions) (string, error) {
	slug := p.Slug
	if slug == "" {
		slug = Slugify(p.Title)
	}

	if !opts.Regenerate {
		var err error
		slug, err = s.availableSlug(slug)
		if err != nil {
			return "", err
		}
	}
	p.Slug = slug

	planDir := filepath.Join(s.dir, slug)
	if err := os.MkdirAll(planDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create plan directory: %w", err)
	}

	planPath := filepath.Join(planDir, slug+".md")
	if err := writeFileAtomic(planPath, []byte(p.Raw)); err != nil {
		return "", fmt.Errorf("failed to write plan: %w", err)
	}

	if opts.FeatureDescription != "" {
		descPath := filepath.Join(planDir, FeatureDescriptionFileName)
		if err := writeFileAtomic(descPath, []byte(opts.FeatureDescription)); err != nil {
			return "", fmt.Errorf("failed to write feature description: %w", err)
		}
	}

	meta := opts.Metadata
	if meta.Title == "" {
		meta.Title = p.Title
	}
	meta.Slug = slug
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	if err := s.writeMetadata(planDir, meta); err != nil {
		return "", err
	}

	planLog.Info("plan_saved",
		slog.String("slug", slug),
		slog.Int("sections", len(p.Sections)),
		slog.Bool("regenerate", opts.Regenerate))
	return planPath, nil
}

// availableSlug returns slug if unused, otherwise slug-2, slug-3, ...
func (s *Store) availableSlug(slug string) (string, error) {
	candidate := slug
	for i := 2; ; i++ {
		_, err := os.Stat(filepath.Join(s.dir, candidate))
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat plan directory: %w", err)
		}
		candidate = fmt.Sprintf("%s-%d", slug, i)
	}
}

func (s *Store) writeMetadata(planDir string, meta Metadata) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(meta); err != nil {
		return fmt.Errorf("failed to encode plan metadata: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(planDir, MetadataFileName), buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write plan metadata: %w", err)
	}
	return nil
}

// Metadata reads the plan.toml sidecar for slug. Missing sidecars are not an
// error; a zero Metadata is returned (plans written by older versions).
func (s *Store) Metadata(slug string) (Metadata, error) {
	var meta Metadata
	path := filepath.Join(s.dir, slug, MetadataFileName)
	if _, err := toml.DecodeFile(path, &meta); err != nil {
		if os.IsNotExist(err) {
			return Metadata{Slug: slug}, nil
		}
		return Metadata{}, fmt.Errorf("failed to read plan metadata: %w", err)
	}
	return meta, nil
}

// Load reads and parses the plan markdown at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, path)
		}
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	p, err := Parse(string(data))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// LoadBySlug loads <dir>/<slug>/<slug>.md. The parsed plan keeps the on-disk
// slug even when the title inside the file would slugify differently (the
// collision counter can make them diverge).
func (s *Store) LoadBySlug(slug string) (*Plan, error) {
	p, err := Load(filepath.Join(s.dir, slug, slug+".md"))
	if err != nil {
		return nil, err
	}
	p.Slug = slug
	return p, nil
}

// List returns the slugs of all stored plans in sorted order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	var slugs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		// Only directories that actually contain the plan file count.
		if _, err := os.Stat(filepath.Join(s.dir, e.Name(), e.Name()+".md")); err == nil {
			slugs = append(slugs, e.Name())
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

// writeFileAtomic writes data via a temp file and rename so readers never see
// a partially written file.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
