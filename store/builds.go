package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/substitute/artifact"
	"github.com/chazu/substitute/subst"
)

// now is replaced in tests.
var now = time.Now

// Build is one ledger entry: a substitution applied to a project and the
// artifact it produced.
type Build struct {
	ID       uuid.UUID
	Project  string
	Mode     string
	Artifact artifact.Hash
	Started  time.Time
	Finished time.Time
	Sites    []Site
	Skipped  []string
}

// Site records one rewritten access.
type Site struct {
	Class  string
	Method string
	Index  int
	Kind   string
	Member string
	Rule   int
	Steps  int
}

// NewBuild creates a ledger entry for res. Started is the time the build
// began; Finished is set to now.
func NewBuild(project, mode string, started time.Time, res *subst.Result, hash artifact.Hash) *Build {
	b := &Build{
		ID:       uuid.New(),
		Project:  project,
		Mode:     mode,
		Artifact: hash,
		Started:  started,
		Finished: now(),
	}
	for _, rm := range res.Methods {
		for _, sr := range rm.Sites {
			b.Sites = append(b.Sites, Site{
				Class:  rm.Class.Name,
				Method: rm.Method.Selector(),
				Index:  sr.Site.Index,
				Kind:   sr.Site.Kind.String(),
				Member: sr.Site.Declaring.Name + "." + sr.Site.Member(),
				Rule:   sr.Rule,
				Steps:  sr.Steps,
			})
		}
	}
	for _, ce := range res.Skipped {
		b.Skipped = append(b.Skipped, ce.Error())
	}
	return b
}

// RecordBuild stores b and its sites. The artifact must already be stored.
func (s *Store) RecordBuild(ctx context.Context, b *Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var known int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM artifacts WHERE hash = ?", b.Artifact.String()).Scan(&known); err != nil {
		return fmt.Errorf("querying artifact: %w", err)
	}
	if known == 0 {
		return fmt.Errorf("build %s: artifact %s: %w", b.ID, b.Artifact.Short(), ErrNotFound)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO builds (id, project, mode, artifact, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?)",
		b.ID.String(), b.Project, b.Mode, b.Artifact.String(), b.Started.UnixNano(), b.Finished.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving build: %w", err)
	}
	for _, site := range b.Sites {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO sites (build, class, method, idx, kind, member, rule, steps) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			b.ID.String(), site.Class, site.Method, site.Index, site.Kind, site.Member, site.Rule, site.Steps,
		)
		if err != nil {
			return fmt.Errorf("saving site: %w", err)
		}
	}
	for _, reason := range b.Skipped {
		if _, err := tx.ExecContext(ctx, "INSERT INTO skipped (build, reason) VALUES (?, ?)", b.ID.String(), reason); err != nil {
			return fmt.Errorf("saving skipped site: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing build: %w", err)
	}
	log.Infof("recorded build %s: %d sites, %d skipped", b.ID, len(b.Sites), len(b.Skipped))
	return nil
}

// Builds lists the builds of project, newest first. A limit of zero or less
// lists all of them. Sites and skipped sites are not loaded.
func (s *Store) Builds(ctx context.Context, project string, limit int) ([]*Build, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, mode, artifact, started_at, finished_at FROM builds
		 WHERE project = ? ORDER BY finished_at DESC, rowid DESC LIMIT ?`,
		project, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying builds: %w", err)
	}
	defer rows.Close()

	var out []*Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Build loads one build with its sites.
func (s *Store) Build(ctx context.Context, id uuid.UUID) (*Build, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, project, mode, artifact, started_at, finished_at FROM builds WHERE id = ?", id.String())
	b, err := scanBuild(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("build %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT class, method, idx, kind, member, rule, steps FROM sites WHERE build = ? ORDER BY rowid", id.String())
	if err != nil {
		return nil, fmt.Errorf("querying sites: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var site Site
		if err := rows.Scan(&site.Class, &site.Method, &site.Index, &site.Kind, &site.Member, &site.Rule, &site.Steps); err != nil {
			return nil, fmt.Errorf("scanning site: %w", err)
		}
		b.Sites = append(b.Sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	skipped, err := s.db.QueryContext(ctx, "SELECT reason FROM skipped WHERE build = ? ORDER BY rowid", id.String())
	if err != nil {
		return nil, fmt.Errorf("querying skipped sites: %w", err)
	}
	defer skipped.Close()
	for skipped.Next() {
		var reason string
		if err := skipped.Scan(&reason); err != nil {
			return nil, fmt.Errorf("scanning skipped site: %w", err)
		}
		b.Skipped = append(b.Skipped, reason)
	}
	return b, skipped.Err()
}

// Latest returns the newest build of project.
func (s *Store) Latest(ctx context.Context, project string) (*Build, error) {
	builds, err := s.Builds(ctx, project, 1)
	if err != nil {
		return nil, err
	}
	if len(builds) == 0 {
		return nil, fmt.Errorf("project %q has no builds: %w", project, ErrNotFound)
	}
	return s.Build(ctx, builds[0].ID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*Build, error) {
	var (
		b                 Build
		id, hash          string
		started, finished int64
	)
	if err := row.Scan(&id, &b.Project, &b.Mode, &hash, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning build: %w", err)
	}
	var err error
	if b.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("build id %q: %w", id, err)
	}
	raw, err := hex.DecodeString(hash)
	if err != nil || len(raw) != len(b.Artifact) {
		return nil, fmt.Errorf("build %s: malformed artifact hash %q", id, hash)
	}
	copy(b.Artifact[:], raw)
	b.Started = time.Unix(0, started)
	b.Finished = time.Unix(0, finished)
	return &b, nil
}
