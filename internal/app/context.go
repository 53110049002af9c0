package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signoff/internal/config"
	"signoff/internal/domain"
	"signoff/internal/repo"
)

// ResolveProjectAndConfig picks the active project and ensures a project and
// its review config exist in the DB, seeding defaults when missing. It
// prefers the override, then falls back to a single-project DB. A project
// that does not exist yet is created on the fly.
func ResolveProjectAndConfig(ctx context.Context, projectOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	projectID := projectOverride
	if projectID == "" {
		if p, err := r.SingleProject(ctx); err == nil {
			projectID = p.ID
		} else {
			return "", nil, fmt.Errorf("project not specified; use --project")
		}
	}
	seedCfg := config.Default(projectID)

	if _, err := r.GetProject(ctx, projectID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := CreateProject(ctx, r, projectID, projectID, seedCfg, actorID); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetProjectConfig(ctx, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertProjectConfig(ctx, projectID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed project config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Project.ID = projectID
	return projectID, cfg, nil
}

// CreateProject inserts a project with its seed config and the creating
// actor in one transaction.
func CreateProject(ctx context.Context, r repo.Repo, projectID, name string, seedCfg *config.Config, actorID string) error {
	if seedCfg == nil {
		seedCfg = config.Default(projectID)
	}
	if name == "" {
		name = projectID
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	p := domain.Project{
		ID:        projectID,
		Name:      name,
		Status:    "active",
		CreatedAt: now,
	}
	if err := r.InsertProject(ctx, tx, p); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	if err := r.UpsertProjectConfigTx(ctx, tx, projectID, seedCfg); err != nil {
		return fmt.Errorf("insert project config: %w", err)
	}
	if actorID == "" {
		actorID = "local-user"
	}
	if err := r.EnsureActor(ctx, tx, actorID, ""); err != nil {
		return fmt.Errorf("ensure actor: %w", err)
	}
	return tx.Commit()
}
