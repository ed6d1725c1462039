// Package sync reconciles configured word-list sources into the store:
// new entries are inserted as new vocabulary items, entries that vanished
// from their source are deleted, and everything in between keeps its
// learning progress (identity is the content hash, not the file position).
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/wordgate/internal/gitsource"
	"github.com/example/wordgate/internal/parser"
	"github.com/example/wordgate/internal/storage"
	"github.com/example/wordgate/internal/vocab"
)

// SourceType classifies how a source path should be materialized.
const (
	TypeLocal = "local"
	TypeGit   = "git"
)

// DetectType classifies a source path as local or git.
func DetectType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return TypeGit
	}
	return TypeLocal
}

// Run iterates over all registered sources and reconciles each into the
// store. Per-source failures are logged and skipped; Run only fails on
// store-level errors.
func Run(ctx context.Context, db *storage.DB, reposDir string) error {
	slog.Info("starting sync for all sources")
	sources, err := db.GetAllSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Info("no sources configured")
		return nil
	}

	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		return fmt.Errorf("failed to create repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		scanPath := source.Path
		if source.Type == TypeGit {
			localRepoPath, err := gitURLToLocalPath(reposDir, source.Path)
			if err != nil {
				slog.Error("cannot determine local path for git source", "url", source.Path, "error", err)
				continue
			}
			if err := gitsource.Sync(ctx, source.Path, localRepoPath); err != nil {
				slog.Error("failed to sync git source", "url", source.Path, "error", err)
				continue
			}
			scanPath = localRepoPath
		}

		if err := reconcileSource(ctx, db, source.ID, scanPath); err != nil {
			slog.Error("failed to reconcile source", "id", source.ID, "error", err)
		}
	}
	slog.Info("sync complete")
	return nil
}

// reconcileSource walks a source directory, inserts entries not yet in the
// store and deletes items whose entry disappeared from the source.
func reconcileSource(ctx context.Context, db *storage.DB, sourceID int64, path string) error {
	foundHashes := make(map[string]bool)
	var parsed, inserted int
	var parseErrors []error

	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isWordList(d.Name()) {
			return nil
		}

		entries, parseErr := parser.ParseFile(p)
		if parseErr != nil {
			parseErrors = append(parseErrors, fmt.Errorf("parsing %s: %w", p, parseErr))
			return nil
		}

		for _, entry := range entries {
			hash := vocab.Hash(entry)
			parsed++
			foundHashes[hash] = true

			existing, findErr := db.FindItemByHash(ctx, hash)
			if findErr != nil {
				parseErrors = append(parseErrors, fmt.Errorf("store check for %s: %w", hash, findErr))
				continue
			}
			if existing != nil {
				continue
			}

			if _, insertErr := db.InsertImportedItem(ctx, entry.Word, entry.Translation, hash, sourceID); insertErr != nil {
				parseErrors = append(parseErrors, fmt.Errorf("store insert for %s: %w", hash, insertErr))
				continue
			}
			inserted++
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("failed to walk %s: %w", path, walkErr)
	}

	// Entries gone from the source are orphans; remove them.
	stored, err := db.ItemsBySource(ctx, sourceID)
	if err != nil {
		return err
	}
	var orphans int
	for _, item := range stored {
		if !item.ContentHash.Valid || foundHashes[item.ContentHash.String] {
			continue
		}
		orphans++
		if err := db.DeleteItem(ctx, item.ID); err != nil {
			slog.Warn("failed to delete orphaned item", "id", item.ID, "error", err)
		}
	}

	if err := db.UpdateSourceLastScanned(ctx, sourceID); err != nil {
		slog.Warn("failed to update last scanned", "source_id", sourceID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", path,
		"parsed", parsed,
		"inserted", inserted,
		"orphaned_deleted", orphans,
		"errors", len(parseErrors),
	)
	return nil
}

func isWordList(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".txt")
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-style syntax: git@host:user/repo.git
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
