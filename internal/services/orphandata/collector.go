// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/blobaudit/internal/dbinterface"
)

// Collaborator is a domain that owns records referencing blob files.
type Collaborator interface {
	Name() string
	// ListLiveFilePaths returns every absolute path the domain references as of
	// the snapshot q. It must not write.
	ListLiveFilePaths(ctx context.Context, q dbinterface.Querier) ([]string, error)
}

// Collector unions the live paths of every registered collaborator.
type Collector struct {
	collaborators []Collaborator
	concurrency   int
}

func NewCollector(concurrency int, collaborators ...Collaborator) *Collector {
	if concurrency <= 0 {
		concurrency = defaultCollectConcurrency
	}
	return &Collector{
		collaborators: collaborators,
		concurrency:   concurrency,
	}
}

// Len returns the number of registered collaborators.
func (c *Collector) Len() int {
	return len(c.collaborators)
}

// Collect queries every collaborator against snap. Any single failure fails
// the whole collection; no partial set is ever returned.
func (c *Collector) Collect(ctx context.Context, snap dbinterface.Querier) (*PathSet, error) {
	live := NewPathSet()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, collab := range c.collaborators {
		g.Go(func() error {
			paths, err := collab.ListLiveFilePaths(gctx, snap)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrReferenceCollectionFailed, collab.Name(), err)
			}

			for _, p := range paths {
				if p == "" {
					continue
				}
				if !filepath.IsAbs(p) {
					return fmt.Errorf("%w: %s: relative path %q", ErrReferenceCollectionFailed, collab.Name(), p)
				}
				live.Add(NormalizePath(p))
			}

			log.Debug().Str("collaborator", collab.Name()).Int("paths", len(paths)).Msg("orphandata: collected references")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return live, nil
}
