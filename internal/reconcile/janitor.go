// Package reconcile removes remote assets that never got a metadata record.
package reconcile

import (
	"alcyxob/navistream/internal/storage"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultGracePeriod = time.Hour

// RecordChecker reports whether a metadata record exists for a publicID.
type RecordChecker interface {
	ExistsByPublicID(ctx context.Context, publicID string) (bool, error)
}

// Report summarises one sweep. Scanned counts publicIDs, not objects.
type Report struct {
	Scanned int
	Orphans []string
	Deleted int
	Errors  int
}

// Janitor groups stored objects by publicID and deletes every group that is
// older than GracePeriod and has no record. The grace period covers uploads
// whose record is still being written.
type Janitor struct {
	Store       storage.FileStorage
	Records     RecordChecker
	Folder      string
	GracePeriod time.Duration
	DryRun      bool
	Concurrency int
	Now         func() time.Time
	Log         zerolog.Logger
}

type group struct {
	publicID string
	keys     []string
	newest   time.Time
}

// Sweep executes a single reconciliation pass.
func (j *Janitor) Sweep(ctx context.Context) (Report, error) {
	var report Report
	if j == nil || j.Store == nil || j.Records == nil {
		return report, errors.New("reconcile janitor requires store and records")
	}
	grace := j.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now()
	}
	limit := j.Concurrency
	if limit <= 0 {
		limit = 4
	}

	prefix := strings.TrimSuffix(j.Folder, "/") + "/"
	objects, err := j.Store.ListObjects(ctx, prefix)
	if err != nil {
		return report, err
	}
	groups := groupByPublicID(prefix, objects)
	report.Scanned = len(groups)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, grp := range groups {
		if now.Sub(grp.newest) < grace {
			continue
		}
		exists, err := j.Records.ExistsByPublicID(ctx, grp.publicID)
		if err != nil {
			// a lookup failure must never be read as "orphaned"
			j.Log.Warn().Err(err).Str("public_id", grp.publicID).Msg("record lookup failed")
			mu.Lock()
			report.Errors++
			mu.Unlock()
			continue
		}
		if exists {
			continue
		}

		report.Orphans = append(report.Orphans, grp.publicID)
		j.Log.Info().Str("public_id", grp.publicID).Int("objects", len(grp.keys)).Bool("dry_run", j.DryRun).Msg("orphaned remote asset")
		if j.DryRun {
			continue
		}
		for _, key := range grp.keys {
			key := key
			g.Go(func() error {
				err := j.Store.DeleteObject(gctx, key)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					j.Log.Error().Err(err).Str("key", key).Msg("delete orphan object failed")
					report.Errors++
					return nil
				}
				report.Deleted++
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// groupByPublicID maps "folder/<id>.ext" and "folder/<id>/<transform>.ext" to "folder/<id>".
func groupByPublicID(prefix string, objects []storage.ObjectInfo) []*group {
	byID := map[string]*group{}
	for _, obj := range objects {
		rest := strings.TrimPrefix(obj.Key, prefix)
		if rest == obj.Key || rest == "" {
			continue
		}
		id := rest
		if i := strings.IndexAny(rest, "/."); i >= 0 {
			id = rest[:i]
		}
		if id == "" {
			continue
		}
		publicID := prefix + id
		grp, ok := byID[publicID]
		if !ok {
			grp = &group{publicID: publicID}
			byID[publicID] = grp
		}
		grp.keys = append(grp.keys, obj.Key)
		if obj.LastModified.After(grp.newest) {
			grp.newest = obj.LastModified
		}
	}

	groups := make([]*group, 0, len(byID))
	for _, grp := range byID {
		groups = append(groups, grp)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].publicID < groups[b].publicID })
	return groups
}
