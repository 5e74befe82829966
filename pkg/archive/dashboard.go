package archive

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
)

const (
	recentProjectsLimit = 5
	trendWindow         = 30 * 24 * time.Hour
)

// Dashboard aggregates counts over the projects visible to actor.
// Administrators see every project and the user total; others see only
// their membership set.
func (s *Service) Dashboard(ctx context.Context, actor *auth.Identity) (*Dashboard, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthenticated
	}

	dashboard := &Dashboard{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.projects.CountVisible(gctx, actor)
		if err != nil {
			return err
		}
		dashboard.TotalProjects = counts.Total
		dashboard.ActiveProjects = counts.Active
		return nil
	})

	g.Go(func() error {
		n, err := s.countVisible(gctx, actor, "vulnerability_scans")
		dashboard.TotalScans = n
		return err
	})

	g.Go(func() error {
		n, err := s.countVisible(gctx, actor, "system_reports")
		dashboard.TotalReports = n
		return err
	})

	if actor.IsAdmin() {
		g.Go(func() error {
			err := s.db.QueryRowContext(gctx, "SELECT COUNT(*) FROM users").Scan(&dashboard.TotalUsers)
			if err != nil {
				return fmt.Errorf("failed to count users: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		totals, err := s.latestSummaries(gctx, actor)
		if err != nil {
			return err
		}
		dashboard.TotalVulnerabilities = totals.Total
		dashboard.CriticalVulnerabilities = totals.Critical
		return nil
	})

	g.Go(func() error {
		trends, err := s.trends(gctx, actor, s.now().UTC().Add(-trendWindow))
		dashboard.VulnerabilityTrends = trends
		return err
	})

	g.Go(func() error {
		list, err := s.projects.ListProjects(gctx, actor)
		if err != nil {
			return err
		}
		if len(list) > recentProjectsLimit {
			list = list[:recentProjectsLimit]
		}
		dashboard.RecentProjects = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dashboard, nil
}

// visibleClause restricts alias.project_id to actor's membership set
func visibleClause(actor *auth.Identity, alias string, args []interface{}) (string, []interface{}) {
	if actor.IsAdmin() {
		return "", args
	}
	args = append(args, actor.ID)
	return fmt.Sprintf(" AND %s.project_id IN (SELECT project_id FROM project_members WHERE user_id = $%d)", alias, len(args)), args
}

func (s *Service) countVisible(ctx context.Context, actor *auth.Identity, table string) (int64, error) {
	clause, args := visibleClause(actor, "t", nil)
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" t WHERE 1 = 1"+clause, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// latestSummaries sums the latest scan summary of every visible project
func (s *Service) latestSummaries(ctx context.Context, actor *auth.Identity) (Summary, error) {
	clause, args := visibleClause(actor, "s", nil)
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.scan_data
		FROM vulnerability_scans s
		WHERE s.id = (
			SELECT s2.id FROM vulnerability_scans s2
			WHERE s2.project_id = s.project_id
			ORDER BY s2.created_at DESC, s2.id DESC
			LIMIT 1
		)`+clause, args...)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to query latest scans: %w", err)
	}
	defer rows.Close()

	var totals Summary
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return Summary{}, fmt.Errorf("failed to scan latest scan: %w", err)
		}
		summary, _ := scanView([]byte(document))
		totals.Add(summary)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("failed to iterate latest scans: %w", err)
	}
	return totals, nil
}

// trends groups visible scans since the cutoff by UTC day
func (s *Service) trends(ctx context.Context, actor *auth.Identity, since time.Time) ([]TrendPoint, error) {
	clause, args := visibleClause(actor, "s", []interface{}{since})
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.scan_data, s.created_at
		FROM vulnerability_scans s
		WHERE s.created_at >= $1`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan trends: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]*TrendPoint)
	for rows.Next() {
		var document string
		var createdAt time.Time
		if err := rows.Scan(&document, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan trend row: %w", err)
		}
		day := createdAt.UTC().Format("2006-01-02")
		point, ok := byDay[day]
		if !ok {
			point = &TrendPoint{Date: day}
			byDay[day] = point
		}
		summary, _ := scanView([]byte(document))
		point.Scans++
		point.Total += summary.Total
		point.Critical += summary.Critical
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scan trends: %w", err)
	}

	trends := make([]TrendPoint, 0, len(byDay))
	for _, point := range byDay {
		trends = append(trends, *point)
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Date < trends[j].Date })
	return trends, nil
}
