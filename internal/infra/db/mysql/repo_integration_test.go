package mysql_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/threatlens/internal/domain/analyst"
	"github.com/bryanwahyu/threatlens/internal/domain/scanerrors"
	"github.com/bryanwahyu/threatlens/internal/domain/scans"
	"github.com/bryanwahyu/threatlens/internal/infra/db/migrations"
	"github.com/bryanwahyu/threatlens/internal/infra/db/mysql"
)

// Runs against a real server only when THREATLENS_TEST_MYSQL_DSN is set.
func TestRepositoriesAgainstServer(t *testing.T) {
	dsn := os.Getenv("THREATLENS_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("THREATLENS_TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	db, err := mysql.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Up(ctx, db, "mysql"))

	repo := mysql.NewScanRepository(db)
	require.NoError(t, repo.Clear(ctx))

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []scans.ScanID{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, &scans.ScanResult{
			ID:          id,
			TargetName:  "file-" + string(id),
			TargetType:  scans.TargetFile,
			Verdict:     scans.VerdictSuspicious,
			RiskScore:   10 * i,
			ThreatTypes: []string{"Suspicious"},
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			ScanMode:    scans.ModeExpress,
			Stats:       scans.DetectionStats{Suspicious: 1, Undetected: 3},
		}))
	}

	latest, err := repo.Latest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, scans.ScanID("c"), latest[0].ID)
	require.Equal(t, []string{"Suspicious"}, latest[0].ThreatTypes)
	require.Equal(t, []string{}, latest[0].Recommendations)
	require.Equal(t, 3, latest[0].Stats.Undetected)

	latest[0].AISummary = "updated"
	require.NoError(t, repo.Save(ctx, latest[0]))
	require.NoError(t, repo.Delete(ctx, "b"))
	all, err := repo.Latest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "updated", all[0].AISummary)

	errs := mysql.NewScanErrorRepository(db)
	e := &scanerrors.ScanError{Target: "x", TargetType: "url", Mode: "express", Phase: "submit", Message: "boom", DetailsJSON: "not json"}
	require.NoError(t, errs.Save(ctx, e))
	require.NotZero(t, e.ID)
	recent, err := errs.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.JSONEq(t, `{"raw":"not json"}`, recent[0].DetailsJSON)

	analyses := mysql.NewAnalystRepository(db)
	require.NoError(t, analyses.Save(ctx, &analyst.Analysis{ID: "an-1", ScanID: "c", Result: `{"summary":"s"}`, CreatedAt: base}))
	got, err := analyses.LatestByScan(ctx, "c")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.JSONEq(t, `{"summary":"s"}`, got.Result)
	none, err := analyses.LatestByScan(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, none)
}
