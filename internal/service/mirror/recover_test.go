package mirror

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/flashcal/config"
	"github.com/weiwangfds/flashcal/internal/database"
	"github.com/weiwangfds/flashcal/internal/service/backup"
	"github.com/weiwangfds/flashcal/internal/service/store"
)

func newRecoveryStore(t *testing.T, f *fixture) *store.GormStore {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		DSN:      filepath.Join(t.TempDir(), "recover.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	s := store.New(db)
	s.SetReplicator(f.r)
	return s
}

func writeMirror(t *testing.T, fs afero.Fs, path string, ids ...string) {
	t.Helper()
	data, err := backup.Marshal(backup.Encode(plans(ids...), []byte(`{"theme":"dark"}`)), false)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
}

func writeMirrorAt(t *testing.T, fs afero.Fs, path string, date time.Time, ids ...string) {
	t.Helper()
	bundle := backup.Encode(plans(ids...), nil)
	bundle.Date = date
	data, err := backup.Marshal(bundle, false)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
}

func planIDs(list []database.WorkPlan) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.ID)
	}
	return out
}

func TestRecoverFromLocalMirror(t *testing.T) {
	f := newFixture(t)
	s := newRecoveryStore(t, f)
	ctx := context.Background()
	writeMirror(t, f.fs, localPath, "a", "b")

	n, err := f.r.Recover(ctx, s)
	require.NoError(t, err)
	f.r.Wait()
	assert.Equal(t, 2, n)

	got, err := s.GetAllPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, planIDs(got))

	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, string(settings))
}

func TestRecoverSkipsNonEmptyStore(t *testing.T) {
	f := newFixture(t)
	s := newRecoveryStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.SavePlans(ctx, plans("x"), nil))
	f.r.Wait()
	writeMirror(t, f.fs, localPath, "a", "b")

	n, err := f.r.Recover(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.GetAllPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, planIDs(got))
}

func TestRecoverFallsBackToExternalMirror(t *testing.T) {
	f := newFixture(t)
	s := newRecoveryStore(t, f)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(f.fs, localPath, []byte("not json"), 0o644))
	f.handles.handle = fileHandle(database.PermissionGranted)
	writeMirror(t, f.fs, "/ext/mirror.json", "e")

	n, err := f.r.Recover(ctx, s)
	require.NoError(t, err)
	f.r.Wait()
	assert.Equal(t, 1, n)

	got, err := s.GetAllPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, planIDs(got))
}

func TestRecoverWithoutMirrors(t *testing.T) {
	f := newFixture(t)
	s := newRecoveryStore(t, f)

	n, err := f.r.Recover(context.Background(), s)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecoverKeepsEmptyLocalMirror(t *testing.T) {
	f := newFixture(t)
	s := newRecoveryStore(t, f)
	ctx := context.Background()
	now := time.Now().UTC()
	writeMirrorAt(t, f.fs, localPath, now)
	f.handles.handle = fileHandle(database.PermissionGranted)
	writeMirrorAt(t, f.fs, "/ext/mirror.json", now.Add(-time.Hour), "stale")

	n, err := f.r.Recover(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.GetAllPlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecoverPrefersNewerMirror(t *testing.T) {
	f := newFixture(t)
	s := newRecoveryStore(t, f)
	ctx := context.Background()
	now := time.Now().UTC()
	writeMirrorAt(t, f.fs, localPath, now.Add(-time.Hour), "old")
	f.handles.handle = fileHandle(database.PermissionGranted)
	writeMirrorAt(t, f.fs, "/ext/mirror.json", now, "new")

	n, err := f.r.Recover(ctx, s)
	require.NoError(t, err)
	f.r.Wait()
	assert.Equal(t, 1, n)

	got, err := s.GetAllPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, planIDs(got))
}

func TestClearedPlansAreNotRecovered(t *testing.T) {
	f := newFixture(t)
	s := newRecoveryStore(t, f)
	ctx := context.Background()
	f.handles.handle = fileHandle(database.PermissionGranted)

	require.NoError(t, s.SavePlans(ctx, plans("a", "b"), nil))
	f.r.Wait()
	require.NoError(t, s.ClearAll(ctx))
	f.r.Wait()

	n, err := f.r.Recover(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.GetAllPlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, decodeFile(t, f.fs, localPath).Plans)
	assert.Empty(t, decodeFile(t, f.fs, "/ext/mirror.json").Plans)
}
