package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cloud956/wheel-tracker/internal/services"
)

type fakeOwnerLister struct {
	owners []string
	err    error
}

func (f *fakeOwnerLister) ListOwners() ([]string, error) {
	return f.owners, f.err
}

type fakeSyncRunner struct {
	errs   map[string]error
	synced []string
}

func (f *fakeSyncRunner) Run(ctx context.Context, owner string) (*services.SyncReport, error) {
	f.synced = append(f.synced, owner)
	return &services.SyncReport{Owner: owner}, f.errs[owner]
}

func TestSyncJobSyncsAllOwners(t *testing.T) {
	runner := &fakeSyncRunner{}
	job := NewSyncJob(runner, &fakeOwnerLister{owners: []string{"alice", "bob"}}, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, []string{"alice", "bob"}, runner.synced)
}

func TestSyncJobSkipsOwnersAlreadySyncing(t *testing.T) {
	runner := &fakeSyncRunner{errs: map[string]error{"alice": services.ErrSyncInProgress}}
	job := NewSyncJob(runner, &fakeOwnerLister{owners: []string{"alice", "bob"}}, zerolog.Nop())

	// An in-flight sync is not a failure.
	require.NoError(t, job.Run())
	assert.Equal(t, []string{"alice", "bob"}, runner.synced)
}

func TestSyncJobReportsFailures(t *testing.T) {
	runner := &fakeSyncRunner{errs: map[string]error{"bob": errors.New("broker unreachable")}}
	job := NewSyncJob(runner, &fakeOwnerLister{owners: []string{"alice", "bob"}}, zerolog.Nop())

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 owner syncs failed")
}

func TestSyncJobNoOwners(t *testing.T) {
	runner := &fakeSyncRunner{}
	job := NewSyncJob(runner, &fakeOwnerLister{}, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Empty(t, runner.synced)
}
