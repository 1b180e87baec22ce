package meta_test

import (
	"path/filepath"
	"testing"

	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/stretchr/testify/require"
)

func TestLockTryAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	lock := meta.NewLock(dir)
	require.NoError(t, lock.TryAcquire())
	require.NoError(t, lock.Release())
}

func TestLockBusyWhileHeld(t *testing.T) {
	dir := t.TempDir()
	first := meta.NewLock(dir)
	require.NoError(t, first.TryAcquire())
	defer first.Release()

	second := meta.NewLock(filepath.Clean(dir))
	err := second.TryAcquire()
	require.ErrorIs(t, err, meta.ErrBusy)
}

func TestLockReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()
	lock := meta.NewLock(dir)
	require.NoError(t, lock.TryAcquire())
	require.NoError(t, lock.Release())
	require.NoError(t, lock.TryAcquire())
	require.NoError(t, lock.Release())
}
