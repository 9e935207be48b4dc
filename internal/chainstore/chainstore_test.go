package chainstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encdelta/internal/baseline"
	"encdelta/internal/chainstore"
	"encdelta/internal/meta"
)

func chain(t *testing.T) (*baseline.Generation, *baseline.Generation) {
	t.Helper()
	var sizes meta.TableSizes
	sizes.Set(meta.TableTypeDef, 2)
	sizes.Set(meta.TableMethodDef, 1)
	g0, err := baseline.Initial(baseline.Module{
		MVID:    uuid.MustParse("6f1c8d2e-0000-4000-8000-000000000001"),
		Sizes:   sizes,
		Types:   []baseline.TypeDef{{Key: "C", Row: 2}},
		Methods: []baseline.MethodDef{{Key: "C.F()", Container: "C", Name: "F", Row: 1}},
	}, nil)
	require.NoError(t, err)

	next := g0.Sizes()
	next.Set(meta.TableMethodDef, 2)
	g1, err := baseline.Derive(g0, baseline.Changes{
		Sizes:   next,
		Methods: []baseline.MethodInfo{{Key: "C.G()", Container: "C", Name: "G", Handle: meta.MakeHandle(meta.TableMethodDef, 2)}},
	})
	require.NoError(t, err)
	return g0, g1
}

func roundTrip(t *testing.T, store chainstore.Store) {
	t.Helper()
	ctx := context.Background()
	g0, g1 := chain(t)
	require.NoError(t, store.Put(ctx, g0.Snapshot()))
	require.NoError(t, store.Put(ctx, g1.Snapshot()))

	snaps, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	restored, err := baseline.RestoreChain(snaps, nil)
	require.NoError(t, err)
	assert.Equal(t, g1.EncID(), restored.EncID())
	assert.Equal(t, g1.Sizes(), restored.Sizes())
	_, ok := restored.Method("C.G()")
	assert.True(t, ok)
}

func TestDiskStoreRoundTrip(t *testing.T) {
	store, err := chainstore.OpenDisk(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	roundTrip(t, store)
}

func TestSQLStoreRoundTrip(t *testing.T) {
	store, err := chainstore.OpenSQL(filepath.Join(t.TempDir(), "chain.db"))
	require.NoError(t, err)
	defer store.Close()
	roundTrip(t, store)
}

func TestLoadRejectsGaps(t *testing.T) {
	store, err := chainstore.OpenDisk(t.TempDir())
	require.NoError(t, err)
	_, g1 := chain(t)
	require.NoError(t, store.Put(context.Background(), g1.Snapshot()))

	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, chainstore.ErrChainBroken)
}

func TestOpenKinds(t *testing.T) {
	k, err := chainstore.ParseKind("SQLite")
	require.NoError(t, err)
	assert.Equal(t, chainstore.KindSQLite, k)

	_, err = chainstore.ParseKind("redis")
	require.Error(t, err)

	store, err := chainstore.Open(chainstore.KindNone, "")
	require.NoError(t, err)
	assert.Nil(t, store)
}
