package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	logx "spacebot/pkg/logx"
)

func TestStoreDrivers(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", "session."+driver)

			st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
			require.NoError(t, err)

			_, err = st.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, st.Put(ctx, "token", "a"))
			require.NoError(t, st.Put(ctx, "token", "b"))
			v, err := st.Get(ctx, "token")
			require.NoError(t, err)
			require.Equal(t, "b", v)
			require.NoError(t, st.Close())

			// Values survive a reopen.
			st, err = Open(Config{Driver: driver, Path: path}, logx.Nop())
			require.NoError(t, err)
			defer st.Close()
			v, err = st.Get(ctx, "token")
			require.NoError(t, err)
			require.Equal(t, "b", v)

			require.NoError(t, st.Delete(ctx, "token"))
			_, err = st.Get(ctx, "token")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	require.NoError(t, err)
	require.Nil(t, st)

	_, err = Open(Config{Driver: "postgres", Path: "x"}, logx.Nop())
	require.Error(t, err)
}

func TestPrefixedScopesKeys(t *testing.T) {
	ctx := context.Background()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "kv.json")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	p := Prefixed(st, "matrix")
	require.NoError(t, p.Put(ctx, "device_id", "ABC"))

	v, err := st.Get(ctx, "matrix.device_id")
	require.NoError(t, err)
	require.Equal(t, "ABC", v)
}
