package purchases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingBinder struct {
	ids []int64
	err error
}

func (b *recordingBinder) Configure(ctx context.Context, userID int64) error {
	if b.err != nil {
		return b.err
	}
	b.ids = append(b.ids, userID)
	return nil
}

func TestRebindableBinder_CollapsesDuplicates(t *testing.T) {
	inner := &recordingBinder{}
	b := NewRebindableBinder(inner)
	ctx := context.Background()

	require.NoError(t, b.Configure(ctx, 7))
	require.NoError(t, b.Configure(ctx, 7))
	require.Equal(t, []int64{7}, inner.ids)
}

func TestRebindableBinder_RebindsOnIDChange(t *testing.T) {
	inner := &recordingBinder{}
	b := NewRebindableBinder(inner)
	ctx := context.Background()

	require.NoError(t, b.Configure(ctx, 7))
	require.NoError(t, b.Configure(ctx, 9))
	require.NoError(t, b.Configure(ctx, 9))
	require.Equal(t, []int64{7, 9}, inner.ids, "a changed id must re-establish the binding")
}

func TestRebindableBinder_FailedConfigureIsRetriable(t *testing.T) {
	inner := &recordingBinder{err: errors.New("sdk not ready")}
	b := NewRebindableBinder(inner)
	ctx := context.Background()

	require.Error(t, b.Configure(ctx, 7))

	inner.err = nil
	require.NoError(t, b.Configure(ctx, 7))
	require.Equal(t, []int64{7}, inner.ids, "a failed bind must not count as bound")
}
