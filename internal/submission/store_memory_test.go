package submission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "verilink/pkg/domain"
	"verilink/pkg/platform/sentinel"
)

func TestInMemoryStoreVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	verificationID := id.NewVerificationID()

	snapshot := func() *Submission {
		return &Submission{
			ID:             id.NewSubmissionID(),
			VerificationID: verificationID,
			Categories: []CategoryEvidence{{
				CategoryID: "exterior",
				Photos:     []Photo{{FieldID: "front_photo", URL: "s3://bucket/front.jpg"}},
			}},
			SubmittedAt: time.Now(),
		}
	}

	first := snapshot()
	require.NoError(t, store.Create(ctx, first))
	assert.Equal(t, 1, first.Version)

	second := snapshot()
	require.NoError(t, store.Create(ctx, second))
	assert.Equal(t, 2, second.Version)

	t.Run("latest returns the newest snapshot", func(t *testing.T) {
		latest, err := store.Latest(ctx, verificationID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
		assert.Equal(t, 2, latest.Version)
	})

	t.Run("versions are per verification", func(t *testing.T) {
		other := &Submission{
			ID:             id.NewSubmissionID(),
			VerificationID: id.NewVerificationID(),
			SubmittedAt:    time.Now(),
		}
		require.NoError(t, store.Create(ctx, other))
		assert.Equal(t, 1, other.Version)
	})

	t.Run("list preserves order", func(t *testing.T) {
		all, err := store.ListByVerification(ctx, verificationID)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, 1, all[0].Version)
		assert.Equal(t, 2, all[1].Version)
	})

	t.Run("no snapshots yet", func(t *testing.T) {
		_, err := store.Latest(ctx, id.NewVerificationID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
