package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/classifier"
	"github.com/neurotunes/neurotunes-server/internal/eeg"
	"github.com/neurotunes/neurotunes-server/internal/eeg/eegtest"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/genre"
)

func TestAppendBatch_CreatesThenAppends(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	first, err := svc.patients.AppendBatch(ctx, caregiver, "P-001", uploadOf(1, 1))
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, 0, first.FirstSeq)
	assert.Equal(t, 2, first.Rows)

	second, err := svc.patients.AppendBatch(ctx, "  DOC@clinic.test", "P-001", uploadOf(2, 2, 2))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, 2, second.FirstSeq)
	assert.NotEqual(t, first.ID, second.ID)

	summary, err := svc.patients.GetSummary(ctx, "P-001")
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Count)
	top, ok := summary.Top()
	require.True(t, ok)
	assert.Equal(t, genre.Rock, top)
	assert.InDelta(t, 0.6, summary.Ranking[0].Weight, 1e-12)

	obs, err := svc.patients.ListObservations(ctx, "P-001")
	require.NoError(t, err)
	require.Len(t, obs, 5)
	for i, o := range obs {
		assert.Equal(t, i, o.Seq)
	}
	assert.Equal(t, first.ID, obs[1].BatchID)
	assert.Equal(t, second.ID, obs[2].BatchID)
	assert.Equal(t, genre.Classical, obs[0].Prediction.Genre)

	p, err := svc.patients.GetPatient(ctx, "P-001")
	require.NoError(t, err)
	assert.Equal(t, caregiver, p.Caregiver)
}

func TestAppendBatch_SchemaErrorPersistsNothing(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	bad := uploadOf(1, 2)
	bad.Records[1][3] = "n/a"

	_, err := svc.patients.AppendBatch(ctx, caregiver, "P-002", bad)
	require.ErrorIs(t, err, domainerrors.ErrSchema)

	var schemaErr *eeg.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.True(t, schemaErr.HasRows(1))

	_, err = svc.patients.GetPatient(ctx, "P-002")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestAppendBatch_EmptyBatch(t *testing.T) {
	svc := newServices(t)
	_, err := svc.patients.AppendBatch(context.Background(), caregiver, "P-003", uploadOf())
	assert.ErrorIs(t, err, domainerrors.ErrSchema)
}

func TestAppendBatch_ModelUnavailable(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	patients := NewPatientService(svc.store, classifier.NewAdapter(1), slog.New(slog.DiscardHandler))

	_, err := patients.AppendBatch(ctx, caregiver, "P-004", uploadOf(1))
	require.ErrorIs(t, err, domainerrors.ErrModelUnavailable)

	_, err = patients.GetPatient(ctx, "P-004")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	// Scoring does not need the model.
	preview, err := patients.PreviewScores(ctx, uploadOf(1))
	require.NoError(t, err)
	assert.Equal(t, 1, preview.Rows)
}

func TestAppendBatch_BadModelOutputPersistsNothing(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	// Gamma value 9 decodes to no genre.
	_, err := svc.patients.AppendBatch(ctx, caregiver, "P-005", uploadOf(1, 9))
	require.Error(t, err)
	assert.ErrorIs(t, err, classifier.ErrInvalidOutput)

	_, err = svc.patients.GetPatient(ctx, "P-005")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestAppendBatch_Rejections(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	_, err := svc.patients.AppendBatch(ctx, caregiver, "bad:id", uploadOf(1))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = svc.patients.AppendBatch(ctx, caregiver, "P-006", uploadOf(1))
	require.NoError(t, err)

	_, err = svc.patients.AppendBatch(ctx, "other@clinic.test", "P-006", uploadOf(1))
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestAppendBatch_ConcurrentUploadsSamePatient(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	const uploads = 8
	var wg sync.WaitGroup
	for i := range uploads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.patients.AppendBatch(ctx, caregiver, "P-007", uploadOf(i%5+1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	obs, err := svc.patients.ListObservations(ctx, "P-007")
	require.NoError(t, err)
	require.Len(t, obs, uploads)
	for i, o := range obs {
		assert.Equal(t, i, o.Seq)
	}

	summary, err := svc.patients.GetSummary(ctx, "P-007")
	require.NoError(t, err)
	assert.Equal(t, uploads, summary.Count)
}

func TestUpsertPatient(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	p, created, err := svc.patients.UpsertPatient(ctx, caregiver, "P-010")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "P-010", p.ID)

	again, created, err := svc.patients.UpsertPatient(ctx, " Doc@Clinic.test ", "P-010")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.CreatedAt, again.CreatedAt)

	// Another caregiver's id is not handed back.
	other, _, err := svc.patients.UpsertPatient(ctx, "other@clinic.test", "P-010")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	assert.Nil(t, other)

	_, _, err = svc.patients.UpsertPatient(ctx, caregiver, "")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestGetSummary(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	_, err := svc.patients.GetSummary(ctx, "nobody")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, _, err = svc.patients.UpsertPatient(ctx, caregiver, "P-011")
	require.NoError(t, err)

	summary, err := svc.patients.GetSummary(ctx, "P-011")
	require.NoError(t, err)
	assert.Zero(t, summary.Count)
	assert.False(t, summary.Means.Engagement.IsDefined())
	assert.False(t, summary.Means.Focus.IsDefined())
	assert.Len(t, summary.Distribution, len(genre.All))
}

func TestListPatients(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	for _, id := range []string{"P-b", "P-a"} {
		_, _, err := svc.patients.UpsertPatient(ctx, caregiver, id)
		require.NoError(t, err)
	}
	_, _, err := svc.patients.UpsertPatient(ctx, "other@clinic.test", "P-c")
	require.NoError(t, err)

	mine, err := svc.patients.ListPatients(ctx, "Doc@Clinic.test")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "P-a", mine[0].ID)

	all, err := svc.patients.ListPatients(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeletePatient(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	_, err := svc.patients.AppendBatch(ctx, caregiver, "P-012", uploadOf(1, 2))
	require.NoError(t, err)

	err = svc.patients.DeletePatient(ctx, "other@clinic.test", "P-012")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	require.NoError(t, svc.patients.DeletePatient(ctx, caregiver, "P-012"))

	_, err = svc.patients.ListObservations(ctx, "P-012")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.ErrorIs(t, svc.patients.DeletePatient(ctx, caregiver, "P-012"), domainerrors.ErrNotFound)
}

func TestPreviewScores(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	preview, err := svc.patients.PreviewScores(ctx, eegtest.Table(
		eegtest.Uniform(1, 1, 1, 3, 1), // engagement 1, focus 1/3
		eegtest.Uniform(1, 1, 1, 0, 1), // engagement -0.5, focus undefined
	))
	require.NoError(t, err)

	require.Len(t, preview.Scores, 2)
	assert.InDelta(t, 1.0, preview.Scores[0].Engagement, 1e-12)
	assert.False(t, preview.Scores[1].Focus.IsDefined())
	assert.InDelta(t, 0.25, preview.Means.Engagement.Or(0), 1e-12)
	assert.InDelta(t, 1.0/3, preview.Means.Focus.Or(0), 1e-12)

	all, err := svc.patients.ListPatients(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGenreTrends(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	upload := eegtest.Table(
		eegtest.Labelled(eegtest.Uniform(1, 1, 1, 7, 1), genre.Rap),       // engagement 3
		eegtest.Labelled(eegtest.Uniform(1, 1, 1, 3, 2), genre.Classical), // engagement 1.5
		eegtest.Labelled(eegtest.Uniform(1, 1, 1, 1, 3), genre.Rap),       // engagement 1
	)
	_, err := svc.patients.AppendBatch(ctx, caregiver, "P-013", upload)
	require.NoError(t, err)

	trends, err := svc.patients.GenreTrends(ctx, "P-013")
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, genre.Rap, trends[0].Genre)
	assert.Equal(t, 2, trends[0].Rows)
	assert.InDelta(t, 2.0, trends[0].Engagement, 1e-12)
	assert.Equal(t, genre.Classical, trends[1].Genre)

	_, err = svc.patients.GenreTrends(ctx, "nobody")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
