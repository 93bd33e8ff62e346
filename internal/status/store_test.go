package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/legal-insight/docintake/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndResolve(t *testing.T) {
	s := NewStore()

	_, err := s.Resolve("")
	assert.ErrorIs(t, err, ErrNoJobs)

	first := s.Create()
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, models.PhaseIdle, first.Status.Phase)

	second := s.Create()
	assert.NotEqual(t, first.ID, second.ID)

	latest, err := s.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	byID, err := s.Resolve(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byID.ID)

	_, err = s.Resolve("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStore_Transitions(t *testing.T) {
	s := NewStore()
	job := s.Create()

	require.NoError(t, s.AddFile(job.ID, models.StoredFile{GeneratedName: "file-1.pdf"}))
	got, _ := s.Get(job.ID)
	assert.Equal(t, models.StatusUploading, got.Status)
	assert.Len(t, got.Files, 1)

	require.NoError(t, s.StartProcessing(job.ID))
	assert.ErrorIs(t, s.StartProcessing(job.ID), ErrJobBusy)
	assert.ErrorIs(t, s.AddFile(job.ID, models.StoredFile{GeneratedName: "late.pdf"}), ErrJobBusy)

	result := json.RawMessage(`{"pages":3}`)
	require.NoError(t, s.Complete(job.ID, result, models.StatusParsingCompleted))
	got, _ = s.Get(job.ID)
	assert.Equal(t, "Parsing completed!", got.Status.String())
	assert.JSONEq(t, `{"pages":3}`, string(got.Result))

	// a completed job can be re-triggered
	require.NoError(t, s.StartProcessing(job.ID))
	got, _ = s.Get(job.ID)
	assert.Nil(t, got.Result)

	assert.ErrorIs(t, s.Set("missing", models.StatusIdle), ErrJobNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	job := s.Create()
	require.NoError(t, s.AddFile(job.ID, models.StoredFile{GeneratedName: "a"}))

	got, _ := s.Get(job.ID)
	got.Files[0].GeneratedName = "mutated"
	got.Status = models.StatusError("x")

	again, _ := s.Get(job.ID)
	assert.Equal(t, "a", again.Files[0].GeneratedName)
	assert.Equal(t, models.PhaseUploading, again.Status.Phase)
}

func TestStore_ConcurrentBatchesDoNotInterleave(t *testing.T) {
	s := NewStore()
	a := s.Create()
	b := s.Create()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set(a.ID, models.StatusParsingCompleted)
		}()
		go func() {
			defer wg.Done()
			s.Set(b.ID, models.StatusError("engine down"))
		}()
	}
	wg.Wait()

	gotA, _ := s.Get(a.ID)
	gotB, _ := s.Get(b.ID)
	assert.Equal(t, models.PhaseParsingCompleted, gotA.Status.Phase)
	assert.Equal(t, models.PhaseError, gotB.Status.Phase)
}

func TestStore_CleanupOldJobs(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.now = func() time.Time { return now.Add(-time.Hour) }

	stale := s.Create()
	running := s.Create()
	require.NoError(t, s.AddFile(running.ID, models.StoredFile{GeneratedName: "file-1.pdf"}))
	require.NoError(t, s.StartProcessing(running.ID))
	latest := s.Create()

	s.now = func() time.Time { return now }
	removed := s.CleanupOldJobs(30 * time.Minute)

	assert.Equal(t, 1, removed)
	_, ok := s.Get(stale.ID)
	assert.False(t, ok)
	_, ok = s.Get(running.ID)
	assert.True(t, ok)
	_, ok = s.Get(latest.ID)
	assert.True(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestStore_StartProcessingRequiresFiles(t *testing.T) {
	s := NewStore()
	job := s.Create()

	assert.ErrorIs(t, s.StartProcessing(job.ID), ErrNoFiles)
	got, _ := s.Get(job.ID)
	assert.Equal(t, models.PhaseIdle, got.Status.Phase)
}

func TestStore_OpenOrCreate(t *testing.T) {
	tests := []struct {
		name   string
		latest models.LifecycleStatus
		joins  bool
	}{
		{"idle batch is joined", models.StatusIdle, true},
		{"uploading batch is joined", models.StatusUploading, true},
		{"running batch starts a new one", models.StatusParsingStarted, false},
		{"completed batch starts a new one", models.StatusParsingCompleted, false},
		{"failed batch starts a new one", models.StatusError("engine down"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			first := s.Create()
			require.NoError(t, s.Set(first.ID, tt.latest))

			got := s.OpenOrCreate()

			if tt.joins {
				assert.Equal(t, first.ID, got.ID)
				assert.Equal(t, 1, s.Len())
			} else {
				assert.NotEqual(t, first.ID, got.ID)
				assert.Equal(t, 2, s.Len())
				latest, err := s.Resolve("")
				require.NoError(t, err)
				assert.Equal(t, got.ID, latest.ID)
			}
		})
	}

	t.Run("empty store starts a job", func(t *testing.T) {
		s := NewStore()
		got := s.OpenOrCreate()
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, 1, s.Len())
	})
}

func TestStore_OpenOrCreateConcurrent(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = s.OpenOrCreate().ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, s.Len())
}
