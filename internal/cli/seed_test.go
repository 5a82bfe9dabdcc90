package cli

import (
	"context"
	"fmt"
	"testing"

	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeed(t *testing.T) {
	doc, err := parseSeed([]byte(seedYAML))
	require.NoError(t, err)

	require.Len(t, doc.Jobs, 1)
	assert.Equal(t, []string{"Go", "Kubernetes", "PostgreSQL"}, doc.Jobs[0].RequiredSkills)

	require.Len(t, doc.Profiles, 1)
	profile := doc.Profiles[0]
	assert.Equal(t, "user-1", profile.UserID)
	require.Len(t, profile.Skills, 2)
	require.NotNil(t, profile.Skills[0].Level)
	assert.Equal(t, 80, *profile.Skills[0].Level)
	assert.Nil(t, profile.Skills[1].Level)
	require.Len(t, profile.Experiences, 1)
	assert.True(t, profile.Experiences[0].IsCurrent)
	assert.Equal(t, 2021, profile.Experiences[0].StartDate.Year())
}

func TestParseSeedRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not yaml", doc: "jobs: [\n"},
		{name: "unknown key", doc: "jobz: []\n"},
		{name: "missing job id", doc: "jobs:\n  - title: X\n"},
		{name: "missing title", doc: "jobs:\n  - id: 2\n"},
		{name: "duplicate id", doc: "jobs:\n  - {id: 2, title: A}\n  - {id: 2, title: B}\n"},
		{name: "missing user", doc: "profiles:\n  - skills: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSeed([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

type recordingSeedStore struct {
	calls []string
	fail  bool
}

func (s *recordingSeedStore) UpsertJob(_ context.Context, job types.JobSummary) error {
	s.calls = append(s.calls, fmt.Sprintf("job:%d", job.ID))
	if s.fail {
		return fmt.Errorf("disk full")
	}
	return nil
}

func (s *recordingSeedStore) ReplaceProfile(_ context.Context, userID string, _ types.ProfileBundle) error {
	s.calls = append(s.calls, "profile:"+userID)
	return nil
}

func TestApplySeedWritesJobsFirst(t *testing.T) {
	doc, err := parseSeed([]byte(seedYAML))
	require.NoError(t, err)

	st := &recordingSeedStore{}
	summary, err := applySeed(context.Background(), st, doc)
	require.NoError(t, err)
	assert.Equal(t, SeedSummary{Jobs: 1, Profiles: 1}, summary)
	assert.Equal(t, []string{"job:1", "profile:user-1"}, st.calls)

	failing := &recordingSeedStore{fail: true}
	_, err = applySeed(context.Background(), failing, doc)
	assert.Error(t, err)
	assert.Equal(t, []string{"job:1"}, failing.calls)
}
