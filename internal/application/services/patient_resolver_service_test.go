package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/crowndesk/receptionist/internal/application/services"
	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/pkg/config"
)

func resolverConfig() *config.VoiceConfig {
	return &config.VoiceConfig{
		MatchThreshold: 0.82,
		MatchTieBand:   0.05,
	}
}

func birthday(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestPatientResolver_MatchesOnNameAndExactDOB(t *testing.T) {
	repo := new(MockPatientRepository)
	resolver := services.NewPatientResolverService(repo, resolverConfig())

	dob := birthday(1985, time.March, 12)
	repo.On("ListByDateOfBirth", mock.Anything, "tenant-1", dob).Return([]*entities.Patient{
		{ID: "p-1", FirstName: "John", LastName: "Smith", DateOfBirth: dob},
		{ID: "p-2", FirstName: "Amara", LastName: "Obi", DateOfBirth: dob},
	}, nil)

	resolution, err := resolver.Resolve(context.Background(), "tenant-1", "John Smith", "1985-03-12")

	require.NoError(t, err)
	require.Equal(t, services.ResolutionMatched, resolution.Outcome)
	assert.Equal(t, "p-1", resolution.Match.PatientID)
	assert.True(t, resolution.Match.MatchedOnDOB)
	assert.InDelta(t, 1.0, resolution.Match.Score, 0.001)
}

func TestPatientResolver_SpokenDOBFormats(t *testing.T) {
	dob := birthday(1985, time.March, 12)

	for _, spoken := range []string{
		"1985-03-12",
		"03/12/1985",
		"3/12/1985",
		"March 12, 1985",
		"march 12 1985",
		"March 12th, 1985",
	} {
		t.Run(spoken, func(t *testing.T) {
			repo := new(MockPatientRepository)
			resolver := services.NewPatientResolverService(repo, resolverConfig())
			repo.On("ListByDateOfBirth", mock.Anything, "tenant-1", dob).Return([]*entities.Patient{
				{ID: "p-1", FirstName: "John", LastName: "Smith", DateOfBirth: dob},
			}, nil)

			resolution, err := resolver.Resolve(context.Background(), "tenant-1", "John Smith", spoken)

			require.NoError(t, err)
			assert.Equal(t, services.ResolutionMatched, resolution.Outcome)
		})
	}
}

func TestPatientResolver_UnparsableDOBFailsClosed(t *testing.T) {
	repo := new(MockPatientRepository)
	resolver := services.NewPatientResolverService(repo, resolverConfig())

	resolution, err := resolver.Resolve(context.Background(), "tenant-1", "John Smith", "sometime in spring")

	require.NoError(t, err)
	assert.Equal(t, services.ResolutionNotFound, resolution.Outcome)
	repo.AssertNotCalled(t, "ListByDateOfBirth", mock.Anything, mock.Anything, mock.Anything)
}

func TestPatientResolver_NoDOBMatchIsNotFound(t *testing.T) {
	repo := new(MockPatientRepository)
	resolver := services.NewPatientResolverService(repo, resolverConfig())

	repo.On("ListByDateOfBirth", mock.Anything, "tenant-1", mock.Anything).
		Return([]*entities.Patient{}, nil)

	resolution, err := resolver.Resolve(context.Background(), "tenant-1", "John Smith", "1985-03-12")

	require.NoError(t, err)
	assert.Equal(t, services.ResolutionNotFound, resolution.Outcome)
}

func TestPatientResolver_BelowThresholdIsNotFound(t *testing.T) {
	repo := new(MockPatientRepository)
	resolver := services.NewPatientResolverService(repo, resolverConfig())

	dob := birthday(1985, time.March, 12)
	// DOB matches, but the name is someone else entirely
	repo.On("ListByDateOfBirth", mock.Anything, "tenant-1", dob).Return([]*entities.Patient{
		{ID: "p-2", FirstName: "Amara", LastName: "Obi", DateOfBirth: dob},
	}, nil)

	resolution, err := resolver.Resolve(context.Background(), "tenant-1", "John Smith", "1985-03-12")

	require.NoError(t, err)
	assert.Equal(t, services.ResolutionNotFound, resolution.Outcome)
	assert.Nil(t, resolution.Match)
}

func TestPatientResolver_NearTieIsAmbiguous(t *testing.T) {
	repo := new(MockPatientRepository)
	resolver := services.NewPatientResolverService(repo, resolverConfig())

	dob := birthday(1985, time.March, 12)
	// Both one edit away from the spoken name, so neither can win outright
	repo.On("ListByDateOfBirth", mock.Anything, "tenant-1", dob).Return([]*entities.Patient{
		{ID: "p-1", FirstName: "Jon", LastName: "Smith", DateOfBirth: dob},
		{ID: "p-2", FirstName: "John", LastName: "Smyth", DateOfBirth: dob},
	}, nil)

	resolution, err := resolver.Resolve(context.Background(), "tenant-1", "John Smith", "1985-03-12")

	require.NoError(t, err)
	require.Equal(t, services.ResolutionAmbiguous, resolution.Outcome)
	assert.Len(t, resolution.Candidates, 2)
	assert.Nil(t, resolution.Match)
}

func TestPatientResolver_EmptyNameIsNotFound(t *testing.T) {
	repo := new(MockPatientRepository)
	resolver := services.NewPatientResolverService(repo, resolverConfig())

	dob := birthday(1985, time.March, 12)
	repo.On("ListByDateOfBirth", mock.Anything, "tenant-1", dob).Return([]*entities.Patient{
		{ID: "p-1", FirstName: "John", LastName: "Smith", DateOfBirth: dob},
	}, nil)

	resolution, err := resolver.Resolve(context.Background(), "tenant-1", "  123 ", "1985-03-12")

	require.NoError(t, err)
	assert.Equal(t, services.ResolutionNotFound, resolution.Outcome)
}

func TestParseSpokenDate(t *testing.T) {
	t.Run("ordinal suffixes", func(t *testing.T) {
		day, ok := services.ParseSpokenDate("March 5th, 1985")
		require.True(t, ok)
		assert.Equal(t, birthday(1985, time.March, 5), day)
	})

	t.Run("lowercase month", func(t *testing.T) {
		day, ok := services.ParseSpokenDate("january 2 1990")
		require.True(t, ok)
		assert.Equal(t, birthday(1990, time.January, 2), day)
	})

	t.Run("garbage", func(t *testing.T) {
		_, ok := services.ParseSpokenDate("next week sometime")
		assert.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := services.ParseSpokenDate("   ")
		assert.False(t, ok)
	})
}
