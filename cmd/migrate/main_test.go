package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upErr  error
	steps  []int
	forced []int
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Force(version int) error {
	f.forced = append(f.forced, version)
	return nil
}

func TestRunDefaultsToUp(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	assert.NoError(t, run(m, nil))

	m.upErr = errors.New("boom")
	assert.Error(t, run(m, []string{"up"}))
}

func TestRunDownStepsBackOnce(t *testing.T) {
	m := &fakeMigrator{}
	require.NoError(t, run(m, []string{"down"}))
	assert.Equal(t, []int{-1}, m.steps)
}

func TestRunForce(t *testing.T) {
	m := &fakeMigrator{}
	require.NoError(t, run(m, []string{"force", "2"}))
	assert.Equal(t, []int{2}, m.forced)

	assert.Error(t, run(m, []string{"force"}))
	assert.Error(t, run(m, []string{"force", "two"}))
	assert.Error(t, run(m, []string{"sideways"}))
}
