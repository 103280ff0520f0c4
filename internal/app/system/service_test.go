package system

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/juicescan/pkg/logger"
)

type journal struct {
	events []string
}

func (j *journal) service(name string, startErr, stopErr error) FuncService {
	return FuncService{
		ServiceName: name,
		OnStart: func(context.Context) error {
			j.events = append(j.events, "start "+name)
			return startErr
		},
		OnStop: func(context.Context) error {
			j.events = append(j.events, "stop "+name)
			return stopErr
		},
	}
}

func TestManagerOrder(t *testing.T) {
	j := &journal{}
	m := NewManager(logger.NewNop())
	for _, name := range []string{"chains", "index", "http"} {
		require.NoError(t, m.Register(j.service(name, nil, nil)))
	}

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, []string{
		"start chains", "start index", "start http",
		"stop http", "stop index", "stop chains",
	}, j.events)

	// A second stop has nothing left to stop.
	require.NoError(t, m.Stop(context.Background()))
	assert.Len(t, j.events, 6)
}

func TestManagerStartFailureUnwinds(t *testing.T) {
	j := &journal{}
	m := NewManager(logger.NewNop())
	boom := errors.New("bind: address in use")
	require.NoError(t, m.Register(j.service("index", nil, nil)))
	require.NoError(t, m.Register(j.service("http", boom, nil)))

	err := m.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "start http")
	assert.Equal(t, []string{"start index", "start http", "stop index"}, j.events)
}

func TestManagerJoinsStopErrors(t *testing.T) {
	j := &journal{}
	m := NewManager(logger.NewNop())
	first, second := errors.New("first"), errors.New("second")
	require.NoError(t, m.Register(j.service("a", nil, first)))
	require.NoError(t, m.Register(j.service("b", nil, second)))
	require.NoError(t, m.Start(context.Background()))

	err := m.Stop(context.Background())
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestManagerRegister(t *testing.T) {
	m := NewManager(logger.NewNop())
	require.NoError(t, m.Register(FuncService{ServiceName: "index"}))
	assert.Error(t, m.Register(FuncService{ServiceName: "index"}))

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Register(FuncService{ServiceName: "late"}))
}
