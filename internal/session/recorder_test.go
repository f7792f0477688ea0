package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagesmith/api/schemas"
)

func TestRecorderDropsWhileDisarmed(t *testing.T) {
	r := NewRecorder()

	r.Record(schemas.TestStep{Action: schemas.ActionClick})
	assert.False(t, r.Armed())

	r.Start()
	r.Record(schemas.TestStep{Action: schemas.ActionFill})
	steps, err := r.Stop()
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, schemas.ActionFill, steps[0].Action)
}

func TestRecorderStartResetsSteps(t *testing.T) {
	r := NewRecorder()

	r.Start()
	r.Record(schemas.TestStep{Action: schemas.ActionClick})
	r.Start()
	r.Record(schemas.TestStep{Action: schemas.ActionHover})

	steps, err := r.Stop()
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, schemas.ActionHover, steps[0].Action)
}

func TestRecorderStopWithoutWindow(t *testing.T) {
	r := NewRecorder()
	_, err := r.Stop()
	assert.ErrorIs(t, err, schemas.ErrNotRecording)

	r.Start()
	_, err = r.Stop()
	require.NoError(t, err)
	_, err = r.Stop()
	assert.ErrorIs(t, err, schemas.ErrNotRecording)
}
