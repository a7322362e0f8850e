package flash

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GoCodeAlone/baseapp/modules/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionContext(t *testing.T) context.Context {
	t.Helper()
	m := session.NewManager(session.NewMemoryStore(), session.Options{}, nil)
	require.NoError(t, m.Start(context.Background()))
	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	return session.NewContext(context.Background(), s)
}

func TestDefaultClasses(t *testing.T) {
	assert.Equal(t, map[string]string{
		"warning":     "alert alert-warning",
		"notice":      "alert alert-info",
		"success":     "alert alert-success",
		"error":       "alert alert-danger",
		"dismissable": "alert alert-dismissable",
	}, New(nil).Classes())
}

func TestFlash_Output(t *testing.T) {
	ctx := sessionContext(t)
	f := New(nil)

	require.NoError(t, f.Success(ctx, "Saved"))
	require.NoError(t, f.Error(ctx, "Name <required>"))
	require.NoError(t, f.Error(ctx, "Email required"))
	assert.True(t, f.Has(ctx, Error))
	assert.False(t, f.Has(ctx, Warning))

	out, err := f.Output(ctx)
	require.NoError(t, err)
	assert.Equal(t,
		`<div class="alert alert-danger">Name &lt;required&gt;</div>`+"\n"+
			`<div class="alert alert-danger">Email required</div>`+"\n"+
			`<div class="alert alert-success">Saved</div>`+"\n", out)
	assert.False(t, f.Has(ctx, ""))
}

func TestFlash_AutoDismissAndMessages(t *testing.T) {
	ctx := sessionContext(t)
	f := New(nil)
	f.AutoDismiss = true

	require.NoError(t, f.Notice(ctx, "one"))
	require.NoError(t, f.Warning(ctx, "careful"))

	msgs, err := f.Messages(ctx, Notice)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, msgs)

	out, err := f.Output(ctx)
	require.NoError(t, err)
	assert.Equal(t, `<div class="alert alert-warning alert alert-dismissable">careful</div>`+"\n", out)
}

func TestFlash_NoSession(t *testing.T) {
	f := New(nil)
	assert.ErrorIs(t, f.Notice(context.Background(), "x"), ErrNoSession)
	_, err := f.Output(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, f.Has(context.Background(), ""))
}
