package workspace

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := New(filepath.Join(t.TempDir(), "beans"))
	require.NoError(t, err)
	return ws
}

func TestWriteFile(t *testing.T) {
	ws := newWorkspace(t)

	require.NoError(t, ws.WriteFile("UserService.kt", "class UserService"))

	data, err := os.ReadFile(filepath.Join(ws.Root(), "UserService.kt"))
	require.NoError(t, err)
	assert.Equal(t, "class UserService", string(data))

	require.NoError(t, ws.WriteFile("UserService.kt", "class UserService2"))
	got, err := ws.ReadFile("UserService.kt")
	require.NoError(t, err)
	assert.Equal(t, "class UserService2", got)
}

func TestWriteFile_Rejects(t *testing.T) {
	ws := newWorkspace(t)

	tests := []struct {
		name string
		file string
		want error
	}{
		{"wrong extension", "notes.txt", ErrInvalidName},
		{"no extension", "UserService", ErrInvalidName},
		{"parent traversal", "../Evil.kt", ErrOutsideRoot},
		{"nested traversal", "sub/../../Evil.kt", ErrOutsideRoot},
		{"absolute", "/tmp/Evil.kt", ErrOutsideRoot},
		{"bare extension", ".kt", ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ws.WriteFile(tt.file, "x")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := os.Stat(filepath.Join(filepath.Dir(ws.Root()), "Evil.kt"))
	assert.True(t, os.IsNotExist(err))
	for _, name := range []string{"notes.txt", "UserService", ".kt"} {
		_, err := os.Stat(filepath.Join(ws.Root(), name))
		assert.True(t, os.IsNotExist(err), name)
	}
}

func TestWriteFile_Subdirectory(t *testing.T) {
	ws := newWorkspace(t)

	require.NoError(t, ws.WriteFile("orders/OrderService.kt", "class OrderService"))

	data, err := os.ReadFile(filepath.Join(ws.Root(), "orders", "OrderService.kt"))
	require.NoError(t, err)
	assert.Equal(t, "class OrderService", string(data))

	assert.ErrorIs(t, ws.WriteFile("orders/.kt", "x"), ErrInvalidName)
	_, err = os.Stat(filepath.Join(ws.Root(), "OrderService.kt"))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateDir(t *testing.T) {
	ws := newWorkspace(t)

	require.NoError(t, ws.CreateDir("orders/history"))
	require.NoError(t, ws.CreateDir("orders/history"))

	info, err := os.Stat(filepath.Join(ws.Root(), "orders", "history"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.ErrorIs(t, ws.CreateDir("../outside"), ErrOutsideRoot)
	assert.ErrorIs(t, ws.CreateDir("."), ErrOutsideRoot)
	assert.ErrorIs(t, ws.CreateDir(""), ErrInvalidName)
}

func TestReadFile_Missing(t *testing.T) {
	ws := newWorkspace(t)
	_, err := ws.ReadFile("Missing.kt")
	assert.Error(t, err)
}

func TestWriteFile_ConcurrentSameFile(t *testing.T) {
	ws := newWorkspace(t)

	contents := []string{"class A", "class B", "class C", "class D"}
	var wg sync.WaitGroup
	for _, c := range contents {
		wg.Add(1)
		go func(c string) {
			defer wg.Done()
			assert.NoError(t, ws.WriteFile("Shared.kt", c))
		}(c)
	}
	wg.Wait()

	got, err := ws.ReadFile("Shared.kt")
	require.NoError(t, err)
	assert.Contains(t, contents, got)
}

func TestNoExtensionCheck(t *testing.T) {
	ws, err := New(t.TempDir(), func(o *Options) { o.Extension = "" })
	require.NoError(t, err)
	assert.NoError(t, ws.WriteFile("README.md", "hi"))
}
