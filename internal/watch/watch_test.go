package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akashic-games/akashic-cli-export-zip/internal/console"
)

func TestWatcher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "script"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "game.json"), []byte("{}"), 0644))
	out := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(out, 0755))

	w, err := New(root, []string{out}, 20*time.Millisecond, console.Nop)
	require.NoError(t, err)

	changes := make(chan string, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(func(p string) { changes <- p })
	}()
	w.Wait()

	require.NoError(t, os.WriteFile(filepath.Join(out, "ignored.js"), []byte("x"), 0644))
	created := filepath.Join(root, "script", "main.js")
	require.NoError(t, os.WriteFile(created, []byte("var a;"), 0644))

	select {
	case p := <-changes:
		assert.Equal(t, created, p)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	w.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestNotifier(t *testing.T) {
	var calls int32
	fired := make(chan struct{}, 10)
	n := NewNotifier(50*time.Millisecond, func() {
		atomic.AddInt32(&calls, 1)
		fired <- struct{}{}
	})

	n.Notify()
	n.Notify()
	n.Notify()
	<-fired
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	n.Notify()
	<-fired
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
