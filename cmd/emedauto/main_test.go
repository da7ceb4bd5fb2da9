// File: cmd/emedauto/main_test.go
package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("run aborted: step timed out")))
	assert.Equal(t, 1, exitCode(context.Canceled))
}

func TestHandlePanic(t *testing.T) {
	var written []byte
	var code int
	osWriteFile = func(name string, data []byte, perm os.FileMode) error {
		assert.Equal(t, panicLogFile, name)
		written = data
		return nil
	}
	osExit = func(c int) { code = c }
	t.Cleanup(func() {
		osWriteFile = os.WriteFile
		osExit = os.Exit
	})

	func() {
		defer handlePanic()
		panic("browser vanished")
	}()

	assert.Equal(t, 2, code)
	assert.Contains(t, string(written), "panic: browser vanished")
	assert.Contains(t, string(written), "goroutine")
}

func TestHandlePanic_WriteFails(t *testing.T) {
	var code int
	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only filesystem") }
	osExit = func(c int) { code = c }
	t.Cleanup(func() {
		osWriteFile = os.WriteFile
		osExit = os.Exit
	})

	func() {
		defer handlePanic()
		panic("boom")
	}()
	assert.Equal(t, 2, code)
}

func TestMainUsesExecute(t *testing.T) {
	code := -1
	orig := execute
	execute = func(ctx context.Context) error { return nil }
	osExit = func(c int) { code = c }
	t.Cleanup(func() {
		execute = orig
		osExit = os.Exit
	})
	main()
	assert.Equal(t, 0, code)
}
