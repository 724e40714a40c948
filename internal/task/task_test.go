package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "task_x", SanitizeName("task x"))
	assert.Equal(t, "a_b_c", SanitizeName("a.b/c"))
	assert.Equal(t, "ok", SanitizeName("ok"))
}

func TestCmdFilePaths(t *testing.T) {
	r := &Run{WorkDirectory: "/work/ab/abcdef"}
	assert.Equal(t, "/work/ab/abcdef/.command.sh", r.CmdWrapperFile())
	assert.Equal(t, "/work/ab/abcdef/.command.out", r.CmdOutputFile())
	assert.Equal(t, "/work/ab/abcdef/.command.exitcode", r.CmdExitFile())
}

func TestSetExitStatus(t *testing.T) {
	r := &Run{}
	assert.False(t, r.ExitStatusSet)
	r.SetExitStatus(0)
	assert.True(t, r.ExitStatusSet)
	assert.Equal(t, 0, r.ExitStatus)
}
