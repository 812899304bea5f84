package generator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasCompiler(t *testing.T, bin string) bool {
	t.Helper()
	_, err := exec.LookPath(bin)
	return err == nil
}

func TestCompileCheck_RejectsSyntaxError(t *testing.T) {
	if !hasCompiler(t, "g++") {
		t.Skip("g++ not available")
	}
	dir := t.TempDir()
	src, err := WriteSource(dir, "bad.cpp", "int main( {")
	require.NoError(t, err)

	tc := New("")
	err = tc.CompileCheck(context.Background(), src, 10*time.Second)
	assert.ErrorIs(t, err, ErrCompileFailed)
}

func TestCompileAndRun_EchoesStdin(t *testing.T) {
	if !hasCompiler(t, "g++") {
		t.Skip("g++ not available")
	}
	dir := t.TempDir()
	src, err := WriteSource(dir, "echo.cpp", `#include <iostream>
int main(){int x;std::cin>>x;std::cout<<x+1;return 0;}`)
	require.NoError(t, err)

	tc := New("")
	bin := filepath.Join(dir, "echo.out")
	require.NoError(t, tc.Compile(context.Background(), src, bin, 20*time.Second))

	res, err := tc.Run(context.Background(), bin, "41", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "42", res.Stdout)
	assert.False(t, res.TimedOut)
}

func TestRun_TimesOutOnInfiniteLoop(t *testing.T) {
	if !hasCompiler(t, "g++") {
		t.Skip("g++ not available")
	}
	dir := t.TempDir()
	src, err := WriteSource(dir, "loop.cpp", `int main(){for(;;){}return 0;}`)
	require.NoError(t, err)

	tc := New("")
	bin := filepath.Join(dir, "loop.out")
	require.NoError(t, tc.Compile(context.Background(), src, bin, 20*time.Second))

	res, err := tc.Run(context.Background(), bin, "", 200*time.Millisecond)
	require.Error(t, err)
	assert.True(t, res.TimedOut)
}

func TestWriteSource_CreatesScratchDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "scratch")
	path, err := WriteSource(dir, "a.cpp", "int main(){}")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "int main(){}", string(content))
}
