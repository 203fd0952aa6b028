package executor_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mserrors "github.com/input-output-hk/macrosync/errors"
	"github.com/input-output-hk/macrosync/executor"
)

func TestRun_Basic(t *testing.T) {
	result, err := executor.New().Run(context.Background(), executor.Command{
		Program: "echo",
		Args:    []string{"hello", "world"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result.Stdout, "hello world") {
		t.Errorf("expected stdout to contain 'hello world', got: %s", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got: %d", result.ExitCode)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got: %d", result.Attempts)
	}
}

func TestRun_MissingProgram(t *testing.T) {
	_, err := executor.New().Run(context.Background(), executor.Command{})
	if !mserrors.HasCode(err, mserrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input, got: %v", err)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	result, err := executor.New().Run(context.Background(), executor.Command{
		Program: "sh",
		Args:    []string{"-c", "echo broken >&2; exit 3"},
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var execErr *executor.Error
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *executor.Error, got %T", err)
	}
	if execErr.ExitCode != 3 || result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got: %d", execErr.ExitCode)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected stderr in error message, got: %s", err)
	}
	if got := mserrors.CodeOf(err); got != mserrors.CodeExecutionFailed {
		t.Errorf("expected %s, got %s", mserrors.CodeExecutionFailed, got)
	}
}

func TestRun_Retry(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "attempts")
	script := fmt.Sprintf(`echo x >> %q; [ "$(wc -l < %q)" -ge 3 ]`, counter, counter)

	ex := executor.New(executor.WithRetry(3, 10*time.Millisecond))
	result, err := ex.Run(context.Background(), executor.Command{
		Program: "sh",
		Args:    []string{"-c", script},
	})
	if err != nil {
		t.Fatalf("expected success after retries, got error: %v", err)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got: %d", result.Attempts)
	}
}

func TestRun_RetryCondition(t *testing.T) {
	ex := executor.New(
		executor.WithRetry(5, time.Millisecond),
		executor.WithRetryCondition(func(error) bool { return false }),
	)
	result, err := ex.Run(context.Background(), executor.Command{
		Program: "false",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Attempts != 1 {
		t.Errorf("expected a single attempt, got: %d", result.Attempts)
	}
}

func TestRun_Input(t *testing.T) {
	input := "hello from stdin"
	result, err := executor.New().Run(context.Background(), executor.Command{
		Program: "cat",
		Input:   input,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != input {
		t.Errorf("expected stdout to match input, got: %s", result.Stdout)
	}
}

func TestRun_DirAndEnv(t *testing.T) {
	dir := t.TempDir()
	result, err := executor.New().Run(context.Background(), executor.Command{
		Program: "sh",
		Args:    []string{"-c", "pwd; echo $MACRO_PARAM"},
		Dir:     dir,
		Env:     map[string]string{"MACRO_PARAM": "value"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Stdout, filepath.Base(dir)) {
		t.Errorf("expected working dir in output, got: %s", result.Stdout)
	}
	if !strings.Contains(result.Stdout, "value") {
		t.Errorf("expected env var value in output, got: %s", result.Stdout)
	}
}

func TestRun_Tee(t *testing.T) {
	var out, errOut bytes.Buffer
	ex := executor.New(executor.WithStdoutWriter(&out), executor.WithStderrWriter(&errOut))
	_, err := ex.Run(context.Background(), executor.Command{
		Program: "sh",
		Args:    []string{"-c", "echo out; echo err >&2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "out" || strings.TrimSpace(errOut.String()) != "err" {
		t.Errorf("unexpected tee output: %q %q", out.String(), errOut.String())
	}
}

func TestRun_Timeout(t *testing.T) {
	_, err := executor.New().Run(context.Background(), executor.Command{
		Program: "sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if got := mserrors.CodeOf(err); got != mserrors.CodeTimeout {
		t.Errorf("expected %s, got %s", mserrors.CodeTimeout, got)
	}
}

func TestRun_TimeoutKillsChildren(t *testing.T) {
	start := time.Now()
	_, err := executor.New().Run(context.Background(), executor.Command{
		Program: "sh",
		Args:    []string{"-c", "sleep 5 & wait; echo saved"},
		Timeout: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if got := mserrors.CodeOf(err); got != mserrors.CodeTimeout {
		t.Errorf("expected %s, got %s (%v)", mserrors.CodeTimeout, got, err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("run outlived its timeout: %s", elapsed)
	}
}

func TestRun_CancelKillsChildren(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := executor.New().Run(ctx, executor.Command{
		Program: "sh",
		Args:    []string{"-c", "sleep 5 & wait"},
	})
	elapsed := time.Since(start)

	if got := mserrors.CodeOf(err); got != mserrors.CodeCanceled {
		t.Errorf("expected %s, got %s (%v)", mserrors.CodeCanceled, got, err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("run outlived its context: %s", elapsed)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	ex := executor.New(executor.WithRetry(3, time.Second))
	result, err := ex.Run(ctx, executor.Command{Program: "sleep", Args: []string{"5"}})
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
	if result.Attempts != 1 {
		t.Errorf("cancelled run must not retry, got %d attempts", result.Attempts)
	}
	if got := mserrors.CodeOf(err); got != mserrors.CodeCanceled {
		t.Errorf("expected %s, got %s", mserrors.CodeCanceled, got)
	}
}

func ExampleExec_Run() {
	ex := executor.New(executor.WithRetry(2, 100*time.Millisecond))
	result, err := ex.Run(context.Background(), executor.Command{
		Program: "echo",
		Args:    []string{"Hello, World!"},
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Print(result.Stdout)
	// Output: Hello, World!
}
