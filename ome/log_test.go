package ome

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestLoggerMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, WarningMode)
	logger.Debugf("debug %d", 1)
	logger.Infof("info %d", 2)
	logger.Warningf("warning %d", 3)
	logger.Errorf("error %d", 4)
	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("messages below warning were logged:\n%s", out)
	}
	if !strings.Contains(out, "WARNING warning 3") || !strings.Contains(out, "ERROR error 4") {
		t.Errorf("expected warning and error messages, got:\n%s", out)
	}
}

func TestDiscardLogger(t *testing.T) {
	logger := DiscardLogger()
	logger.Criticalf("nothing %s", "here")
	logger.Shutdown()
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{nil, 0},
		{errors.New("boom"), 1},
		{NewUsageError("bad"), DefaultUsageCode},
		{&UsageError{Code: NegativeQuotaCode, Msg: "neg"}, NegativeQuotaCode},
		{fmt.Errorf("wrapped: %w", &UsageError{Code: NotAdminCode}), NotAdminCode},
	}
	for _, tc := range tests {
		if got := ExitCode(tc.err); got != tc.code {
			t.Errorf("ExitCode(%v) = %d, expected %d\n", tc.err, got, tc.code)
		}
	}
}

func TestRemoteError(t *testing.T) {
	err := &RemoteError{Name: "bad-class", Message: "no such class"}
	if err.Error() != "bad-class: no such class" {
		t.Errorf("unexpected message %q\n", err.Error())
	}
}
