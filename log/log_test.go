package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestInitLevels(t *testing.T) {
	c := qt.New(t)
	t.Cleanup(func() { Init(LogLevelError, "stderr", nil) })

	for _, level := range []string{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelFatal} {
		Init(level, "stderr", nil)
		c.Assert(Level(), qt.Equals, level)
	}
	c.Assert(func() { Init("verbose", "stderr", nil) }, qt.PanicMatches, `invalid log level: "verbose"`)
}

func TestErrorOutput(t *testing.T) {
	c := qt.New(t)
	t.Cleanup(func() { Init(LogLevelError, "stderr", nil) })

	var errOut bytes.Buffer
	Init(LogLevelDebug, "stderr", &errOut)
	Infow("election created", "electionId", "ELEC-1")
	c.Assert(errOut.Len(), qt.Equals, 0)

	Warnw("election closure will be retried", "electionId", "ELEC-1")
	Errorw(errors.New("ledger down"), "could not close election")
	out := errOut.String()
	c.Assert(strings.Contains(out, "election closure will be retried"), qt.IsTrue)
	c.Assert(strings.Contains(out, "ledger down"), qt.IsTrue)
	c.Assert(strings.Contains(out, "election created"), qt.IsFalse)
}

func TestJSONFileOutput(t *testing.T) {
	c := qt.New(t)
	t.Cleanup(func() { Init(LogLevelError, "stderr", nil) })

	file := filepath.Join(t.TempDir(), "node.json")
	Init(LogLevelInfo, file, nil)
	Infow("vote cast", "electionId", "ELEC-1")

	data, err := os.ReadFile(file)
	c.Assert(err, qt.IsNil)
	c.Assert(strings.Contains(string(data), `"electionId":"ELEC-1"`), qt.IsTrue)
	c.Assert(strings.Contains(string(data), `"message":"vote cast"`), qt.IsTrue)
}
