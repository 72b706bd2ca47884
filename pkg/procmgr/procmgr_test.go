package procmgr

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/platsvc/pkg/mailbox"
)

func TestParseDirectivesGrammar(t *testing.T) {
	input := strings.NewReader(strings.Join([]string{
		"# a comment",
		"",
		`static web "--port 8080"`,
		`dynamic worker module libworker.so:MakeWorker "--id 1"`,
		"suspend worker",
		"resume worker",
		"remove worker",
	}, "\n"))

	directives, err := ParseDirectives(input)
	require.NoError(t, err)
	require.Len(t, directives, 6)

	require.Equal(t, ActionStatic, directives[0].Action)
	require.Equal(t, "web", directives[0].Name)
	require.Equal(t, "--port 8080", directives[0].Argv)

	dyn := directives[1]
	require.Equal(t, ActionDynamic, dyn.Action)
	require.Equal(t, "worker", dyn.Name)
	require.Equal(t, KindModule, dyn.Kind)
	require.Equal(t, "libworker.so", dyn.Library)
	require.Equal(t, "MakeWorker", dyn.Factory)
	require.Equal(t, "--id 1", dyn.Argv)

	require.Equal(t, ActionSuspend, directives[2].Action)
	require.Equal(t, ActionResume, directives[3].Action)
	require.Equal(t, ActionRemove, directives[4].Action)
}

func TestParseDirectivesRejectsUnknownAction(t *testing.T) {
	_, err := ParseDirectives(strings.NewReader("frobnicate x"))
	require.Error(t, err)
}

func TestSupervisorSpawnAndStatusPersist(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "procmgr.db")

	mb, owner := mailbox.NewLocalMailbox("procmgr-signals", 0)
	require.NoError(t, mb.Activate(owner))

	sup, err := NewSupervisor(dbPath, mb, owner)
	require.NoError(t, err)

	sup.Apply([]Directive{{Action: ActionDynamic, Name: "sleeper", Kind: KindModule, Library: "sleep", Argv: "0.2"}})

	require.Eventually(t, func() bool {
		statuses, err := Status(dbPath)
		if err != nil {
			return false
		}
		st, ok := statuses["sleeper"]
		return ok && st.Running
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, sup.Shutdown(context.Background()))
}
