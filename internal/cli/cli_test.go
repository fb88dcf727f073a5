package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		viper.Reset()
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "panelbot dev") {
		t.Errorf("output = %q", out)
	}
}

func TestOneShotCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "panelbot.db")

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"migrate"}, "migrated to version"},
		{[]string{"cmd", "add", "glue", "5"}, "Total: 5"},
		{[]string{"cmd", "order", "glue:2"}, "Order #1 created"},
		{[]string{"cmd", "fulfill", "1"}, "completed order #1"},
		{[]string{"cmd", "stock", "glue"}, "glue: 3"},
		{[]string{"migrate", "status"}, "at version"},
	}

	for _, s := range steps {
		args := append([]string{s.args[0], "--db", dbPath}, s.args[1:]...)
		out, err := execute(t, args...)
		if err != nil {
			t.Fatalf("%v: %v", s.args, err)
		}
		if !strings.Contains(out, s.want) {
			t.Errorf("%v: output %q missing %q", s.args, out, s.want)
		}
	}
}

func TestOneShotUnknownCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "panelbot.db")
	if _, err := execute(t, "cmd", "--db", dbPath, "sell", "5"); err == nil {
		t.Error("expected error for unknown command")
	}
}
