package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTestCLI 使用临时目录和环境变量隔离配置与数据库
func newTestCLI(t *testing.T, stdin string) (*cli, *bytes.Buffer, string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("HUDDLE_CONFIG_PATH", "")
	t.Setenv("HUDDLE_HOME", filepath.Join(home, "data"))
	t.Setenv("HUDDLE_OWNER_ID", "u1")
	t.Setenv("HUDDLE_OWNER_NAME", "Alex")
	t.Setenv("HUDDLE_LOCALE", "en")
	t.Setenv("HUDDLE_RECAP_ENABLED", "false")

	out := &bytes.Buffer{}
	c := newCLI(strings.NewReader(stdin), out, out)
	t.Cleanup(c.close)
	return c, out, home
}

func runCLI(t *testing.T, c *cli, args ...string) {
	t.Helper()
	if err := c.run(context.Background(), args); err != nil {
		t.Fatalf("huddle %s: %v", strings.Join(args, " "), err)
	}
}

func TestAddAndList(t *testing.T) {
	c, out, _ := newTestCLI(t, "")
	runCLI(t, c, "add", "rock", "Renovate", "kitchen", "--due", "2026-06-30")
	runCLI(t, c, "add", "todo", "Call plumber")
	runCLI(t, c, "add", "issue", "Budget", "--priority", "high")

	if got := strings.Count(out.String(), "Created "); got != 3 {
		t.Fatalf("created lines=%d:\n%s", got, out.String())
	}

	out.Reset()
	runCLI(t, c, "list")
	listing := out.String()
	for _, want := range []string{"ROCKS", "Renovate kitchen", "Call plumber", "Budget", "high"} {
		if !strings.Contains(listing, want) {
			t.Fatalf("list missing %q:\n%s", want, listing)
		}
	}

	out.Reset()
	runCLI(t, c, "list", "todos")
	if strings.Contains(out.String(), "Renovate") {
		t.Fatalf("list todos should not show rocks:\n%s", out.String())
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	c, _, _ := newTestCLI(t, "")
	ctx := context.Background()
	if err := c.run(ctx, []string{"add", "rock"}); err == nil {
		t.Fatal("expected error for missing title")
	}
	if err := c.run(ctx, []string{"add", "issue", "x", "--priority", "urgent"}); err == nil {
		t.Fatal("expected error for invalid priority")
	}
	if err := c.run(ctx, []string{"list", "goals"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestOwnerRequired(t *testing.T) {
	c, _, _ := newTestCLI(t, "")
	t.Setenv("HUDDLE_OWNER_ID", "")
	err := c.run(context.Background(), []string{"list"})
	if err == nil || !strings.Contains(err.Error(), "whoami") {
		t.Fatalf("err=%v", err)
	}
}

func TestLineMeetingThenHistory(t *testing.T) {
	script := strings.Join([]string{
		"checkin 1 tired",
		"checkin 2 hopeful",
		"goto 6",
		"close 1 8",
		"close 2 9",
		"next",
	}, "\n")
	c, out, home := newTestCLI(t, script)
	runCLI(t, c, "add", "rock", "Renovate kitchen")
	runCLI(t, c, "start", "--line")
	if !strings.Contains(out.String(), "Meeting complete.") {
		t.Fatalf("start output:\n%s", out.String())
	}

	out.Reset()
	runCLI(t, c, "history")
	history := out.String()
	if !strings.Contains(history, "Past meetings") {
		t.Fatalf("history:\n%s", history)
	}
	fields := strings.Fields(strings.Split(history, "\n")[1])
	if len(fields) == 0 {
		t.Fatalf("history row missing:\n%s", history)
	}
	id := fields[0]

	out.Reset()
	runCLI(t, c, "show", id)
	if !strings.Contains(out.String(), "tired") || !strings.Contains(out.String(), "hopeful") {
		t.Fatalf("show:\n%s", out.String())
	}

	out.Reset()
	runCLI(t, c, "export", "--all")
	if !strings.Contains(out.String(), "Exported ") {
		t.Fatalf("export:\n%s", out.String())
	}
	exported := filepath.Join(home, "data", "exports", "meetings", id+".json")
	if _, err := os.Stat(exported); err != nil {
		t.Fatalf("export file: %v", err)
	}

	// 另一个所有者看不到也删不掉这次会议
	t.Setenv("HUDDLE_OWNER_ID", "u2")
	other := newCLI(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	t.Cleanup(other.close)
	if err := other.run(context.Background(), []string{"show", id}); err == nil {
		t.Fatal("show as another owner should fail")
	}
	if err := other.run(context.Background(), []string{"delete", id}); err == nil {
		t.Fatal("delete as another owner should fail")
	}

	out.Reset()
	runCLI(t, c, "delete", id)
	runCLI(t, c, "history")
	if !strings.Contains(out.String(), "No meetings yet.") {
		t.Fatalf("history after delete:\n%s", out.String())
	}
}

func TestImport(t *testing.T) {
	c, out, home := newTestCLI(t, "")
	path := filepath.Join(home, "import.json")
	body := `{"rocks":[{"id":"r1","ownerId":"u1","title":"Imported rock"}],"todos":[{"ownerId":"u1","title":"no id"}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	runCLI(t, c, "import", path)
	if !strings.Contains(out.String(), "Imported 1 document(s)") {
		t.Fatalf("import:\n%s", out.String())
	}
	out.Reset()
	runCLI(t, c, "list", "rocks")
	if !strings.Contains(out.String(), "Imported rock") {
		t.Fatalf("list:\n%s", out.String())
	}
}

func TestWhoamiAndInit(t *testing.T) {
	c, out, _ := newTestCLI(t, "")
	runCLI(t, c, "whoami")
	if strings.TrimSpace(out.String()) != "Alex (u1)" {
		t.Fatalf("whoami=%q", out.String())
	}

	cwd := t.TempDir()
	t.Chdir(cwd)
	out.Reset()
	runCLI(t, c, "init")
	if !strings.Contains(out.String(), "Wrote ") {
		t.Fatalf("init:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(cwd, ".huddle", "config.json")); err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	out.Reset()
	runCLI(t, c, "init")
	if !strings.Contains(out.String(), "already exists") {
		t.Fatalf("second init:\n%s", out.String())
	}
}

func TestHelp(t *testing.T) {
	c, out, _ := newTestCLI(t, "")
	runCLI(t, c, "--help")
	for _, want := range []string{"Usage:", "start", "history", "export"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("help missing %q:\n%s", want, out.String())
		}
	}
	out.Reset()
	runCLI(t, c, "add", "--help")
	if !strings.Contains(out.String(), "rock") {
		t.Fatalf("add help:\n%s", out.String())
	}
}
