package cmd

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestServerAddLsRm(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("USERPROFILE", dir)
	cfg := filepath.Join(dir, "cubepub.yaml")
	if err := os.WriteFile(cfg, []byte("staging_dir: models\n"), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := executeRootCmdWithInput(t, strings.NewReader("s3cret\n"), "--config", cfg,
		"server", "add", "prod", "--url", "http://bi:8080/pentaho", "--username", "admin", "--password-stdin")
	if err != nil {
		t.Fatalf("server add failed: %v", err)
	}
	if !strings.Contains(stdout, "Saved server prod") {
		t.Fatalf("unexpected output: %q", stdout)
	}

	if _, _, err := executeRootCmd(t, "--config", cfg, "server", "add", "prod", "--url", "http://other/"); err == nil {
		t.Fatalf("expected duplicate profile to be rejected")
	}

	stdout, _, err = executeRootCmd(t, "--config", cfg, "--plain", "server", "ls")
	if err != nil {
		t.Fatalf("server ls failed: %v", err)
	}
	if !strings.Contains(stdout, "prod") || !strings.Contains(stdout, "http://bi:8080/pentaho/") {
		t.Fatalf("expected profile in listing, got: %q", stdout)
	}

	creds, err := os.ReadFile(filepath.Join(dir, ".cubepub", "credentials.json"))
	if err != nil {
		t.Fatalf("expected credentials file: %v", err)
	}
	if strings.Contains(string(creds), "s3cret") {
		t.Fatalf("password stored in clear text")
	}

	if _, _, err := executeRootCmd(t, "--config", cfg, "server", "rm", "prod"); err != nil {
		t.Fatalf("server rm failed: %v", err)
	}
	stdout, _, err = executeRootCmd(t, "--config", cfg, "server", "ls")
	if err != nil || !strings.Contains(stdout, "No server profiles") {
		t.Fatalf("expected empty listing, err=%v out=%q", err, stdout)
	}
}

func TestServerCheck(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, err := executeRootCmd(t, "--config", env.config, "server", "check")
	if err != nil || !strings.Contains(stdout, "reachable") {
		t.Fatalf("server check: err=%v out=%q", err, stdout)
	}

	t.Setenv("CUBEPUB_PASSWORD", "wrong")
	if _, _, err := executeRootCmd(t, "--config", env.config, "server", "check"); err == nil {
		t.Fatalf("expected bad credentials to fail")
	}
}

func TestImportDbeaverProject(t *testing.T) {
	env := newTestEnv(t)

	dbp := filepath.Join(env.dir, "project.dbp")
	f, err := os.Create(dbp)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create(".dbeaver/data-sources.json")
	_, _ = w.Write([]byte(`{"connections":{"pg-1":{"name":"Warehouse","provider":"postgresql",
"configuration":{"url":"jdbc:postgresql://dw:5432/dw","user":"etl"}}}}`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	stdout, _, err := executeRootCmd(t, "--config", env.config, "import-dbeaver-project", "--dbp", dbp, "--dry_run")
	if err != nil || !strings.Contains(stdout, "Warehouse: missing") {
		t.Fatalf("dry run: err=%v out=%q", err, stdout)
	}
	if got := env.bi.count("/connection/add"); got != 0 {
		t.Fatalf("dry run must not publish, got %d adds", got)
	}

	stdout, _, err = executeRootCmd(t, "--config", env.config, "import-dbeaver-project", "--dbp", dbp, "--feedback=false")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(stdout, "Created: 1") {
		t.Fatalf("unexpected output: %q", stdout)
	}
	if conn := env.bi.connections["Warehouse"]; conn == nil || conn["driverClass"] != "org.postgresql.Driver" {
		t.Fatalf("expected Warehouse with postgres driver, got %v", env.bi.connections)
	}

	stdout, _, err = executeRootCmd(t, "--config", env.config, "import-dbeaver-project", "--dbp", dbp, "--feedback=false")
	if err != nil || !strings.Contains(stdout, "Skipped: 1") {
		t.Fatalf("second import: err=%v out=%q", err, stdout)
	}
}
