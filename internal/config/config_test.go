package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_FileFormat(t *testing.T) {
	content := `
server:
  port: 9000
  tile_dir: "/srv/tiles"
database:
  url: "postgresql://u:p@db:5432/gis"
cache:
  type: bigcache
  ttl_minutes: 5
tiles:
  defaults:
    srid: 3857
    index_column: h3
    index_resolution: 7
    attr_columns: [band1, band2]
  tables:
    - name: elev
    - name: public.landcover
      index_resolution: 9
      attr_columns: [class]
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.TileDir != "/srv/tiles" {
		t.Errorf("unexpected tile_dir: %s", cfg.Server.TileDir)
	}
	if cfg.Cache.Type != "bigcache" || cfg.Cache.TTLMinutes != 5 {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}

	schemas := cfg.Schemas()
	if len(schemas) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(schemas))
	}

	elev := schemas[0]
	if elev.Table != "elev" || elev.SRID != 3857 || elev.IndexColumn != "h3" || elev.IndexResolution != 7 {
		t.Errorf("unexpected elev schema: %+v", elev)
	}
	if strings.Join(elev.AttrColumns, ",") != "band1,band2" {
		t.Errorf("unexpected elev attr columns: %v", elev.AttrColumns)
	}

	lc := schemas[1]
	if lc.Table != "public.landcover" || lc.IndexResolution != 9 || lc.SRID != 3857 {
		t.Errorf("unexpected landcover schema: %+v", lc)
	}
	if strings.Join(lc.AttrColumns, ",") != "class" {
		t.Errorf("unexpected landcover attr columns: %v", lc.AttrColumns)
	}
}

func TestConfig_SchemaLookup(t *testing.T) {
	cfg := loadFromString(t, `
tiles:
  tables:
    - name: elev
    - name: five_year
      index_resolution: 6
`)

	if got := strings.Join(cfg.TableNames(), ","); got != "elev,five_year" {
		t.Errorf("unexpected table names: %s", got)
	}

	s, ok := cfg.Schema("five_year")
	if !ok {
		t.Fatal("expected five_year to be configured")
	}
	if s.IndexResolution != 6 || s.IndexColumn != "h3_ix" {
		t.Errorf("unexpected five_year schema: %+v", s)
	}

	if _, ok := cfg.Schema("buildings"); ok {
		t.Error("expected buildings to be absent")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
server:
  port: 0
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Cache.Type != "memory" || cfg.Cache.MaxEntries != 500 || cfg.Cache.TTLMinutes != 30 {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Server.TileDir != "./tiles" {
		t.Errorf("expected default tile dir, got %q", cfg.Server.TileDir)
	}

	schemas := cfg.Schemas()
	if len(schemas) != 1 || schemas[0].Table != "elev" {
		t.Fatalf("expected default table elev, got %+v", schemas)
	}
	s := schemas[0]
	if s.SRID != 4326 || s.IndexColumn != "h3_ix" || s.IndexResolution != 8 {
		t.Errorf("unexpected default schema: %+v", s)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for a missing file, got %v", err)
	}
	if cfg.Database.URL != DefaultConfig().Database.URL {
		t.Errorf("unexpected database url: %s", cfg.Database.URL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://env@db/gis")
	t.Setenv("TILE_DIR", "/env/tiles")
	t.Setenv("TILE_TABLE_SRID", "3857")
	t.Setenv("TILE_TABLE_H3INX_COLUMN", "cell")
	t.Setenv("TILE_TABLE_H3INX_RESOLUTION", " 6 ")
	t.Setenv("TILE_TABLE_ATTR_COLUMNS", "band1, band2,,")
	t.Setenv("TILE_TABLES", "elev,five_year")

	cfg := loadFromString(t, `
database:
  url: "postgresql://file@db/gis"
`)

	if cfg.Database.URL != "postgresql://env@db/gis" {
		t.Errorf("env should override file url, got %s", cfg.Database.URL)
	}
	if cfg.Server.TileDir != "/env/tiles" {
		t.Errorf("unexpected tile dir: %s", cfg.Server.TileDir)
	}

	schemas := cfg.Schemas()
	if len(schemas) != 2 || schemas[1].Table != "five_year" {
		t.Fatalf("unexpected tables: %+v", schemas)
	}
	s := schemas[0]
	if s.SRID != 3857 || s.IndexColumn != "cell" || s.IndexResolution != 6 {
		t.Errorf("unexpected schema: %+v", s)
	}
	if strings.Join(s.AttrColumns, ",") != "band1,band2" {
		t.Errorf("unexpected attr columns: %v", s.AttrColumns)
	}
}

func TestLoad_RejectsMalformedInteger(t *testing.T) {
	t.Setenv("TILE_TABLE_H3INX_RESOLUTION", "eight")

	path := writeConfig(t, "")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "TILE_TABLE_H3INX_RESOLUTION") {
		t.Fatalf("expected resolution parse error, got %v", err)
	}
}

func TestLoad_RejectsUnsafeIdentifiers(t *testing.T) {
	cases := map[string]string{
		"table": `
tiles:
  tables:
    - name: "elev; DROP TABLE elev"
`,
		"attr": `
tiles:
  defaults:
    attr_columns: ["band1", "pg_sleep(10)"]
`,
		"index": `
tiles:
  defaults:
    index_column: "a.b"
`,
		"join": `
query:
  join_table: "buildings bl"
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoad_RejectsBadResolution(t *testing.T) {
	content := `
tiles:
  defaults:
    index_resolution: 16
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatal("expected resolution out of range")
	}
}

func TestLoad_ResolutionZeroIsKept(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		t.Setenv("TILE_TABLE_H3INX_RESOLUTION", "0")

		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if got := cfg.Schemas()[0].IndexResolution; got != 0 {
			t.Errorf("expected resolution 0, got %d", got)
		}
	})

	t.Run("file", func(t *testing.T) {
		cfg := loadFromString(t, `
tiles:
  defaults:
    index_resolution: 0
  tables:
    - name: elev
    - name: coarse
      index_resolution: 0
    - name: fine
      index_resolution: 12
`)
		schemas := cfg.Schemas()
		if len(schemas) != 3 {
			t.Fatalf("expected 3 tables, got %d", len(schemas))
		}
		for i, want := range []int{0, 0, 12} {
			if schemas[i].IndexResolution != want {
				t.Errorf("%s: expected resolution %d, got %d", schemas[i].Table, want, schemas[i].IndexResolution)
			}
		}
	})

	t.Run("table overrides default with zero", func(t *testing.T) {
		cfg := loadFromString(t, `
tiles:
  defaults:
    index_resolution: 9
  tables:
    - name: coarse
      index_resolution: 0
`)
		if got := cfg.Schemas()[0].IndexResolution; got != 0 {
			t.Errorf("expected resolution 0, got %d", got)
		}
	})
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	cfg := loadFromString(t, `
tiles:
  defaults:
    srid: 3857
`)
	s := cfg.Schemas()[0]
	if s.SRID != 3857 || s.IndexResolution != 8 || s.IndexColumn != "h3_ix" {
		t.Errorf("unexpected schema: %+v", s)
	}
}

func TestLoad_RejectsNonPositiveCacheLimits(t *testing.T) {
	cases := map[string]string{
		"zero entries":     "cache:\n  max_entries: 0\n",
		"negative entries": "cache:\n  max_entries: -5\n",
		"zero ttl":         "cache:\n  ttl_minutes: 0\n",
		"negative ttl":     "cache:\n  ttl_minutes: -1\n",
		"tiny bigcache":    "cache:\n  type: bigcache\n  size_mb: 1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected cache validation error")
			}
		})
	}
}

func TestLoad_LogLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	if cfg := loadFromString(t, ""); cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Log.Level)
	}

	t.Setenv("LOG_LEVEL", "verbose")
	if _, err := Load(writeConfig(t, "")); err == nil || !strings.Contains(err.Error(), "log level") {
		t.Fatalf("expected log level error, got %v", err)
	}
}

func TestLoad_RejectsUnknownCacheType(t *testing.T) {
	if _, err := Load(writeConfig(t, "cache:\n  type: file\n")); err == nil {
		t.Fatal("expected unknown cache type error")
	}
}

func TestValidIdentifier(t *testing.T) {
	good := []string{"elev", "_x1", "public.elev", "Band_2"}
	bad := []string{"", "1abc", "elev;", `"elev"`, "a.b.c", "a b", "a-b"}
	for _, s := range good {
		if !ValidIdentifier(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range bad {
		if ValidIdentifier(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
