package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/xsrledger/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.LedgerDriver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.HTTPTimeout, convey.ShouldEqual, 60*time.Second)
				convey.So(cfg.Sources, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("XSR_ADDR", ":8080")
			_ = os.Setenv("XSR_WORKER_COUNT", "16")
			_ = os.Setenv("XSR_PUBLISHER", "JKO")
			_ = os.Setenv("XSR_LEDGER_DRIVER", "postgres")
			_ = os.Setenv("XSR_LEDGER_DSN", "postgres://xsr@localhost/xsr")
			_ = os.Setenv("XSR_HTTP_TIMEOUT", "90s")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.Publisher, convey.ShouldEqual, "JKO")
				convey.So(cfg.LedgerDriver, convey.ShouldEqual, "postgres")
				convey.So(cfg.LedgerDSN, convey.ShouldEqual, "postgres://xsr@localhost/xsr")
				convey.So(cfg.HTTPTimeout, convey.ShouldEqual, 90*time.Second)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
addr: ":9090"
publisher: ACE
http_timeout: 5s
kafka_brokers:
  - localhost:9092
kafka_topic: ledger
sources:
  - name: ace-courses
    endpoint: https://api.example.org/transcripts
    credential: secret
    variant: Course
    parameters:
      since: "202301"
  - name: ace-occupations
    endpoint: /data/occupations.xml
    variant: occupation
    format: XML
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvConfigPath, tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values and the source registry are loaded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Publisher, convey.ShouldEqual, "ACE")
				convey.So(cfg.HTTPTimeout, convey.ShouldEqual, 5*time.Second)
				convey.So(cfg.KafkaBrokers, convey.ShouldResemble, []string{"localhost:9092"})
				convey.So(cfg.Sources, convey.ShouldHaveLength, 2)

				src, ok := cfg.Source("ace-courses")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(src.Credential, convey.ShouldEqual, "secret")
				convey.So(src.Format, convey.ShouldEqual, config.FormatJSON)
				convey.So(src.Parameters["since"], convey.ShouldEqual, "202301")

				occ, _ := cfg.Source("ace-occupations")
				convey.So(occ.Format, convey.ShouldEqual, config.FormatXML)
			})

			convey.Convey("And env still wins over the file", func() {
				_ = os.Setenv("XSR_ADDR", ":7070")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given invalid configuration", t, func() {
		ctx := context.Background()

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv(config.EnvConfigPath, "/nonexistent/xsr.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the postgres driver has no DSN", func() {
			_ = os.Setenv("XSR_LEDGER_DRIVER", "postgres")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the ledger driver is unknown", func() {
			_ = os.Setenv("XSR_LEDGER_DRIVER", "mongo")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a source declares an unknown variant", func() {
			tmpFile := createTempConfigFile(`
publisher: ACE
sources:
  - name: bad
    endpoint: /tmp/x.json
    variant: Degree
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvConfigPath, tmpFile)
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation names the source", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "sources[0]")
			})
		})

		convey.Convey("When sources are listed without a publisher", func() {
			tmpFile := createTempConfigFile(`
sources:
  - name: ace-courses
    endpoint: /tmp/a.json
    variant: Course
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvConfigPath, tmpFile)
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails before any batch could drop every record", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "publisher")
			})
		})

		convey.Convey("When two sources share a name", func() {
			tmpFile := createTempConfigFile(`
publisher: ACE
sources:
  - name: dup
    endpoint: /tmp/a.json
    variant: Course
  - name: dup
    endpoint: /tmp/b.json
    variant: Course
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvConfigPath, tmpFile)
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "duplicate source name")
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, k := range []string{
		config.EnvConfigPath,
		"XSR_ADDR",
		"XSR_WORKER_COUNT",
		"XSR_PUBLISHER",
		"XSR_LEDGER_DRIVER",
		"XSR_LEDGER_DSN",
		"XSR_HTTP_TIMEOUT",
	} {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "xsr-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}
