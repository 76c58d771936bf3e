package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/giteval/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func setEnv(t *testing.T, key, val string) {
	t.Helper()
	// t.Setenv persists for the whole test, but Convey re-runs the outer
	// block per branch; restore on Reset so branches stay isolated.
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, val); err != nil {
		t.Fatal(err)
	}
	Reset(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad(t *testing.T) {
	Convey("Given required secrets in the environment", t, func() {
		setEnv(t, "GITEVAL_CONFIG", "")
		setEnv(t, "GITEVAL_WEBHOOK_SECRET", "hook-secret")
		setEnv(t, "GITEVAL_ADMIN_TOKEN_SECRET", "admin-secret")

		Convey("Defaults load and env fills the secrets", func() {
			cfg, err := config.Load()
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":8080")
			So(cfg.WebhookSecret, ShouldEqual, "hook-secret")
			So(cfg.StoreBackend, ShouldEqual, config.StoreBackendFile)
			So(cfg.RoleNamePrefix, ShouldEqual, "Git-Eval")
		})

		Convey("Env overrides defaults", func() {
			setEnv(t, "GITEVAL_ADDR", ":9999")
			setEnv(t, "GITEVAL_STORE_BACKEND", "sqlite")
			setEnv(t, "GITEVAL_STORE_PATH", "/tmp/users.db")

			cfg, err := config.Load()
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9999")
			So(cfg.StoreBackend, ShouldEqual, config.StoreBackendSQLite)
			So(cfg.StorePath, ShouldEqual, "/tmp/users.db")
		})

		Convey("A YAML file layers under env", func() {
			path := filepath.Join(t.TempDir(), "config.yaml")
			So(os.WriteFile(path, []byte("addr: \":7070\"\nnotification_channel: promotions\n"), 0o600), ShouldBeNil)
			setEnv(t, "GITEVAL_CONFIG", path)

			cfg, err := config.Load()
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.NotificationChannel, ShouldEqual, "promotions")

			Convey("And env still wins over the file", func() {
				setEnv(t, "GITEVAL_ADDR", ":6060")
				cfg, err := config.Load()
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
			})
		})
	})

	Convey("Given missing secrets", t, func() {
		setEnv(t, "GITEVAL_CONFIG", "")
		setEnv(t, "GITEVAL_WEBHOOK_SECRET", "")
		setEnv(t, "GITEVAL_ADMIN_TOKEN_SECRET", "")

		Convey("Load rejects the config", func() {
			_, err := config.Load()
			So(err, ShouldWrap, config.ErrInvalidConfig)
		})
	})

	Convey("Given an unknown store backend", t, func() {
		setEnv(t, "GITEVAL_CONFIG", "")
		setEnv(t, "GITEVAL_WEBHOOK_SECRET", "hook-secret")
		setEnv(t, "GITEVAL_ADMIN_TOKEN_SECRET", "admin-secret")
		setEnv(t, "GITEVAL_STORE_BACKEND", "redis")

		Convey("Load rejects the config", func() {
			_, err := config.Load()
			So(err, ShouldWrap, config.ErrInvalidConfig)
		})
	})
}
