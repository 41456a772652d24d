package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nifty-lil-tricks/testharness"
	"github.com/nifty-lil-tricks/testharness/internal/command"
	"github.com/nifty-lil-tricks/testharness/plugins/httpserver"
	"github.com/nifty-lil-tricks/testharness/plugins/postgresql"
)

const createUsers = `CREATE TABLE "User" (
  id SERIAL PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT
);`

func containerExists(id string) bool {
	res, err := command.NewExecRunner().Run(context.Background(), "docker", "inspect", id)
	Expect(err).NotTo(HaveOccurred())
	return res.Success()
}

var _ = Describe("PostgreSQL in Docker", Ordered, func() {
	var (
		h            *testharness.Harness
		migrationDir string
	)

	BeforeAll(func() {
		var err error
		h, err = testharness.New(
			testharness.Register(postgresql.Key, postgresql.NewPlugin(
				postgresql.WithDefaults(postgresql.Defaults{Version: "16-alpine", ReadyTimeout: 2 * time.Minute}),
			)),
			testharness.Register(httpserver.Key, httpserver.NewPlugin()),
		)
		Expect(err).NotTo(HaveOccurred())

		migrationDir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(migrationDir, "001_create_users.sql"), []byte(createUsers), 0o644)).To(Succeed())
	})

	It("provisions, migrates, seeds and removes a server", func(ctx SpecContext) {
		res, err := h.SetupTests(ctx, postgresql.Key.Configure(postgresql.Config{
			Server:  postgresql.ServerConfig{},
			Migrate: &postgresql.MigrationConfig{Root: migrationDir, Validate: true},
			Seed: postgresql.SeedConfig{{
				Table: "User",
				Rows: []postgresql.Row{
					{"email": "alice@example.com", "name": "Alice"},
					{"email": "bob@example.com", "name": "Bob"},
				},
			}},
		}))
		Expect(err).NotTo(HaveOccurred())

		out := postgresql.Key.Output(res.Outputs)
		Expect(out.Server.Connection.Hostname).NotTo(BeEmpty())
		Expect(out.Migrate.Migrations).To(HaveLen(1))
		Expect(out.Seed.Results).To(HaveLen(1))
		Expect(out.Seed.Results[0].InsertedCount).To(Equal(int64(2)))

		client, err := out.Server.Connect(ctx)
		Expect(err).NotTo(HaveOccurred())
		n, err := client.Count(ctx, "User")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(2)))
		Expect(client.Close()).To(Succeed())

		Expect(containerExists(out.Server.ID)).To(BeTrue())
		Expect(res.TeardownTests(context.Background())).To(Succeed())
		Expect(containerExists(out.Server.ID)).To(BeFalse())
	}, SpecTimeout(5*time.Minute))

	It("gives each run its own database on a shared server", func(ctx SpecContext) {
		shared, err := h.SetupTests(ctx, postgresql.Key.Configure(postgresql.Config{}))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(shared.TeardownTests(context.Background())).To(Succeed())
		})
		server := postgresql.Key.Output(shared.Outputs).Server

		var names []string
		for range 2 {
			run, err := h.SetupTests(ctx, postgresql.Key.Configure(postgresql.Config{
				Server:   server,
				Database: &postgresql.DatabaseConfig{Prefix: "e2e"},
				Migrate:  &postgresql.MigrationConfig{Root: migrationDir},
			}))
			Expect(err).NotTo(HaveOccurred())
			names = append(names, postgresql.Key.Output(run.Outputs).Server.Connection.Database)
			Expect(run.TeardownTests(context.Background())).To(Succeed())
		}

		Expect(names[0]).To(HavePrefix("e2e_"))
		Expect(names[0]).NotTo(Equal(names[1]))
		Expect(containerExists(server.ID)).To(BeTrue(), "per-run teardown leaves the shared server running")
	}, SpecTimeout(5*time.Minute))

	It("serves an application next to its database", func(ctx SpecContext) {
		gin.SetMode(gin.TestMode)

		res, err := h.SetupTests(ctx,
			postgresql.Key.Configure(postgresql.Config{Migrate: &postgresql.MigrationConfig{Root: migrationDir}}),
		)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(res.TeardownTests(context.Background())).To(Succeed())
		})
		server := postgresql.Key.Output(res.Outputs).Server

		router := gin.New()
		router.GET("/users/count", func(c *gin.Context) {
			client, err := server.Connect(c.Request.Context())
			if err != nil {
				c.AbortWithStatus(http.StatusServiceUnavailable)
				return
			}
			defer func() { _ = client.Close() }()
			n, err := client.Count(c.Request.Context(), "User")
			if err != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, gin.H{"count": n})
		})

		app, err := h.SetupTests(ctx, httpserver.Key.Configure(httpserver.Config{Handler: router}))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(app.TeardownTests(context.Background())).To(Succeed())
		})

		resp, err := http.Get(httpserver.Key.Output(app.Outputs).Origin + "/users/count")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var body struct {
			Count int64 `json:"count"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body.Count).To(BeZero())
	}, SpecTimeout(5*time.Minute))
})
