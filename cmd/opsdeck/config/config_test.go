package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/opsdeck/cmd/opsdeck/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir = GinkgoT().TempDir()

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// A local .opsdeck dir so the manager picks it up.
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".opsdeck"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	run := func(args ...string) (string, error) {
		cmd := configcmder.NewConfigCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			out, err := run("set", "backend.target", "https://ops.internal")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("backend.target"))

			data, err := os.ReadFile(filepath.Join(tmpDir, ".opsdeck", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`target = "https://ops.internal"`))
		})

		It("rejects unknown keys", func() {
			_, err := run("set", "invalid_key", "value")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("requires exactly two arguments", func() {
			_, err := run("set", "backend.target")
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid durations", func() {
			_, err := run("set", "backend.timeout", "soon")
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid bools", func() {
			_, err := run("set", "render.strict", "maybe")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			_, err := run("set", "render.frame_interval", "33ms")
			Expect(err).NotTo(HaveOccurred())

			out, err := run("get", "render.frame_interval")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("33ms"))
		})

		It("reports an unset key", func() {
			out, err := run("get", "storage.sqlite_path")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			_, err := run("get", "invalid_key")
			Expect(err).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			_, err := run("get")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists defaults when no config exists", func() {
			out, err := run("list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(`backend.stream_path   = "/api/chat/stream"`))
			Expect(out).To(ContainSubstring("events.brokers        = <not set>"))
		})

		It("lists stored values", func() {
			_, err := run("set", "events.topic", "ops.events")
			Expect(err).NotTo(HaveOccurred())

			out, err := run("list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(`"ops.events"`))
		})

		It("rejects any arguments", func() {
			_, err := run("list", "extra")
			Expect(err).To(HaveOccurred())
		})
	})
})
