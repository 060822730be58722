package opsdeckcmder_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	opsdeckcmder "github.com/papercomputeco/opsdeck/cmd/opsdeck"
)

var _ = Describe("NewOpsdeckCmd", func() {
	It("registers every subcommand", func() {
		cmd := opsdeckcmder.NewOpsdeckCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("render", "chat", "serve", "history", "config", "version"))
	})

	It("has the global flags", func() {
		cmd := opsdeckcmder.NewOpsdeckCmd()
		Expect(cmd.PersistentFlags().Lookup("debug").Shorthand).To(Equal("d"))
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("reads render.strict from the config dir", func() {
		GinkgoT().Setenv("HOME", GinkgoT().TempDir())
		configDir := GinkgoT().TempDir()
		Expect(os.WriteFile(
			filepath.Join(configDir, "config.toml"),
			[]byte("version = 0\n\n[render]\nstrict = true\n"),
			0o644,
		)).To(Succeed())

		cmd := opsdeckcmder.NewOpsdeckCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetIn(strings.NewReader("[x](javascript:alert(1))"))
		cmd.SetArgs([]string{"--config-dir", configDir, "render"})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).NotTo(ContainSubstring("href"))
	})

	It("lets a flag override the config file", func() {
		GinkgoT().Setenv("HOME", GinkgoT().TempDir())
		configDir := GinkgoT().TempDir()
		Expect(os.WriteFile(
			filepath.Join(configDir, "config.toml"),
			[]byte("version = 0\n\n[render]\nstrict = true\n"),
			0o644,
		)).To(Succeed())

		cmd := opsdeckcmder.NewOpsdeckCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetIn(strings.NewReader("[x](javascript:alert(1))"))
		cmd.SetArgs([]string{"--config-dir", configDir, "render", "--strict=false"})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring(`href="#"`))
	})
})
