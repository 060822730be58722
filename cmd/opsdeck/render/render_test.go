package rendercmder

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/opsdeck/pkg/logger"
)

var _ = Describe("NewRenderCmd", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", tmpDir)
	})

	run := func(stdin string, args ...string) (string, error) {
		cmd := NewRenderCmd()
		var out bytes.Buffer
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetOut(&out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	It("renders stdin", func() {
		out, err := run("# Title\n\nhello **world**")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("<h1>Title</h1><br/><p>hello <strong>world</strong></p>\n"))
	})

	It("renders a file", func() {
		path := filepath.Join(tmpDir, "notes.md")
		Expect(os.WriteFile(path, []byte("- one\n- two"), 0o644)).To(Succeed())

		out, err := run("", path)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("<ul><li>one</li><li>two</li></ul>\n"))
	})

	It("escapes raw html", func() {
		out, err := run("<script>alert(1)</script>")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).NotTo(ContainSubstring("<script>"))
		Expect(out).To(ContainSubstring("&lt;script&gt;"))
	})

	It("drops rejected links in strict mode", func() {
		out, err := run("[x](javascript:alert(1))", "--strict")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).NotTo(ContainSubstring("href"))
		Expect(out).NotTo(ContainSubstring("javascript"))
	})

	It("keeps the sanitized link without strict mode", func() {
		out, err := run("[x](javascript:alert(1))")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`href="#"`))
	})

	It("fails on a missing file", func() {
		_, err := run("", filepath.Join(tmpDir, "missing.md"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("missing.md"))
	})

	It("requires a file for --watch", func() {
		_, err := run("# x", "--watch")
		Expect(err).To(MatchError("--watch requires a file"))
	})
})

var _ = Describe("watchFile", func() {
	It("calls back once per burst of writes", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "live.md")
		Expect(os.WriteFile(path, []byte("a"), 0o644)).To(Succeed())

		c := &renderCommander{logger: logger.Nop()}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var calls atomic.Int32
		done := make(chan error, 1)
		go func() {
			done <- c.watchFile(ctx, path, func() { calls.Add(1) })
		}()

		// Give the watcher time to register before writing.
		time.Sleep(50 * time.Millisecond)
		Expect(os.WriteFile(path, []byte("b"), 0o644)).To(Succeed())
		Expect(os.WriteFile(path, []byte("c"), 0o644)).To(Succeed())

		Eventually(calls.Load).Should(BeNumerically("==", 1))
		Consistently(calls.Load, 3*watchDebounce).Should(BeNumerically("==", 1))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("ignores other files in the directory", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "live.md")
		Expect(os.WriteFile(path, []byte("a"), 0o644)).To(Succeed())

		c := &renderCommander{logger: logger.Nop()}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var calls atomic.Int32
		go func() {
			_ = c.watchFile(ctx, path, func() { calls.Add(1) })
		}()

		time.Sleep(50 * time.Millisecond)
		Expect(os.WriteFile(filepath.Join(dir, "other.md"), []byte("x"), 0o644)).To(Succeed())

		Consistently(calls.Load, 3*watchDebounce).Should(BeZero())
	})
})
