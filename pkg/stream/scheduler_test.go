package stream

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Scheduler", func() {
	var (
		frames *manualFrames
		sched  *Scheduler

		mu    sync.Mutex
		htmls []string
	)

	rendered := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), htmls...)
	}

	BeforeEach(func() {
		htmls = nil
		frames = &manualFrames{}
		sched = NewScheduler(frames, func(html string) {
			mu.Lock()
			defer mu.Unlock()
			htmls = append(htmls, html)
		})
	})

	It("does not schedule a frame before the first delta", func() {
		Expect(frames.Pending()).To(Equal(0))
	})

	It("coalesces deltas within a frame into one render", func() {
		sched.OnDelta("**bo")
		sched.OnDelta("ld** ")
		sched.OnDelta("text")

		Expect(frames.Pending()).To(Equal(1))
		Expect(rendered()).To(BeEmpty())

		Expect(frames.Tick()).To(Equal(1))
		Expect(rendered()).To(Equal([]string{"<p><strong>bold</strong> text</p>"}))
	})

	It("schedules a new frame for deltas after a render", func() {
		sched.OnDelta("a")
		frames.Tick()
		Expect(frames.Pending()).To(Equal(0))

		sched.OnDelta("b")
		Expect(frames.Pending()).To(Equal(1))
		frames.Tick()

		Expect(rendered()).To(Equal([]string{"<p>a</p>", "<p>ab</p>"}))
	})

	It("renders the full buffer on Finish and cancels the pending frame", func() {
		sched.OnDelta("# Title")

		Expect(sched.Finish()).To(Equal("# Title"))
		Expect(rendered()).To(Equal([]string{"<h1>Title</h1>"}))

		Expect(frames.Tick()).To(Equal(0))
		Expect(rendered()).To(HaveLen(1))
	})

	It("renders once on Finish even with no deltas", func() {
		Expect(sched.Finish()).To(Equal(""))
		Expect(rendered()).To(Equal([]string{""}))
	})

	It("ignores deltas and repeated Finish calls once finished", func() {
		sched.OnDelta("one")
		sched.Finish()

		sched.OnDelta(" two")
		Expect(frames.Pending()).To(Equal(0))
		Expect(sched.Finish()).To(Equal("one"))
		Expect(rendered()).To(HaveLen(1))
	})

	It("never renders after Discard", func() {
		sched.OnDelta("partial")
		sched.Discard()

		frames.Tick()
		sched.Finish()

		Expect(rendered()).To(BeEmpty())
		Expect(sched.Text()).To(Equal("partial"))
	})

	It("skips a frame that fires after Finish", func() {
		var fn func()
		capture := frameFunc(func(f func()) func() bool {
			fn = f
			return func() bool { return false }
		})
		sched = NewScheduler(capture, func(html string) {
			mu.Lock()
			defer mu.Unlock()
			htmls = append(htmls, html)
		})

		sched.OnDelta("x")
		sched.Finish()
		fn()

		Expect(rendered()).To(Equal([]string{"<p>x</p>"}))
	})

	Context("with timer frames", func() {
		It("renders deltas on the next frame", func() {
			sched = NewScheduler(TimerFrames{Interval: 20 * time.Millisecond}, func(html string) {
				mu.Lock()
				defer mu.Unlock()
				htmls = append(htmls, html)
			})

			sched.OnDelta("fast ")
			sched.OnDelta("deltas")

			Eventually(rendered).Should(Equal([]string{"<p>fast deltas</p>"}))
			Consistently(rendered, 60*time.Millisecond).Should(HaveLen(1))
		})
	})
})

// frameFunc adapts a function to FrameScheduler.
type frameFunc func(fn func()) func() bool

func (f frameFunc) Schedule(fn func()) func() bool {
	return f(fn)
}
