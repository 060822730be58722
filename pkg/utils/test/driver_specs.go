package testutils

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/opsdeck/pkg/storage"
)

// DescribeDriver registers the behavior every storage.Driver must share.
// newDriver is called once per spec.
func DescribeDriver(newDriver func() storage.Driver) {
	Describe("storage.Driver behavior", func() {
		var (
			d   storage.Driver
			ctx context.Context
			t0  time.Time
		)

		BeforeEach(func() {
			d = newDriver()
			ctx = context.Background()
			t0 = time.Unix(1735689600, 0).UTC()
		})

		AfterEach(func() {
			Expect(d.Close()).To(Succeed())
		})

		record := func(id, client string, created time.Time) *storage.Record {
			return &storage.Record{
				ID:          id,
				ClientID:    client,
				Prompt:      "prompt " + id,
				Text:        "# Answer\n\n**" + id + "**",
				Status:      "done",
				CreatedAt:   created,
				CompletedAt: created.Add(time.Second),
			}
		}

		It("round-trips a record", func() {
			rec := record("a", "c1", t0)
			rec.Fallback = true
			rec.Error = "partial"
			Expect(d.Put(ctx, rec)).To(Succeed())

			got, err := d.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(rec))
		})

		It("replaces records with the same id", func() {
			Expect(d.Put(ctx, record("a", "c1", t0))).To(Succeed())

			updated := record("a", "c1", t0)
			updated.Text = "changed"
			Expect(d.Put(ctx, updated)).To(Succeed())

			got, err := d.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Text).To(Equal("changed"))
		})

		It("returns NotFoundError for unknown ids", func() {
			_, err := d.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
		})

		It("rejects nil records and records without an id", func() {
			Expect(d.Put(ctx, nil)).NotTo(Succeed())
			Expect(d.Put(ctx, &storage.Record{})).NotTo(Succeed())
		})

		It("lists newest first", func() {
			Expect(d.Put(ctx, record("old", "c1", t0))).To(Succeed())
			Expect(d.Put(ctx, record("new", "c1", t0.Add(time.Minute)))).To(Succeed())
			Expect(d.Put(ctx, record("mid", "c2", t0.Add(time.Second)))).To(Succeed())

			recs, err := d.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"new", "mid", "old"}))
		})

		It("filters by client and applies the limit", func() {
			Expect(d.Put(ctx, record("a", "c1", t0))).To(Succeed())
			Expect(d.Put(ctx, record("b", "c2", t0.Add(time.Second)))).To(Succeed())
			Expect(d.Put(ctx, record("c", "c1", t0.Add(2*time.Second)))).To(Succeed())

			recs, err := d.List(ctx, storage.ListOptions{ClientID: "c1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"c", "a"}))

			recs, err = d.List(ctx, storage.ListOptions{Limit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"c"}))
		})

		It("returns an empty list for an empty store", func() {
			recs, err := d.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeEmpty())
		})
	})
}

func ids(recs []*storage.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}
