package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/immanlabs/gateway/pkg/store"
)

// Both implementations must satisfy the same behaviors, so the specs run
// against each through a constructor.
var implementations = map[string]func() store.Store{
	"MemoryStore": func() store.Store {
		return store.NewMemoryStore()
	},
	"SQLiteStore": func() store.Store {
		s, err := store.NewSQLiteStore(":memory:")
		Expect(err).NotTo(HaveOccurred())
		return s
	},
}

var _ = Describe("Store", func() {
	for name, newStore := range implementations {
		name, newStore := name, newStore

		Describe(name, func() {
			var (
				s   store.Store
				ctx context.Context
			)

			BeforeEach(func() {
				ctx = context.Background()
				s = newStore()
			})

			AfterEach(func() {
				s.Close()
			})

			It("creates a chat with a first message", func() {
				chat, err := s.Create(ctx, "u1", "Hello", store.Message{Role: store.RoleUser, Text: "Hello"})
				Expect(err).NotTo(HaveOccurred())
				Expect(chat.ID).NotTo(BeEmpty())
				Expect(chat.UserID).To(Equal("u1"))
				Expect(chat.Title).To(Equal("Hello"))
				Expect(chat.Messages).To(HaveLen(1))
				Expect(chat.Messages[0].Text).To(Equal("Hello"))
			})

			It("returns ErrNotFound for a missing chat", func() {
				_, err := s.Get(ctx, "nope")
				Expect(err).To(HaveOccurred())
				Expect(store.IsNotFound(err)).To(BeTrue())
			})

			It("appends messages in order", func() {
				chat, err := s.Create(ctx, "u1", "t", store.Message{Role: store.RoleUser, Text: "one"})
				Expect(err).NotTo(HaveOccurred())

				_, err = s.Append(ctx, chat.ID, store.Message{Role: store.RoleBot, Text: "two"})
				Expect(err).NotTo(HaveOccurred())
				updated, err := s.Append(ctx, chat.ID, store.Message{Role: store.RoleUser, Text: "three"})
				Expect(err).NotTo(HaveOccurred())

				Expect(updated.Messages).To(HaveLen(3))
				Expect(updated.Messages[0].Text).To(Equal("one"))
				Expect(updated.Messages[1].Text).To(Equal("two"))
				Expect(updated.Messages[2].Text).To(Equal("three"))
			})

			It("returns ErrNotFound when appending to a missing chat", func() {
				_, err := s.Append(ctx, "nope", store.Message{Role: store.RoleUser, Text: "x"})
				Expect(store.IsNotFound(err)).To(BeTrue())
			})

			It("keeps all turns when appends race on the same chat", func() {
				chat, err := s.Create(ctx, "u1", "t", store.Message{Role: store.RoleUser, Text: "start"})
				Expect(err).NotTo(HaveOccurred())

				const n = 16
				var wg sync.WaitGroup
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						defer GinkgoRecover()
						_, err := s.Append(ctx, chat.ID, store.Message{
							Role: store.RoleBot,
							Text: fmt.Sprintf("turn %d", i),
						})
						Expect(err).NotTo(HaveOccurred())
					}(i)
				}
				wg.Wait()

				got, err := s.Get(ctx, chat.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Messages).To(HaveLen(n + 1))
			})

			It("renames a chat", func() {
				chat, err := s.Create(ctx, "u1", "old", store.Message{Role: store.RoleUser, Text: "x"})
				Expect(err).NotTo(HaveOccurred())

				renamed, err := s.Rename(ctx, chat.ID, "new title")
				Expect(err).NotTo(HaveOccurred())
				Expect(renamed.Title).To(Equal("new title"))
			})

			It("deletes a chat and tolerates deleting it twice", func() {
				chat, err := s.Create(ctx, "u1", "t", store.Message{Role: store.RoleUser, Text: "x"})
				Expect(err).NotTo(HaveOccurred())

				Expect(s.Delete(ctx, chat.ID)).To(Succeed())
				_, err = s.Get(ctx, chat.ID)
				Expect(store.IsNotFound(err)).To(BeTrue())
				Expect(s.Delete(ctx, chat.ID)).To(Succeed())
			})

			It("lists only the owner's chats, newest first", func() {
				first, err := s.Create(ctx, "u1", "first", store.Message{Role: store.RoleUser, Text: "a"})
				Expect(err).NotTo(HaveOccurred())
				_, err = s.Create(ctx, "u2", "other", store.Message{Role: store.RoleUser, Text: "b"})
				Expect(err).NotTo(HaveOccurred())
				second, err := s.Create(ctx, "u1", "second", store.Message{Role: store.RoleUser, Text: "c"})
				Expect(err).NotTo(HaveOccurred())

				// Appending bumps updated-at, so first becomes the newest.
				_, err = s.Append(ctx, first.ID, store.Message{Role: store.RoleBot, Text: "d"})
				Expect(err).NotTo(HaveOccurred())

				summaries, err := s.List(ctx, "u1")
				Expect(err).NotTo(HaveOccurred())
				Expect(summaries).To(HaveLen(2))
				Expect(summaries[0].ID).To(Equal(first.ID))
				Expect(summaries[1].ID).To(Equal(second.ID))
			})
		})
	}
})

var _ = Describe("SQLiteStore file databases", func() {
	It("creates the database file on disk", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "chats.db")

		s, err := store.NewSQLiteStore(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		_, err = os.Stat(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("persists chats across reopen", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "chats.db")
		ctx := context.Background()

		s, err := store.NewSQLiteStore(dbPath)
		Expect(err).NotTo(HaveOccurred())
		chat, err := s.Create(ctx, "u1", "t", store.Message{Role: store.RoleUser, Text: "hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())

		reopened, err := store.NewSQLiteStore(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		got, err := reopened.Get(ctx, chat.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Messages).To(HaveLen(1))
		Expect(got.Messages[0].Text).To(Equal("hello"))
	})
})

var _ = Describe("DeriveTitle", func() {
	It("keeps short messages intact", func() {
		Expect(store.DeriveTitle("Hello there")).To(Equal("Hello there"))
	})

	It("truncates long messages to 30 characters with an ellipsis", func() {
		long := "This message is definitely longer than thirty characters."
		title := store.DeriveTitle(long)
		Expect(title).To(HaveLen(33))
		Expect(title).To(Equal(long[:30] + "..."))
	})
})
