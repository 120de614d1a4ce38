package store_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/immanlabs/gateway/pkg/store"
)

var _ = Describe("SQLiteStore merge support", func() {
	var (
		ctx    context.Context
		target *store.SQLiteStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		target, err = store.NewSQLiteStore(filepath.Join(GinkgoT().TempDir(), "target.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		target.Close()
	})

	It("imports a chat preserving its identity", func() {
		source, err := store.NewSQLiteStore(":memory:")
		Expect(err).NotTo(HaveOccurred())
		defer source.Close()

		chat, err := source.Create(ctx, "u1", "t", store.Message{Role: store.RoleUser, Text: "hi"})
		Expect(err).NotTo(HaveOccurred())
		_, err = source.Append(ctx, chat.ID, store.Message{Role: store.RoleBot, Text: "hello"})
		Expect(err).NotTo(HaveOccurred())

		chats, err := source.AllChats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(chats).To(HaveLen(1))

		isNew, err := target.Import(ctx, chats[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(isNew).To(BeTrue())

		imported, err := target.Get(ctx, chat.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(imported.UserID).To(Equal("u1"))
		Expect(imported.Messages).To(HaveLen(2))
	})

	It("skips chats that already exist in the target", func() {
		chat, err := target.Create(ctx, "u1", "t", store.Message{Role: store.RoleUser, Text: "hi"})
		Expect(err).NotTo(HaveOccurred())

		existing, err := target.Get(ctx, chat.ID)
		Expect(err).NotTo(HaveOccurred())

		isNew, err := target.Import(ctx, existing)
		Expect(err).NotTo(HaveOccurred())
		Expect(isNew).To(BeFalse())

		after, err := target.Get(ctx, chat.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(after.Messages).To(HaveLen(1))
	})
})
