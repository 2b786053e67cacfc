package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("HookableBase", func() {
	var (
		mockCtrl *gomock.Controller
		domain   *HookableBase
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		domain = NewHookableBase()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should invoke hooks in registration order", func() {
		hook1 := NewMockHook(mockCtrl)
		hook2 := NewMockHook(mockCtrl)
		pos := &HookPos{Name: "Test"}
		ctx := HookCtx{Domain: domain, Pos: pos, Item: 42}

		first := hook1.EXPECT().Func(ctx)
		hook2.EXPECT().Func(ctx).After(first)

		domain.AcceptHook(hook1)
		domain.AcceptHook(hook2)
		domain.InvokeHook(ctx)

		Expect(domain.NumHooks()).To(Equal(2))
		Expect(domain.Hooks()).To(HaveLen(2))
	})

	It("should panic on duplicated hooks", func() {
		hook := NewMockHook(mockCtrl)
		domain.AcceptHook(hook)

		Expect(func() { domain.AcceptHook(hook) }).To(Panic())
	})

	It("should accept hook functions", func() {
		var positions []string
		record := HookFunc(func(ctx HookCtx) {
			positions = append(positions, ctx.Pos.Name)
		})

		domain.AcceptHook(record)
		domain.AcceptHook(record)
		domain.InvokeHook(HookCtx{Pos: &HookPos{Name: "A"}})

		Expect(positions).To(Equal([]string{"A", "A"}))
	})
})
