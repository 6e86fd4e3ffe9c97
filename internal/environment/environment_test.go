package environment_test

import (
	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/exec-node-slots/internal/environment"
)

var _ = Describe("ProcessEnvironment", func() {
	It("is disabled until Init runs, then reports the requested CPU limits", func() {
		env := environment.NewProcessEnvironment(false)
		Expect(env.IsEnabled()).To(BeFalse())

		Expect(env.Init(4, decimal.NewFromInt(8), 0.25)).To(Succeed())
		Expect(env.IsEnabled()).To(BeTrue())

		Expect(env.GetCpuLimit(environment.Common).Equal(decimal.NewFromInt(8))).To(BeTrue())
		Expect(env.GetCpuLimit(environment.Idle).Equal(decimal.NewFromInt(2))).To(BeTrue())
	})

	It("never requires a root volume manager", func() {
		env := environment.NewProcessEnvironment(false)
		Expect(env.RequiresVolumeManager()).To(BeFalse())
	})

	It("updates its common CPU limit and idle fraction independently", func() {
		env := environment.NewProcessEnvironment(false)
		Expect(env.Init(4, decimal.NewFromInt(8), 0.25)).To(Succeed())

		env.UpdateCpuLimit(decimal.NewFromInt(16))
		env.UpdateIdleCpuFraction(0.5)

		Expect(env.GetCpuLimit(environment.Common).Equal(decimal.NewFromInt(16))).To(BeTrue())
		Expect(env.GetCpuLimit(environment.Idle).Equal(decimal.NewFromInt(8))).To(BeTrue())
	})

	It("constructs a job directory manager that namespaces paths by slot index", func() {
		env := environment.NewProcessEnvironment(false)
		jdm, err := env.CreateJobDirectoryManager("/data/0", 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(jdm.Path(3)).To(Equal("/data/0/slot3"))
	})
})

var _ = Describe("ContainerEnvironment", func() {
	It("requires a root volume manager", func() {
		env := environment.NewContainerEnvironment()
		Expect(env.RequiresVolumeManager()).To(BeTrue())
	})

	It("clears recorded CPU-set bindings without affecting enabled state", func() {
		env := environment.NewContainerEnvironment()
		Expect(env.Init(4, decimal.NewFromInt(8), 0.25)).To(Succeed())

		Expect(func() { env.ClearSlotCpuSets(4) }).NotTo(Panic())
		Expect(env.IsEnabled()).To(BeTrue())
	})
})
