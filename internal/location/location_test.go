package location_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/exec-node-slots/internal/location"
)

var _ = Describe("FsLocation", func() {
	It("is disabled until Initialize runs", func() {
		loc := location.NewFsLocation("slot0", "/data/slot0", "ssd", 100)
		Expect(loc.Enabled()).To(BeFalse())

		Expect(loc.Initialize()).To(Succeed())
		Expect(loc.Enabled()).To(BeTrue())
	})

	It("allows the medium index to be assigned exactly once", func() {
		loc := location.NewFsLocation("slot0", "/data/slot0", "ssd", 100)
		Expect(loc.MediumIndex()).To(Equal(location.GenericMediumIndex))

		Expect(loc.SetMediumIndex(1)).To(Succeed())
		Expect(loc.MediumIndex()).To(Equal(1))

		Expect(loc.SetMediumIndex(1)).To(Succeed())
		Expect(loc.SetMediumIndex(2)).To(HaveOccurred())
		Expect(loc.MediumIndex()).To(Equal(1))
	})

	It("isolates itself without affecting other locations when disabled", func() {
		a := location.NewFsLocation("slot0", "/data/0", "ssd", 100)
		b := location.NewFsLocation("slot1", "/data/1", "ssd", 100)
		Expect(a.Initialize()).To(Succeed())
		Expect(b.Initialize()).To(Succeed())

		a.Disable(errors.New("disk failure"))

		Expect(a.Enabled()).To(BeFalse())
		Expect(b.Enabled()).To(BeTrue())

		_, err := a.DiskResources()
		Expect(err).To(HaveOccurred())
	})

	It("ignores a second Disable call", func() {
		a := location.NewFsLocation("slot0", "/data/0", "ssd", 100)
		a.Disable(errors.New("first"))
		a.Disable(errors.New("second"))

		_, err := a.DiskResources()
		Expect(err).To(MatchError("first"))
	})
})

var _ = Describe("Registry", func() {
	specs := []location.LocationSpec{
		{Path: "/data/0", MediumName: "ssd", DiskLimit: 100},
		{Path: "/data/1", MediumName: "hdd", DiskLimit: 200},
	}

	It("names locations slot<i> in registration order", func() {
		r := location.NewRegistry(specs)
		all := r.All()
		Expect(all).To(HaveLen(2))
		Expect(all[0].ID()).To(Equal("slot0"))
		Expect(all[1].ID()).To(Equal("slot1"))
	})

	It("only reports enabled locations as alive", func() {
		r := location.NewRegistry(specs)
		Expect(r.Alive()).To(BeEmpty())

		for _, l := range r.All() {
			Expect(l.Initialize()).To(Succeed())
		}
		Expect(r.Alive()).To(HaveLen(2))
	})

	It("resolves media via InitMedia and sets DefaultMediumIndex", func() {
		r := location.NewRegistry(specs)
		dir := map[string]int{"ssd": 1, "hdd": 2}

		Expect(r.InitMedia(dir, "ssd")).To(Succeed())
		Expect(r.DefaultMediumIndex()).To(Equal(1))
		Expect(r.MediaAssigned()).To(BeTrue())

		all := r.All()
		Expect(all[0].MediumIndex()).To(Equal(1))
		Expect(all[1].MediumIndex()).To(Equal(2))
	})

	It("rejects InitMedia when a location's medium is unknown", func() {
		r := location.NewRegistry(specs)
		dir := map[string]int{"ssd": 1}

		Expect(r.InitMedia(dir, "ssd")).To(HaveOccurred())
	})

	It("rejects InitMedia when the default medium name is unknown", func() {
		r := location.NewRegistry(specs)
		dir := map[string]int{"ssd": 1, "hdd": 2}

		Expect(r.InitMedia(dir, "nvme")).To(HaveOccurred())
	})

	It("looks up a location by id in O(1) via Get", func() {
		r := location.NewRegistry(specs)

		loc, ok := r.Get("slot1")
		Expect(ok).To(BeTrue())
		Expect(loc.ID()).To(Equal("slot1"))

		_, ok = r.Get("slot99")
		Expect(ok).To(BeFalse())
	})
})
