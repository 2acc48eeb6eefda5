package report_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mrcm/report"
	"github.com/sarchlab/mrcm/trace"
)

var _ = Describe("Profile", func() {
	var p *report.Profile

	BeforeEach(func() {
		p = report.NewProfile()
		steps := []*trace.Step{
			{Tick: 1, Disasm: "addi x1, x0, 3", Cycles: 1},
			{Tick: 2, Disasm: "ld x2, 0(x30)", Cycles: 2},
			{Tick: 3, Disasm: "addi x1, x1, 1", Cycles: 1},
			{Tick: 4, Fault: "decode fault"},
			{Tick: 5, Cycles: 1},
		}
		for _, s := range steps {
			Expect(p.WriteStep(s)).To(Succeed())
		}
	})

	It("should aggregate retired steps per mnemonic", func() {
		Expect(p.Mnemonics()).To(Equal([]string{"addi", "ld", "unknown"}))
		Expect(p.Op("addi")).To(Equal(report.OpStats{Count: 2, Cycles: 2}))
		Expect(p.Op("ld")).To(Equal(report.OpStats{Count: 1, Cycles: 2}))
		Expect(p.Op("sd")).To(Equal(report.OpStats{}))
		Expect(p.TotalCycles()).To(Equal(uint64(5)))
	})

	It("should render the charts", func() {
		var buf bytes.Buffer
		Expect(p.Render(&buf, "factorial")).To(Succeed())

		html := buf.String()
		Expect(html).To(ContainSubstring("factorial"))
		Expect(html).To(ContainSubstring("addi"))
		Expect(html).To(ContainSubstring("Cumulative cycles"))
	})

	It("should write an HTML file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "profile.html")
		Expect(p.WriteHTML(path, "run")).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("<html"))

		Expect(p.WriteHTML(filepath.Join(dir, "missing", "x.html"), "run")).NotTo(Succeed())
	})
})
