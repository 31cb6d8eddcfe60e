package preflight

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ScanRecoveryDir", func() {
	var dir string

	write := func(relative, content string) {
		path := filepath.Join(dir, relative)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "recovery-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("should pass a clean directory", func() {
		write("dump.json", `{"character":"Ember","status":"ready"}`)
		Expect(ScanRecoveryDir(dir)).To(Succeed())
	})

	It("should skip a missing or empty directory", func() {
		Expect(ScanRecoveryDir("")).To(Succeed())
		Expect(ScanRecoveryDir(filepath.Join(dir, "absent"))).To(Succeed())
	})

	It("should flag credential-looking content in JSON files", func() {
		write("dump.json", `{"SUPABASE_SERVICE_KEY":"sb-secret"}`)
		err := ScanRecoveryDir(dir)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("dump.json"))
	})

	It("should scan nested directories", func() {
		write("nested/deep/dump.json", `{"openai_api_key":"sk-test"}`)
		err := ScanRecoveryDir(dir)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("dump.json"))
	})

	It("should skip the extract and node_modules subtrees", func() {
		write("extract/dump.json", `{"SECRET":"x"}`)
		write("node_modules/pkg/config.json", `{"JWT":"x"}`)
		Expect(ScanRecoveryDir(dir)).To(Succeed())
	})

	It("should ignore non-JSON files", func() {
		write("notes.txt", "SUPABASE SECRET KEY JWT OPENAI")
		Expect(ScanRecoveryDir(dir)).To(Succeed())
	})
})
