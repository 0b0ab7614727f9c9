package invoice

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("LocalStorage", func() {
	var (
		ctx     context.Context
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "files"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("saves and reads a file", func() {
		key, err := storage.Save(ctx, "doc-1_scan.pdf", []byte("pdf bytes"), "application/pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("doc-1_scan.pdf"))
		Expect(filepath.Join(tmpDir, "files", key)).To(BeAnExistingFile())

		data, err := storage.Get(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("pdf bytes"))
	})

	It("keeps keys inside the base directory", func() {
		key, err := storage.Save(ctx, "../escape.pdf", []byte("x"), "application/pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("escape.pdf"))
		Expect(filepath.Join(tmpDir, "escape.pdf")).NotTo(BeAnExistingFile())
	})

	It("deletes a file", func() {
		key, err := storage.Save(ctx, "gone.png", []byte("x"), "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(storage.Delete(ctx, key)).To(Succeed())

		_, err = storage.Get(ctx, key)
		Expect(err).To(HaveOccurred())
	})

	It("reports missing files", func() {
		Expect(storage.Delete(ctx, "missing.png")).NotTo(Succeed())
	})
})

var _ = Describe("MinioStorage", func() {
	var (
		ctx    context.Context
		server *ghttp.Server
	)

	// bucket-level requests carry a trailing slash
	verify := func(method, path string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(method))
			Expect(strings.TrimSuffix(r.URL.Path, "/")).To(Equal(path))
		}
	}

	connect := func() (*MinioStorage, error) {
		return NewMinioStorage(ctx, MinioConfig{
			Endpoint:  strings.TrimPrefix(server.URL(), "http://"),
			AccessKey: "minio",
			SecretKey: "minio123",
			Bucket:    "documents",
			Region:    "us-east-1",
		})
	}

	BeforeEach(func() {
		ctx = context.Background()
		server = ghttp.NewServer()
	})

	AfterEach(func() {
		server.Close()
	})

	When("the bucket exists", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				verify(http.MethodHead, "/documents"),
				ghttp.RespondWith(http.StatusOK, nil),
			))
		})

		It("stores, reads and removes objects", func() {
			storage, err := connect()
			Expect(err).NotTo(HaveOccurred())

			server.AppendHandlers(
				ghttp.CombineHandlers(
					verify(http.MethodPut, "/documents/doc-1_scan.pdf"),
					func(w http.ResponseWriter, r *http.Request) {
						Expect(r.Header.Get("Content-Type")).To(Equal("application/pdf"))
					},
					ghttp.RespondWith(http.StatusOK, nil, http.Header{"ETag": {`"abc"`}}),
				),
				ghttp.CombineHandlers(
					verify(http.MethodGet, "/documents/doc-1_scan.pdf"),
					ghttp.RespondWith(http.StatusOK, "pdf bytes", http.Header{
						"ETag":          {`"abc"`},
						"Last-Modified": {"Mon, 01 Jan 2024 00:00:00 GMT"},
						"Content-Type":  {"application/pdf"},
					}),
				),
				ghttp.CombineHandlers(
					verify(http.MethodDelete, "/documents/doc-1_scan.pdf"),
					ghttp.RespondWith(http.StatusNoContent, nil),
				),
			)

			key, err := storage.Save(ctx, "doc-1_scan.pdf", []byte("pdf bytes"), "application/pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("doc-1_scan.pdf"))

			data, err := storage.Get(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("pdf bytes"))

			Expect(storage.Delete(ctx, key)).To(Succeed())
			Expect(server.ReceivedRequests()).To(HaveLen(4))
		})
	})

	When("the bucket is missing", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					verify(http.MethodHead, "/documents"),
					ghttp.RespondWith(http.StatusNotFound, nil),
				),
				ghttp.CombineHandlers(
					verify(http.MethodPut, "/documents"),
					func(w http.ResponseWriter, r *http.Request) {
						io.Copy(io.Discard, r.Body)
					},
					ghttp.RespondWith(http.StatusOK, nil),
				),
			)
		})

		It("creates it", func() {
			_, err := connect()
			Expect(err).NotTo(HaveOccurred())
			Expect(server.ReceivedRequests()).To(HaveLen(2))
		})
	})
})
