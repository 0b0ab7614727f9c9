package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/auth"
	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/query"
)

// mockAuthenticator accepts "token-<username>" for known users
type mockAuthenticator struct {
	users    map[string]*auth.User
	loginErr error
}

func newMockAuthenticator() *mockAuthenticator {
	return &mockAuthenticator{users: map[string]*auth.User{
		"alice": {ID: 7, Username: "alice"},
		"bob":   {ID: 9, Username: "bob"},
	}}
}

func (m *mockAuthenticator) Register(ctx context.Context, username, password, email string) (int64, error) {
	if username == "" || password == "" {
		return 0, auth.ErrMissingField
	}
	if _, ok := m.users[username]; ok {
		return 0, auth.ErrUsernameTaken
	}
	id := int64(len(m.users) + 100)
	m.users[username] = &auth.User{ID: id, Username: username}
	return id, nil
}

func (m *mockAuthenticator) Login(ctx context.Context, username, password string) (string, error) {
	if m.loginErr != nil {
		return "", m.loginErr
	}
	if _, ok := m.users[username]; !ok || password != "secret" {
		return "", auth.ErrInvalidCredentials
	}
	return "token-" + username, nil
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*auth.User, error) {
	user, ok := m.users[strings.TrimPrefix(token, "token-")]
	if !ok || !strings.HasPrefix(token, "token-") {
		return nil, auth.ErrInvalidToken
	}
	return user, nil
}

// mockAnswerer records the question and returns a canned response
type mockAnswerer struct {
	response query.Response
	question string
	userID   int64
}

func (m *mockAnswerer) Answer(ctx context.Context, question string, userID int64) query.Response {
	m.question = question
	m.userID = userID
	return m.response
}

var _ = Describe("Server", func() {
	var (
		documents  *mockDocuments
		store      *mockStore
		scanner    *mockScanner
		answerer   *mockAnswerer
		httpServer *httptest.Server
	)

	BeforeEach(func() {
		documents = newMockDocuments()
		store = newMockStore()
		scanner = newMockScanner()
		answerer = &mockAnswerer{response: query.Response{
			OK:     true,
			Answer: "You billed 500.",
			SQL:    "SELECT SUM(invoices.total) FROM invoices",
			Result: &query.Result{Columns: []string{"revenue"}, Rows: [][]any{{500.0}}},
		}}
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(store, documents, newMockStorage(), scanner,
			&mockPusher{result: LedgerResult{Status: LedgerSkipped}}, &fixedIDGenerator{id: "doc-1"}, &defaultTimeSource{})
		server := NewServerWithMux(service, newMockAuthenticator(), answerer, http.NewServeMux())
		httpServer = httptest.NewServer(server.Handler())
	})

	AfterEach(func() {
		httpServer.Close()
	})

	do := func(method, path, token string, body io.Reader, contentType string) *http.Response {
		req, err := http.NewRequest(method, httpServer.URL+path, body)
		Expect(err).NotTo(HaveOccurred())
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	postJSON := func(path, token string, v any) *http.Response {
		data, err := json.Marshal(v)
		Expect(err).NotTo(HaveOccurred())
		return do(http.MethodPost, path, token, bytes.NewReader(data), "application/json")
	}

	upload := func(path, token, filename string, data []byte) *http.Response {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())
		return do(http.MethodPost, path, token, &buf, writer.FormDataContentType())
	}

	decode := func(resp *http.Response) map[string]any {
		var body map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		return body
	}

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			resp := do(http.MethodOptions, "/api/invoices", "", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Headers")).To(ContainSubstring("Authorization"))
		})
	})

	Describe("auth routes", func() {
		It("registers a user", func() {
			resp := postJSON("/auth/register", "", map[string]string{"username": "carol", "password": "pw"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body := decode(resp)
			Expect(body["status"]).To(Equal("ok"))
			Expect(body["user_id"]).To(BeNumerically(">", 0))
		})

		It("rejects a taken username", func() {
			resp := postJSON("/auth/register", "", map[string]string{"username": "alice", "password": "pw"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode(resp)["error"]).To(Equal("Username already exists"))
		})

		It("rejects missing fields", func() {
			resp := postJSON("/auth/register", "", map[string]string{"username": "dave"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("logs in", func() {
			resp := postJSON("/auth/login", "", map[string]string{"username": "alice", "password": "secret"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode(resp)["access_token"]).To(Equal("token-alice"))
		})

		It("rejects bad credentials", func() {
			resp := postJSON("/auth/login", "", map[string]string{"username": "alice", "password": "nope"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("rejects malformed bodies", func() {
			resp := do(http.MethodPost, "/auth/login", "", strings.NewReader("{"), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("protected routes", func() {
		It("require a token", func() {
			resp := do(http.MethodGet, "/api/invoices", "", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(decode(resp)["error"]).To(Equal("Missing Authorization header"))
		})

		It("require the bearer scheme", func() {
			req, err := http.NewRequest(http.MethodGet, httpServer.URL+"/api/invoices", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic token-alice")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("reject unknown users", func() {
			resp := do(http.MethodGet, "/api/invoices", "token-mallory", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("POST /process-invoice", func() {
		It("processes an invoice for the caller", func() {
			resp := upload("/process-invoice", "token-alice", "scan.png", []byte("png"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body := decode(resp)
			Expect(body["status"]).To(Equal("success"))
			Expect(body["saved_to_db"]).To(BeTrue())
			Expect(body["push_to_erp"]).To(BeFalse())
			Expect(body["document_id"]).To(Equal("doc-1"))
			Expect(store.invoices[1].UserID).To(Equal(int64(7)))
		})

		It("accepts a trailing slash", func() {
			resp := upload("/process-invoice/", "token-alice", "scan.png", []byte("png"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects documents that are not invoices", func() {
			scanner.docType = "id_document"
			resp := upload("/process-invoice", "token-alice", "passport.jpg", []byte("jpg"))
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

			body := decode(resp)
			Expect(body["status"]).To(Equal("failed"))
			Expect(body["error"]).To(ContainSubstring("id_document"))
		})

		It("requires a file", func() {
			var buf bytes.Buffer
			writer := multipart.NewWriter(&buf)
			Expect(writer.WriteField("note", "no file")).To(Succeed())
			Expect(writer.Close()).To(Succeed())

			resp := do(http.MethodPost, "/process-invoice", "token-alice", &buf, writer.FormDataContentType())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode(resp)["error"]).To(Equal("No file provided"))
		})

		It("requires authentication", func() {
			resp := upload("/process-invoice", "", "scan.png", []byte("png"))
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("POST /classify-document", func() {
		It("returns the detected type", func() {
			scanner.docType = "cheque"
			resp := upload("/classify-document", "", "cheque.jpg", []byte("jpg"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode(resp)).To(Equal(map[string]any{"status": "success", "document_type": "cheque"}))
		})

		It("reports transcription failures", func() {
			scanner.textErr = errors.New("model down")
			resp := upload("/classify-document", "", "cheque.jpg", []byte("jpg"))
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("documents", func() {
		JustBeforeEach(func() {
			resp := upload("/process-invoice", "token-alice", "scan.png", []byte("png bytes"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("lists the caller's documents", func() {
			resp := do(http.MethodGet, "/api/documents", "token-alice", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var docs []*Document
			Expect(json.NewDecoder(resp.Body).Decode(&docs)).To(Succeed())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Status).To(Equal(StatusSaved))

			resp = do(http.MethodGet, "/api/documents", "token-bob", nil, "")
			Expect(json.NewDecoder(resp.Body).Decode(&docs)).To(Succeed())
			Expect(docs).To(BeEmpty())
		})

		It("returns a document to its owner only", func() {
			resp := do(http.MethodGet, "/api/documents/doc-1", "token-alice", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp = do(http.MethodGet, "/api/documents/doc-1", "token-bob", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("serves the original file", func() {
			resp := do(http.MethodGet, "/api/documents/doc-1/file", "token-alice", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))

			data, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("png bytes"))
		})

		It("deletes a document", func() {
			resp := do(http.MethodDelete, "/api/documents/doc-1", "token-bob", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			resp = do(http.MethodDelete, "/api/documents/doc-1", "token-alice", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(documents.docs).To(BeEmpty())
			Expect(store.invoices).To(BeEmpty())
		})
	})

	Describe("invoices", func() {
		JustBeforeEach(func() {
			resp := upload("/process-invoice", "token-alice", "scan.png", []byte("png"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("lists the caller's invoices", func() {
			resp := do(http.MethodGet, "/api/invoices", "token-alice", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var invoices []*Invoice
			Expect(json.NewDecoder(resp.Body).Decode(&invoices)).To(Succeed())
			Expect(invoices).To(HaveLen(1))
			Expect(invoices[0].Items).To(HaveLen(1))
		})

		It("returns one invoice", func() {
			resp := do(http.MethodGet, "/api/invoices/1", "token-alice", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode(resp)["customer_name"]).To(Equal("Acme Ltd"))
		})

		It("hides other users' invoices", func() {
			resp := do(http.MethodGet, "/api/invoices/1", "token-bob", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("rejects non-numeric IDs", func() {
			resp := do(http.MethodGet, "/api/invoices/abc", "token-alice", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /chatbot/query", func() {
		It("answers for the caller", func() {
			resp := postJSON("/chatbot/query", "token-bob", map[string]string{"question": "How much did I bill?"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body := decode(resp)
			Expect(body["status"]).To(Equal("ok"))
			Expect(body["answer"]).To(Equal("You billed 500."))
			Expect(body["sql"]).To(Equal("SELECT SUM(invoices.total) FROM invoices"))
			Expect(body["fallback"]).To(BeFalse())
			Expect(body["data"]).To(HaveKeyWithValue("columns", ConsistOf("revenue")))

			Expect(answerer.question).To(Equal("How much did I bill?"))
			Expect(answerer.userID).To(Equal(int64(9)))
		})

		It("accepts a trailing slash", func() {
			resp := postJSON("/chatbot/query/", "token-bob", map[string]string{"question": "Totals?"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("passes fallback answers through", func() {
			answerer.response = query.Response{OK: true, Answer: "Around 500.", SQL: "SELECT", Fallback: true}
			resp := postJSON("/chatbot/query", "token-bob", map[string]string{"question": "Totals?"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body := decode(resp)
			Expect(body["fallback"]).To(BeTrue())
			Expect(body["data"]).To(BeNil())
		})

		It("maps failed envelopes to a server error", func() {
			answerer.response = query.Response{OK: false, Error: "model unreachable"}
			resp := postJSON("/chatbot/query", "token-bob", map[string]string{"question": "Totals?"})
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(decode(resp)["error"]).To(ContainSubstring("model unreachable"))
		})

		It("requires a question", func() {
			resp := postJSON("/chatbot/query", "token-bob", map[string]string{"question": "  "})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(answerer.question).To(BeEmpty())
		})
	})
})

var _ = DescribeTable("detectContentType",
	func(filename, declared, expected string) {
		Expect(detectContentType(filename, declared)).To(Equal(expected))
	},
	Entry("declared type wins", "scan.bin", "Image/PNG", "image/png"),
	Entry("pdf by extension", "scan.PDF", "", "application/pdf"),
	Entry("heic by extension", "photo.heic", "application/octet-stream", "image/heic"),
	Entry("jpeg by extension", "photo.jpeg", "", "image/jpeg"),
	Entry("unknown", "notes.docx", "", "application/octet-stream"),
)
